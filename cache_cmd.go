package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/epub2m4b/internal/cache"
	"github.com/dgnsrekt/epub2m4b/tts"
)

var (
	cacheOlderThan time.Duration

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show, prune or clear the synthesized audio cache",
		Long: paragraph(fmt.Sprintf("\n%s the cache of synthesized chunks that lets an interrupted conversion resume without re-running the engine.",
			keyword("Manage"))),
		Example: paragraph("epub2m4b cache stats\nepub2m4b cache prune --older-than 720h\nepub2m4b cache clear"),
		Args:    cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:          "stats",
		Short:        "Print the cache location, size and entry count",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return withCache(func(m *cache.Manager) error {
				fmt.Println(cacheReport(m.Dir(), m.Stats()))
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:          "clear",
		Short:        "Remove every cached chunk",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return withCache(func(m *cache.Manager) error {
				items := m.Stats().Items
				if err := m.Clear(); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Printf("%s %d entries from %s\n", heading("Removed"), items, m.Dir())
				return nil
			})
		},
	}

	cachePruneCmd = &cobra.Command{
		Use:          "prune",
		Short:        "Remove cached chunks older than a duration",
		Example:      paragraph("epub2m4b cache prune --older-than 168h"),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			if cacheOlderThan <= 0 {
				return fmt.Errorf("%w: --older-than must be positive", tts.ErrInvalidConfig)
			}
			return withCache(func(m *cache.Manager) error {
				n := m.Prune(time.Now().Add(-cacheOlderThan))
				fmt.Printf("%s %d entries older than %s\n", heading("Removed"), n, cacheOlderThan)
				return nil
			})
		},
	}
)

func init() {
	cachePruneCmd.Flags().DurationVar(&cacheOlderThan, "older-than", 30*24*time.Hour, "age past which entries are removed")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
}

// withCache opens the configured cache directory, even when caching is
// disabled for conversions, and closes it after fn.
func withCache(fn func(*cache.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	expandPaths(&cfg)

	m, err := cache.NewManager(cache.ConfigFrom(cfg.Cache), log.Default())
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		_ = m.Close()
		return err
	}
	return m.Close()
}

func cacheReport(dir string, s cache.Stats) string {
	var b strings.Builder
	b.WriteString(heading("Cache") + " " + subtle(dir) + "\n\n")

	used := 0.0
	if s.Capacity > 0 {
		used = float64(s.Size) / float64(s.Capacity) * 100
	}
	fmt.Fprintf(&b, "  entries  %s\n", humanize.Comma(s.Items))
	fmt.Fprintf(&b, "  size     %s of %s (%.0f%%)\n",
		humanize.IBytes(uint64(s.Size)), humanize.IBytes(uint64(s.Capacity)), used) //nolint:gosec
	if !s.LastAccess.IsZero() {
		fmt.Fprintf(&b, "  used     %s\n", humanize.Time(s.LastAccess))
	}
	if s.Evictions > 0 {
		fmt.Fprintf(&b, "  evicted  %s\n", humanize.Comma(s.Evictions))
	}
	return b.String()
}
