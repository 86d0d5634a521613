package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/tts"
	gap "github.com/muesli/go-app-paths"
)

// Config configures a Manager.
type Config struct {
	Dir              string
	MemoryCapacity   int64
	DiskCapacity     int64
	CompressionLevel int

	// Entries created longer ago than TTL are removed when the manager
	// opens. Zero keeps everything.
	TTL time.Duration
}

// ConfigFrom maps the cache section of the application config.
func ConfigFrom(c tts.CacheConfig) Config {
	return Config{
		Dir:              c.Dir,
		DiskCapacity:     c.MaxSizeBytes(),
		CompressionLevel: c.CompressionLevel,
		TTL:              c.MaxAge,
	}
}

// Open returns a Manager for an enabled cache and Nop otherwise.
func Open(c tts.CacheConfig, logger *log.Logger) (Store, error) {
	if !c.Enabled {
		return Nop{}, nil
	}
	return NewManager(ConfigFrom(c), logger)
}

// DefaultMemoryCapacity bounds the in-memory tier.
const DefaultMemoryCapacity = 64 << 20

// DefaultDir returns <user cache dir>/epub2m4b/audio.
func DefaultDir() (string, error) {
	dir, err := gap.NewScope(gap.User, "epub2m4b").CacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// Manager fronts a DiskCache with a MemoryCache. Disk hits are promoted to
// memory.
type Manager struct {
	l1 *MemoryCache
	l2 *DiskCache

	logger *log.Logger

	mu    sync.Mutex
	stats struct {
		l1Hits     int64
		l2Hits     int64
		misses     int64
		promotions int64
	}
}

var _ Store = (*Manager)(nil)

// NewManager opens the tiered cache described by cfg.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.Dir = dir
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = DefaultMemoryCapacity
	}

	l2, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel, logger)
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}

	if cfg.TTL > 0 {
		if n := l2.RemoveOlderThan(time.Now().Add(-cfg.TTL)); n > 0 {
			logger.Debug("Expired cache entries removed", "count", n)
		}
	}

	return &Manager{
		l1:     NewMemoryCache(cfg.MemoryCapacity),
		l2:     l2,
		logger: logger,
	}, nil
}

// Get checks memory, then disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		m.mu.Lock()
		m.stats.l1Hits++
		m.mu.Unlock()
		return data, true
	}

	data, ok := m.l2.Get(key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok {
		m.stats.misses++
		return nil, false
	}
	m.stats.l2Hits++
	if m.l1.Put(key, data) == nil {
		m.stats.promotions++
	}
	return data, true
}

// Put writes to both tiers. A value too large for memory is still written to
// disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.l1.Put(key, value); err != nil && err != ErrItemTooLarge {
		return err
	}
	return m.l2.Put(key, value)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	_ = m.l1.Close()
	return m.l2.Clear()
}

// Dir returns the disk tier directory.
func (m *Manager) Dir() string {
	return m.l2.Dir()
}

// Stats reports combined metrics. Size and capacity describe the disk tier.
func (m *Manager) Stats() Stats {
	disk := m.l2.Stats()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := disk
	s.Hits = m.stats.l1Hits + m.stats.l2Hits
	s.Misses = m.stats.misses
	s.Promotions = m.stats.promotions
	s.HitRate = 0
	s.updateHitRate()
	return s
}

// Prune removes disk entries created before cutoff and returns how many
// were removed.
func (m *Manager) Prune(cutoff time.Time) int {
	n := m.l2.RemoveOlderThan(cutoff)
	if n > 0 {
		_ = m.l1.Close()
	}
	return n
}

// Close persists the disk index.
func (m *Manager) Close() error {
	_ = m.l1.Close()
	if err := m.l2.Close(); err != nil {
		return fmt.Errorf("close disk cache: %w", err)
	}
	return nil
}
