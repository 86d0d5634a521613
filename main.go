// Package main provides the entry point for the epub2m4b CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/epub2m4b/tts"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	noTUI      bool

	rootCmd = &cobra.Command{
		Use:   "epub2m4b",
		Short: "Turn EPUB books into chaptered M4B audiobooks",
		Long: paragraph(
			fmt.Sprintf("\nTurn EPUB books into chaptered M4B audiobooks with a %s.", keyword("local speech engine")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
	}

	if debug || viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		noTUI = true
	}

	log.Debug("Starting", "command", cmd.Name(), "version", Version, "tui", !noTUI)
	return nil
}

// bindFlags binds the running command's flags to config keys. Binding at
// run time lets several commands share a key.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// loadConfig reads the merged viper settings into a validated Config.
func loadConfig() (tts.Config, error) {
	return tts.LoadConfigFromViper()
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	loadDotEnv()
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "print log lines instead of the progress view")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	tts.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(convertCmd, inspectCmd, benchCmd, previewCmd, watchCmd, doctorCmd, cacheCmd, configCmd, manCmd)
}

// loadDotEnv loads a .env file from the working directory. Variables
// already set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not parse .env file", "err", err)
	}
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "epub2m4b")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "epub2m4b")}, dirs...)
	}

	if c := os.Getenv("EPUB2M4B_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("epub2m4b")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("epub2m4b")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "epub2m4b.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
