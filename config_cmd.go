package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# directory the finished .m4b files are written to
output: "./audiobooks"
# longest chunk sent to the speech engine, in characters
max_chars: 400
# sentence splitting: auto, model or period
segmenter: "auto"
# sentence_model: "/path/to/model.json"
# chapters with this many characters or fewer are skipped
min_chapter_chars: 50
# silence inserted between chunks
chunk_gap: "0s"
# keep the per-chapter WAV files
keep_temp: false

# speech engine: piper or mock
engine: "piper"
# voice name, model path or alias from the voices table
voice: ""
speed: 1.0
workers: 1
retries: 2

ffmpeg: "ffmpeg"
bitrate: "64k"

piper:
  binary: "piper"
  # model: "~/voices/en_US-lessac-medium.onnx"
  # config: "~/voices/en_US-lessac-medium.onnx.json"
  speaker: 0
  # noise_scale: 0.667
  # noise_w: 0.8
  # auto, true or false
  use_cuda: "auto"
  timeout: "2m"

mock:
  words_per_minute: 150
  sample_rate: 22050
  delay: "0s"
  failure_rate: 0.0

cache:
  enabled: true
  # dir: "~/.cache/epub2m4b/audio"
  # megabytes
  max_size: 1024
  compression_level: 3
  # drop entries older than this when the cache opens; "0s" keeps them
  max_age: "0s"

# voices:
#   narrator:
#     model: "~/voices/en_GB-alba-medium.onnx"
#     speaker: 0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the epub2m4b config file",
	Long:    paragraph(fmt.Sprintf("\n%s the epub2m4b config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("epub2m4b config\nepub2m4b config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("epub2m4b", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
