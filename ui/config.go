package ui

import (
	"github.com/caarlos0/env/v11"
)

// Config contains TUI-specific configuration.
type Config struct {
	// Maximum width of the progress bar.
	Width int `env:"EPUB2M4B_UI_WIDTH" envDefault:"60"`

	// Completed chapters kept on screen.
	History int `env:"EPUB2M4B_UI_HISTORY" envDefault:"5"`

	Spinner   string `env:"EPUB2M4B_UI_SPINNER"    envDefault:"dot"`
	AltScreen bool   `env:"EPUB2M4B_UI_ALT_SCREEN" envDefault:"false"`
	NoColor   bool   `env:"NO_COLOR"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if cfg.Width < 10 {
		cfg.Width = 10
	}
	if cfg.History < 0 {
		cfg.History = 0
	}
	return cfg, nil
}
