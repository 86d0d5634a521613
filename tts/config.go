package tts

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config holds every conversion setting. Values come from the YAML config
// file, EPUB2M4B_* environment variables and command line flags.
type Config struct {
	// Output and chunking
	Output          string        `yaml:"output" env:"EPUB2M4B_OUTPUT" envDefault:"./audiobooks"`
	MaxChars        int           `yaml:"max_chars" env:"EPUB2M4B_MAX_CHARS" envDefault:"400"`
	Segmenter       string        `yaml:"segmenter" env:"EPUB2M4B_SEGMENTER" envDefault:"auto"`
	SentenceModel   string        `yaml:"sentence_model" env:"EPUB2M4B_SENTENCE_MODEL"`
	MinChapterChars int           `yaml:"min_chapter_chars" env:"EPUB2M4B_MIN_CHAPTER_CHARS" envDefault:"50"`
	ChunkGap        time.Duration `yaml:"chunk_gap" env:"EPUB2M4B_CHUNK_GAP" envDefault:"0s"`
	KeepTemp        bool          `yaml:"keep_temp" env:"EPUB2M4B_KEEP_TEMP" envDefault:"false"`

	// Synthesis
	Engine  string  `yaml:"engine" env:"EPUB2M4B_ENGINE" envDefault:"piper"`
	Voice   string  `yaml:"voice" env:"EPUB2M4B_VOICE"`
	Speed   float64 `yaml:"speed" env:"EPUB2M4B_SPEED" envDefault:"1.0"`
	Workers int     `yaml:"workers" env:"EPUB2M4B_WORKERS" envDefault:"1"`
	Retries int     `yaml:"retries" env:"EPUB2M4B_RETRIES" envDefault:"2"`

	// Encoding
	FFmpeg  string `yaml:"ffmpeg" env:"EPUB2M4B_FFMPEG" envDefault:"ffmpeg"`
	Bitrate string `yaml:"bitrate" env:"EPUB2M4B_BITRATE" envDefault:"64k"`

	Piper  PiperConfig           `yaml:"piper"`
	Mock   MockConfig            `yaml:"mock"`
	Cache  CacheConfig           `yaml:"cache"`
	Voices map[string]VoiceAlias `yaml:"voices"`
}

// PiperConfig contains Piper engine settings. Zero noise values leave the
// model's own defaults in place.
type PiperConfig struct {
	Binary     string        `yaml:"binary" env:"EPUB2M4B_PIPER_BINARY" envDefault:"piper"`
	Model      string        `yaml:"model" env:"EPUB2M4B_PIPER_MODEL"`
	Config     string        `yaml:"config" env:"EPUB2M4B_PIPER_CONFIG"`
	Speaker    int           `yaml:"speaker" env:"EPUB2M4B_PIPER_SPEAKER" envDefault:"0"`
	NoiseScale float64       `yaml:"noise_scale" env:"EPUB2M4B_PIPER_NOISE_SCALE"`
	NoiseW     float64       `yaml:"noise_w" env:"EPUB2M4B_PIPER_NOISE_W"`
	UseCUDA    string        `yaml:"use_cuda" env:"EPUB2M4B_PIPER_USE_CUDA" envDefault:"auto"`
	Timeout    time.Duration `yaml:"timeout" env:"EPUB2M4B_PIPER_TIMEOUT" envDefault:"2m"`
}

// MockConfig contains settings for the synthetic test engine.
type MockConfig struct {
	WordsPerMinute int           `yaml:"words_per_minute" env:"EPUB2M4B_MOCK_WORDS_PER_MINUTE" envDefault:"150"`
	SampleRate     int           `yaml:"sample_rate" env:"EPUB2M4B_MOCK_SAMPLE_RATE" envDefault:"22050"`
	Delay          time.Duration `yaml:"delay" env:"EPUB2M4B_MOCK_DELAY" envDefault:"0s"`
	FailureRate    float64       `yaml:"failure_rate" env:"EPUB2M4B_MOCK_FAILURE_RATE" envDefault:"0.0"`
}

// CacheConfig controls the on-disk synthesis cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" env:"EPUB2M4B_CACHE_ENABLED" envDefault:"true"`
	Dir              string `yaml:"dir" env:"EPUB2M4B_CACHE_DIR"`
	MaxSize          int    `yaml:"max_size" env:"EPUB2M4B_CACHE_MAX_SIZE" envDefault:"1024"`
	CompressionLevel int    `yaml:"compression_level" env:"EPUB2M4B_CACHE_COMPRESSION_LEVEL" envDefault:"3"`
	// MaxAge expires entries older than this when the cache opens. Zero keeps them.
	MaxAge time.Duration `yaml:"max_age" env:"EPUB2M4B_CACHE_MAX_AGE" envDefault:"0s"`
}

// VoiceAlias maps a short custom name onto a concrete model and speaker.
type VoiceAlias struct {
	Model   string `yaml:"model"`
	Speaker int    `yaml:"speaker"`
}

// Engines lists the engine names accepted in Config.Engine.
var Engines = []string{"piper", "mock"}

var (
	segmenterModes = []string{"auto", "model", "period"}
	cudaModes      = []string{"auto", "true", "false"}
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Output:          "./audiobooks",
		MaxChars:        400,
		Segmenter:       "auto",
		MinChapterChars: 50,

		Engine:  "piper",
		Speed:   1.0,
		Workers: 1,
		Retries: 2,

		FFmpeg:  "ffmpeg",
		Bitrate: "64k",

		Piper:  DefaultPiperConfig(),
		Mock:   DefaultMockConfig(),
		Cache:  DefaultCacheConfig(),
		Voices: map[string]VoiceAlias{},
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	return PiperConfig{
		Binary:  "piper",
		UseCUDA: "auto",
		Timeout: 2 * time.Minute,
	}
}

// DefaultMockConfig returns default Mock configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		WordsPerMinute: 150,
		SampleRate:     22050,
	}
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:          true,
		MaxSize:          1024,
		CompressionLevel: 3,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration and lowercases enum values in place.
// Every error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if !slices.Contains(Engines, c.Engine) {
		return invalid("engine %q: must be one of %v", c.Engine, Engines)
	}

	c.Segmenter = strings.ToLower(strings.TrimSpace(c.Segmenter))
	if c.Segmenter == "" {
		c.Segmenter = "auto"
	}
	if !slices.Contains(segmenterModes, c.Segmenter) {
		return invalid("segmenter %q: must be one of %v", c.Segmenter, segmenterModes)
	}

	switch {
	case c.Output == "":
		return invalid("output directory cannot be empty")
	case c.MaxChars <= 0:
		return invalid("max_chars must be positive, got %d", c.MaxChars)
	case c.MinChapterChars < 0:
		return invalid("min_chapter_chars cannot be negative, got %d", c.MinChapterChars)
	case c.ChunkGap < 0:
		return invalid("chunk_gap cannot be negative, got %v", c.ChunkGap)
	case c.Speed < 0.25 || c.Speed > 4.0:
		return invalid("speed must be between 0.25 and 4.0, got %g", c.Speed)
	case c.Workers < 1 || c.Workers > 32:
		return invalid("workers must be between 1 and 32, got %d", c.Workers)
	case c.Retries < 0 || c.Retries > 10:
		return invalid("retries must be between 0 and 10, got %d", c.Retries)
	case c.FFmpeg == "":
		return invalid("ffmpeg binary cannot be empty")
	case c.Bitrate == "":
		return invalid("bitrate cannot be empty")
	}

	for name, alias := range c.Voices {
		if alias.Model == "" {
			return invalid("voice alias %q has no model", name)
		}
		if alias.Speaker < 0 {
			return invalid("voice alias %q: speaker cannot be negative", name)
		}
	}

	switch c.Engine {
	case "piper":
		if err := c.Piper.Validate(); err != nil {
			return fmt.Errorf("piper config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	return nil
}

// Validate checks the Piper configuration. A missing model is only
// reported when the engine is created, so the config command still works.
func (c *PiperConfig) Validate() error {
	c.UseCUDA = strings.ToLower(strings.TrimSpace(c.UseCUDA))
	if c.UseCUDA == "" {
		c.UseCUDA = "auto"
	}

	switch {
	case c.Binary == "":
		return invalid("piper binary cannot be empty")
	case c.Speaker < 0:
		return invalid("speaker cannot be negative, got %d", c.Speaker)
	case c.NoiseScale < 0 || c.NoiseScale > 2.0:
		return invalid("noise_scale must be between 0.0 and 2.0, got %g", c.NoiseScale)
	case c.NoiseW < 0 || c.NoiseW > 2.0:
		return invalid("noise_w must be between 0.0 and 2.0, got %g", c.NoiseW)
	case !slices.Contains(cudaModes, c.UseCUDA):
		return invalid("use_cuda %q: must be one of %v", c.UseCUDA, cudaModes)
	case c.Timeout < time.Second:
		return invalid("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks the Mock configuration.
func (c *MockConfig) Validate() error {
	switch {
	case c.WordsPerMinute < 50 || c.WordsPerMinute > 500:
		return invalid("words_per_minute must be between 50 and 500, got %d", c.WordsPerMinute)
	case !slices.Contains(SampleRates, c.SampleRate):
		return invalid("sample_rate %d: must be one of %v", c.SampleRate, SampleRates)
	case c.Delay < 0:
		return invalid("delay cannot be negative, got %v", c.Delay)
	case c.FailureRate < 0 || c.FailureRate > 1:
		return invalid("failure_rate must be between 0.0 and 1.0, got %g", c.FailureRate)
	}
	return nil
}

// Validate checks the cache configuration.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.MaxSize <= 0:
		return invalid("max_size must be positive, got %d", c.MaxSize)
	case c.CompressionLevel < 1 || c.CompressionLevel > 22:
		return invalid("compression_level must be between 1 and 22, got %d", c.CompressionLevel)
	case c.MaxAge < 0:
		return invalid("max_age must not be negative, got %s", c.MaxAge)
	}
	return nil
}

// SampleRates lists the PCM sample rates the audio layer accepts.
var SampleRates = []int{8000, 16000, 22050, 24000, 44100, 48000}

// MaxSizeBytes returns the cache capacity in bytes.
func (c CacheConfig) MaxSizeBytes() int64 {
	return int64(c.MaxSize) << 20
}
