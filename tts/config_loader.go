package tts

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads configuration from the global Viper instance.
func LoadConfigFromViper() (Config, error) {
	return LoadConfig(viper.GetViper())
}

// LoadConfig overlays every key set in v onto DefaultConfig and validates
// the result.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	setString(v, "output", &cfg.Output)
	setInt(v, "max_chars", &cfg.MaxChars)
	setString(v, "segmenter", &cfg.Segmenter)
	setString(v, "sentence_model", &cfg.SentenceModel)
	setInt(v, "min_chapter_chars", &cfg.MinChapterChars)
	if v.IsSet("chunk_gap") {
		cfg.ChunkGap = v.GetDuration("chunk_gap")
	}
	if v.IsSet("keep_temp") {
		cfg.KeepTemp = v.GetBool("keep_temp")
	}

	setString(v, "engine", &cfg.Engine)
	setString(v, "voice", &cfg.Voice)
	if v.IsSet("speed") {
		cfg.Speed = v.GetFloat64("speed")
	}
	setInt(v, "workers", &cfg.Workers)
	setInt(v, "retries", &cfg.Retries)

	setString(v, "ffmpeg", &cfg.FFmpeg)
	setString(v, "bitrate", &cfg.Bitrate)

	cfg.Piper = loadPiperConfig(v)
	cfg.Mock = loadMockConfig(v)
	cfg.Cache = loadCacheConfig(v)
	cfg.Voices = loadVoices(v)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func loadPiperConfig(v *viper.Viper) PiperConfig {
	cfg := DefaultPiperConfig()

	setString(v, "piper.binary", &cfg.Binary)
	setString(v, "piper.model", &cfg.Model)
	setString(v, "piper.config", &cfg.Config)
	setInt(v, "piper.speaker", &cfg.Speaker)
	if v.IsSet("piper.noise_scale") {
		cfg.NoiseScale = v.GetFloat64("piper.noise_scale")
	}
	if v.IsSet("piper.noise_w") {
		cfg.NoiseW = v.GetFloat64("piper.noise_w")
	}
	setString(v, "piper.use_cuda", &cfg.UseCUDA)
	if v.IsSet("piper.timeout") {
		cfg.Timeout = v.GetDuration("piper.timeout")
	}

	return cfg
}

func loadMockConfig(v *viper.Viper) MockConfig {
	cfg := DefaultMockConfig()

	setInt(v, "mock.words_per_minute", &cfg.WordsPerMinute)
	setInt(v, "mock.sample_rate", &cfg.SampleRate)
	if v.IsSet("mock.delay") {
		cfg.Delay = v.GetDuration("mock.delay")
	}
	if v.IsSet("mock.failure_rate") {
		cfg.FailureRate = v.GetFloat64("mock.failure_rate")
	}

	return cfg
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
	cfg := DefaultCacheConfig()

	if v.IsSet("cache.enabled") {
		cfg.Enabled = v.GetBool("cache.enabled")
	}
	setString(v, "cache.dir", &cfg.Dir)
	setInt(v, "cache.max_size", &cfg.MaxSize)
	setInt(v, "cache.compression_level", &cfg.CompressionLevel)
	if v.IsSet("cache.max_age") {
		cfg.MaxAge = v.GetDuration("cache.max_age")
	}

	return cfg
}

// loadVoices reads the voices.<alias> tables. Viper lowercases keys, so
// aliases are case-insensitive.
func loadVoices(v *viper.Viper) map[string]VoiceAlias {
	voices := map[string]VoiceAlias{}
	for name := range v.GetStringMap("voices") {
		prefix := "voices." + name
		voices[strings.ToLower(name)] = VoiceAlias{
			Model:   v.GetString(prefix + ".model"),
			Speaker: v.GetInt(prefix + ".speaker"),
		}
	}
	return voices
}

// SetDefaults registers every default with v so that environment
// variables are picked up by AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("output", d.Output)
	v.SetDefault("max_chars", d.MaxChars)
	v.SetDefault("segmenter", d.Segmenter)
	v.SetDefault("sentence_model", d.SentenceModel)
	v.SetDefault("min_chapter_chars", d.MinChapterChars)
	v.SetDefault("chunk_gap", d.ChunkGap.String())
	v.SetDefault("keep_temp", d.KeepTemp)

	v.SetDefault("engine", d.Engine)
	v.SetDefault("voice", d.Voice)
	v.SetDefault("speed", d.Speed)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("retries", d.Retries)

	v.SetDefault("ffmpeg", d.FFmpeg)
	v.SetDefault("bitrate", d.Bitrate)

	v.SetDefault("piper.binary", d.Piper.Binary)
	v.SetDefault("piper.model", d.Piper.Model)
	v.SetDefault("piper.config", d.Piper.Config)
	v.SetDefault("piper.speaker", d.Piper.Speaker)
	v.SetDefault("piper.noise_scale", d.Piper.NoiseScale)
	v.SetDefault("piper.noise_w", d.Piper.NoiseW)
	v.SetDefault("piper.use_cuda", d.Piper.UseCUDA)
	v.SetDefault("piper.timeout", d.Piper.Timeout.String())

	v.SetDefault("mock.words_per_minute", d.Mock.WordsPerMinute)
	v.SetDefault("mock.sample_rate", d.Mock.SampleRate)
	v.SetDefault("mock.delay", d.Mock.Delay.String())
	v.SetDefault("mock.failure_rate", d.Mock.FailureRate)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.max_age", d.Cache.MaxAge.String())
}
