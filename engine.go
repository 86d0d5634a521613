package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/epub2m4b/internal/cache"
	"github.com/dgnsrekt/epub2m4b/internal/device"
	"github.com/dgnsrekt/epub2m4b/internal/m4b"
	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/dgnsrekt/epub2m4b/internal/subprocess"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/tts/chunk"
	"github.com/dgnsrekt/epub2m4b/tts/engines/mock"
	"github.com/dgnsrekt/epub2m4b/tts/engines/piper"
	"github.com/dgnsrekt/epub2m4b/tts/sentence"
	"github.com/dgnsrekt/epub2m4b/tts/voice"
	"github.com/dgnsrekt/epub2m4b/utils"
)

// mergeTimeout bounds one ffmpeg run. Long books take a while to encode.
const mergeTimeout = 2 * time.Hour

// expandPaths resolves ~ and environment variables in every path setting.
func expandPaths(cfg *tts.Config) {
	cfg.Output = utils.ExpandPath(cfg.Output)
	cfg.SentenceModel = utils.ExpandPath(cfg.SentenceModel)
	cfg.Piper.Model = utils.ExpandPath(cfg.Piper.Model)
	cfg.Piper.Config = utils.ExpandPath(cfg.Piper.Config)
	cfg.Cache.Dir = utils.ExpandPath(cfg.Cache.Dir)
	for name, a := range cfg.Voices {
		a.Model = utils.ExpandPath(a.Model)
		cfg.Voices[name] = a
	}
}

// voiceDirs lists the directories searched for <name>.onnx models.
func voiceDirs() []string {
	dirs := []string{"."}
	data, err := gap.NewScope(gap.User, "epub2m4b").DataDirs()
	if err != nil {
		log.Debug("No data directories", "err", err)
		return dirs
	}
	for _, d := range data {
		dirs = append(dirs, filepath.Join(d, "voices"))
	}
	return dirs
}

func voiceRegistry(cfg tts.Config, logger *log.Logger) *voice.Registry {
	custom := make(map[string]voice.Resource, len(cfg.Voices))
	for name, a := range cfg.Voices {
		custom[name] = voice.Resource{ID: name, Model: a.Model, Config: a.Model + ".json", Speaker: a.Speaker}
	}
	return voice.NewRegistry(piper.ModelDir{Dirs: voiceDirs()}, custom, logger)
}

func newEngine(name string, cfg tts.Config, logger *log.Logger) (tts.Engine, error) {
	switch name {
	case "mock":
		return mock.New(mock.ConfigFrom(cfg.Mock)), nil
	case "piper":
		return newPiper(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", tts.ErrInvalidConfig, name)
	}
}

func newPiper(cfg tts.Config, logger *log.Logger) (*piper.Engine, error) {
	id := cfg.Voice
	if id == "" {
		id = cfg.Piper.Model
	}
	if id == "" {
		return nil, fmt.Errorf("%w: set voice or piper.model", tts.ErrMissingConfig)
	}

	res, err := voiceRegistry(cfg, logger).Resolve(id)
	if err != nil {
		return nil, err
	}
	if cfg.Voice == "" && cfg.Piper.Config != "" {
		res.Config = cfg.Piper.Config
	}
	if res.Speaker == 0 {
		res.Speaker = cfg.Piper.Speaker
	}

	dev := device.Detect()
	opts := piper.OptionsFrom(cfg.Piper, res, piper.WantCUDA(cfg.Piper.UseCUDA, string(dev.Device)))
	opts.Logger = logger

	e, err := piper.New(opts)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	logger.Info("Using piper", "voice", res.ID, "device", dev.Device, "cuda", opts.CUDA)
	return e, nil
}

func newChunker(cfg tts.Config, logger *log.Logger) (*chunk.Chunker, error) {
	mode, err := sentence.ParseMode(cfg.Segmenter)
	if err != nil {
		return nil, err
	}
	if mode == sentence.ModeAuto && cfg.SentenceModel == "" {
		return chunk.New(chunk.DefaultSegmenter(), chunk.WithMaxChars(cfg.MaxChars), chunk.WithLogger(logger))
	}
	seg, err := sentence.NewSegmenter(sentence.Options{
		Mode:      mode,
		ModelPath: cfg.SentenceModel,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return chunk.New(seg, chunk.WithMaxChars(cfg.MaxChars), chunk.WithLogger(logger))
}

func newMerger(cfg tts.Config, logger *log.Logger) (*m4b.Merger, error) {
	m := m4b.NewMerger(cfg.FFmpeg, cfg.Bitrate, subprocess.New(mergeTimeout, logger), logger)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// newConverter wires every collaborator of a conversion. The returned
// function closes the engine and the cache.
func newConverter(cfg tts.Config, reporter pipeline.Reporter, logger *log.Logger) (*pipeline.Converter, func(), error) {
	chunker, err := newChunker(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	merger, err := newMerger(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	engine, err := newEngine(cfg.Engine, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.Open(cfg.Cache, logger)
	if err != nil {
		_ = engine.Close()
		return nil, nil, err
	}

	conv := &pipeline.Converter{
		Engine:   engine,
		Chunker:  chunker,
		Cache:    store,
		Merger:   merger,
		Options:  pipeline.OptionsFrom(cfg),
		Reporter: reporter,
		Logger:   logger,
	}
	closer := func() {
		if s := store.Stats(); s.Hits+s.Misses > 0 {
			logger.Debug("Cache", "hits", s.Hits, "misses", s.Misses, "promoted", s.Promotions, "size", s.Size)
		}
		if err := store.Close(); err != nil {
			logger.Warn("Could not close cache", "err", err)
		}
		_ = engine.Close()
	}
	return conv, closer, nil
}
