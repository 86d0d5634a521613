package m4b

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/subprocess"
)

// DefaultBitrate is the AAC bitrate used for speech.
const DefaultBitrate = "64k"

// ConcatList is the name of the ffmpeg concat demuxer input written next to
// the metadata file.
const ConcatList = "concat_list.txt"

// Merger concatenates chapter WAVs with ffmpeg.
type Merger struct {
	FFmpeg  string
	Bitrate string
	Runner  subprocess.Runner
	Logger  *log.Logger
}

// NewMerger returns a Merger with defaults filled in.
func NewMerger(ffmpeg, bitrate string, runner subprocess.Runner, logger *log.Logger) *Merger {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = DefaultBitrate
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Merger{FFmpeg: ffmpeg, Bitrate: bitrate, Runner: runner, Logger: logger}
}

// Validate checks that ffmpeg can be found.
func (m *Merger) Validate() error {
	_, err := subprocess.LookPath(m.FFmpeg)
	return err
}

// Args returns the ffmpeg argument vector.
func (m *Merger) Args(listPath, metadataPath, out string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", metadataPath,
		"-map_metadata", "1",
		"-c:a", "aac",
		"-b:a", m.Bitrate,
		"-vn",
		out,
	}
}

// Merge writes the concat list beside metadataPath, runs ffmpeg and removes
// the list again.
func (m *Merger) Merge(ctx context.Context, wavs []string, metadataPath, out string) error {
	if len(wavs) == 0 {
		return ErrNoChapters
	}

	listPath := filepath.Join(filepath.Dir(metadataPath), ConcatList)
	if err := WriteConcatList(listPath, wavs); err != nil {
		return err
	}
	defer func() { _ = os.Remove(listPath) }()

	m.Logger.Info("Merging chapters", "files", len(wavs), "output", out)

	req := subprocess.Request{
		Name: m.FFmpeg,
		Args: m.Args(listPath, metadataPath, out),
	}
	if _, err := m.Runner.Run(ctx, req); err != nil {
		return fmt.Errorf("%w: %w", ErrFFmpegFailed, err)
	}

	m.Logger.Info("Audiobook written", "output", out)
	return nil
}

// WriteConcatList writes one `file '<abs path>'` line per WAV.
func WriteConcatList(path string, wavs []string) error {
	var sb strings.Builder
	for _, w := range wavs {
		abs, err := filepath.Abs(w)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", w, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", quoteConcat(abs))
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// quoteConcat escapes single quotes for the concat demuxer.
func quoteConcat(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
