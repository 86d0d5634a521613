// Package m4b writes FFmpeg chapter metadata and merges chapter WAV files
// into a single chaptered M4B audiobook.
package m4b

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

var (
	// ErrNoChapters is returned when there is nothing to merge.
	ErrNoChapters = errors.New("no chapters to merge")

	// ErrFFmpegFailed wraps a failed ffmpeg invocation.
	ErrFFmpegFailed = errors.New("ffmpeg failed")
)

// Meta is the book-level metadata.
type Meta struct {
	Title   string
	Authors []string
}

// ChapterMark is one chapter entry in the metadata file.
type ChapterMark struct {
	Title    string
	Duration time.Duration
}

var metaEscaper = strings.NewReplacer(
	`\`, `\\`,
	"=", `\=`,
	";", `\;`,
	"#", `\#`,
	"\n", `\`+"\n",
)

// WriteMetadata writes an FFMETADATA1 document. Chapter boundaries are
// cumulative whole milliseconds; each chapter's duration is truncated before
// it is added.
func WriteMetadata(w io.Writer, meta Meta, chapters []ChapterMark) error {
	if len(chapters) == 0 {
		return ErrNoChapters
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, ";FFMETADATA1")
	fmt.Fprintf(bw, "title=%s\n", metaEscaper.Replace(meta.Title))
	if len(meta.Authors) > 0 {
		fmt.Fprintf(bw, "artist=%s\n", metaEscaper.Replace(strings.Join(meta.Authors, ", ")))
	}
	fmt.Fprintln(bw)

	var start int64
	for i, ch := range chapters {
		end := start + ch.Duration.Milliseconds()

		title := ch.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}

		fmt.Fprintln(bw, "[CHAPTER]")
		fmt.Fprintln(bw, "TIMEBASE=1/1000")
		fmt.Fprintf(bw, "START=%d\n", start)
		fmt.Fprintf(bw, "END=%d\n", end)
		fmt.Fprintf(bw, "title=%s\n\n", metaEscaper.Replace(title))

		start = end
	}

	return bw.Flush()
}

// WriteMetadataFile writes the metadata document to path.
func WriteMetadataFile(path string, meta Meta, chapters []ChapterMark) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	if err := WriteMetadata(f, meta, chapters); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
