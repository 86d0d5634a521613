package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/epub2m4b/internal/epubtext"
	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/dgnsrekt/epub2m4b/tts/chunk"
	"github.com/dgnsrekt/epub2m4b/tts/sentence"
)

var (
	inspectChapter int
	inspectWidth   int
	inspectCopy    bool

	inspectCmd = &cobra.Command{
		Use:     "inspect EPUB",
		Short:   "Show the chapters and chunks a book would produce",
		Long:    paragraph(fmt.Sprintf("\n%s an EPUB without synthesizing anything: metadata, kept chapters and chunk counts.", keyword("Inspect"))),
		Example: paragraph("epub2m4b inspect book.epub\nepub2m4b inspect --chapter 3 book.epub"),
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			expandPaths(&cfg)

			book, err := epubtext.OpenWith(args[0], epubtext.Options{MinChars: cfg.MinChapterChars, Logger: log.Default()})
			if err != nil {
				return err
			}
			chunker, err := newChunker(cfg, log.Default())
			if err != nil {
				return err
			}

			var md string
			if inspectChapter > 0 {
				if inspectChapter > len(book.Chapters) {
					return fmt.Errorf("chapter %d out of range (book has %d)", inspectChapter, len(book.Chapters))
				}
				md = chunksMarkdown(book.Chapters[inspectChapter-1], chunker)
			} else {
				md = bookMarkdown(book, chunker)
			}

			if inspectCopy {
				if err := clipboard.WriteAll(md); err != nil {
					log.Warn("Could not copy to clipboard", "err", err)
				} else {
					log.Info("Copied Markdown to clipboard", "bytes", len(md))
				}
			}

			out, err := renderMarkdown(md, inspectWidth)
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, out)
			return nil
		},
	}
)

func init() {
	inspectCmd.Flags().IntVarP(&inspectChapter, "chapter", "c", 0, "list the chunks of one chapter (1-based)")
	inspectCmd.Flags().IntVarP(&inspectWidth, "width", "w", 0, "word-wrap at width (0 detects the terminal)")
	inspectCmd.Flags().BoolVar(&inspectCopy, "copy", false, "also copy the unrendered Markdown to the clipboard")
}

func renderMarkdown(md string, width int) (string, error) {
	style := styles.AutoStyle
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if !isTerminal {
		style = styles.NoTTYStyle
	}
	if width == 0 {
		width = 80
		if isTerminal {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = min(w, 120)
			}
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	return r.Render(md)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func bookMarkdown(book *epubtext.Book, chunker *chunk.Chunker) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", book.Title)
	if len(book.Authors) > 0 {
		fmt.Fprintf(&b, "by %s", strings.Join(book.Authors, ", "))
		if book.Language != "" {
			fmt.Fprintf(&b, " (%s)", book.Language)
		}
		b.WriteString("\n\n")
	}

	var (
		total  int
		spoken time.Duration
	)
	b.WriteString("| # | Chapter | Characters | Chunks | Est. audio |\n")
	b.WriteString("|--:|---------|-----------:|-------:|-----------:|\n")
	for _, ch := range book.Chapters {
		n := len(chunker.Process(ch.Text))
		d := sentence.EstimateDuration(ch.Text)
		total += n
		spoken += d
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %s |\n",
			ch.Index+1, cell(ch.Title), humanize.Comma(int64(ch.Chars())), n, pipeline.FormatETA(d))
	}

	fmt.Fprintf(&b, "\n%d chapters, %s characters, %d chunks of at most %d characters, about %s of audio.\n",
		len(book.Chapters), humanize.Comma(int64(book.Chars())), total, chunker.MaxChars(), pipeline.FormatETA(spoken))

	if len(book.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range book.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

func chunksMarkdown(ch epubtext.Chapter, chunker *chunk.Chunker) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %d. %s\n\n", ch.Index+1, ch.Title)
	chunks := chunker.Process(ch.Text)
	for i, c := range chunks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	if len(chunks) == 0 {
		b.WriteString("No chunks.\n")
	}
	return b.String()
}
