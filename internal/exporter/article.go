package exporter

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/styles"
	pdf "github.com/stephenafamo/goldmark-pdf"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"

	"github.com/obiwac/obiwac.github.io/internal/content"
)

// Format is an article download format.
type Format string

const (
	// FormatMarkdown is the article source with its title as a heading.
	FormatMarkdown Format = "md"
	// FormatPDF is the article typeset as a PDF document.
	FormatPDF Format = "pdf"
)

// pdfStyle is the chroma style for code blocks on a white page.
const pdfStyle = "github"

// ValidFormats returns the list of supported download formats.
func ValidFormats() []Format {
	return []Format{FormatPDF, FormatMarkdown}
}

// ParseFormat maps a file extension ("pdf", ".md") to a Format.
func ParseFormat(ext string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")))
	for _, valid := range ValidFormats() {
		if f == valid {
			return f, true
		}
	}
	return "", false
}

// WriteArticle writes post to w in the given format.
func WriteArticle(w io.Writer, post *content.Post, format Format) error {
	src := articleSource(post)
	switch format {
	case FormatMarkdown:
		_, err := w.Write(src)
		return err
	case FormatPDF:
		return writePDF(w, src)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func articleSource(post *content.Post) []byte {
	var buf bytes.Buffer
	buf.Grow(len(post.Source) + len(post.Title) + 4)
	buf.WriteString("# ")
	buf.WriteString(post.Title)
	buf.WriteString("\n\n")
	buf.Write(bytes.TrimLeft(post.Source, "\n"))
	return buf.Bytes()
}

// writePDF typesets markdown with the same extension set the site renders
// with, so tables and highlighted code survive the conversion.
func writePDF(w io.Writer, src []byte) error {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
			highlighting.NewHighlighting(
				highlighting.WithStyle(pdfStyle),
			),
		),
		goldmark.WithRenderer(pdf.New(pdfOptions()...)),
	)

	if err := md.Convert(src, w); err != nil {
		return fmt.Errorf("convert markdown to PDF: %w", err)
	}
	return nil
}

// pdfOptions sticks to the fonts built into the PDF writer. The library
// defaults are fetched from Google Fonts on every conversion.
func pdfOptions() []pdf.Option {
	return []pdf.Option{
		pdf.WithHeadingFont(pdf.FontHelvetica),
		pdf.WithBodyFont(pdf.FontHelvetica),
		pdf.WithCodeFont(pdf.FontCourier),
		pdf.WithCodeBlockTheme(styles.Get(pdfStyle)),
	}
}

// ContentType returns the MIME type for the given format.
func ContentType(format Format) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// FileName is the download name of post in format.
func FileName(post *content.Post, format Format) string {
	return post.Slug + "." + string(format)
}
