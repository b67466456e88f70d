// Package highlight renders raw protocol bytes for humans: a classic
// hex/ASCII dump for the traffic logger, and a best-effort preview
// (JSON-highlighted, plain text, or a short hex fallback) for the
// live inspector.
package highlight

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	jsonLexer chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	jsonLexer = lexers.Get("json")
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

var (
	offsetStyle    = lipgloss.NewStyle().Faint(true)
	printableStyle = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

const hexBytesPerLine = 16

// Hex renders data as a 16-bytes-per-line hex+ASCII dump: an offset
// column, the hex byte column, and an ASCII gutter with non-printable
// bytes shown as a dimmed ".".
func Hex(data []byte) string {
	if len(data) == 0 {
		return dimStyle.Render("(empty)")
	}

	var out strings.Builder
	for off := 0; off < len(data); off += hexBytesPerLine {
		end := off + hexBytesPerLine
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		out.WriteString(offsetStyle.Render(hexOffset(off)))
		out.WriteByte(' ')

		for i := 0; i < hexBytesPerLine; i++ {
			if i < len(line) {
				out.WriteString(hexByte(line[i]))
			} else {
				out.WriteString("   ")
			}
			if i == hexBytesPerLine/2-1 {
				out.WriteByte(' ')
			}
		}

		out.WriteString(" |")
		for _, c := range line {
			if c >= 0x20 && c < 0x7f {
				out.WriteString(printableStyle.Render(string(rune(c))))
			} else {
				out.WriteString(dimStyle.Render("."))
			}
		}
		out.WriteString("|\n")
	}
	return strings.TrimRight(out.String(), "\n")
}

func hexOffset(off int) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[off&0xf]
		off >>= 4
	}
	return string(b)
}

func hexByte(b byte) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xf], ' '})
}

// previewSample bounds how many bytes a non-JSON, non-text fallback
// dumps, so a stray multi-megabyte payload doesn't flood a log line.
const previewSample = 32

// Preview renders a best-effort human preview of an arbitrary payload.
// It never panics, regardless of input validity.
func Preview(data []byte) string {
	if len(data) == 0 {
		return dimStyle.Render("(empty)")
	}
	if looksLikeJSON(data) && utf8.Valid(data) {
		if rendered, ok := highlightJSON(string(data)); ok {
			return rendered
		}
	}
	if utf8.Valid(data) && isPrintableText(data) {
		return dimStyle.Render(string(data))
	}
	sample := data
	if len(sample) > previewSample {
		sample = sample[:previewSample]
	}
	return dimStyle.Render("hex: ") + oneLineHex(sample)
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '{', '[', '"':
		return true
	default:
		return false
	}
}

func highlightJSON(s string) (string, bool) {
	if jsonLexer == nil || formatter == nil || style == nil {
		return "", false
	}
	iterator, err := jsonLexer.Tokenise(nil, s)
	if err != nil {
		return "", false
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", false
	}
	return strings.TrimRight(buf.String(), "\n"), true
}

func isPrintableText(data []byte) bool {
	for _, r := range string(data) {
		if r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		if r < 0x20 || r == utf8.RuneError {
			return false
		}
	}
	return true
}

func oneLineHex(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		out.WriteString(hexByte(b))
	}
	return strings.TrimSpace(out.String())
}
