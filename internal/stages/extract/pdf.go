package extract

import (
	"context"
	"fmt"
	"notes-pipeline/internal/models"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFExtractor pulls text out of PDF page content streams.
type PDFExtractor struct {
	tempRoot string
}

// NewPDFExtractor creates an extractor that stages files under tempRoot
// (the system temp dir when empty).
func NewPDFExtractor(tempRoot string) *PDFExtractor {
	return &PDFExtractor{tempRoot: tempRoot}
}

func (e *PDFExtractor) Extract(ctx context.Context, payload *models.Payload) (string, error) {
	if len(payload.Data) == 0 {
		return "", fmt.Errorf("empty pdf")
	}

	workDir, err := os.MkdirTemp(e.tempRoot, "notes-pdf-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inPath := filepath.Join(workDir, "source.pdf")
	if err := os.WriteFile(inPath, payload.Data, 0o600); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	pageCount, err := api.PageCountFile(inPath)
	if err != nil {
		return "", fmt.Errorf("could not read pdf: %w", err)
	}
	if pageCount == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	outDir := filepath.Join(workDir, "content")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return "", fmt.Errorf("create content dir: %w", err)
	}
	if err := api.ExtractContentFile(inPath, outDir, nil, nil); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	files, err := contentFiles(outDir)
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, len(files))
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("read content stream: %w", err)
		}
		if text := strings.TrimSpace(textFromContent(raw)); text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// contentFiles lists extracted content streams ordered by page number.
func contentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list content streams: %w", err)
	}

	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pages = append(pages, page{n: pageNumber(entry.Name()), path: filepath.Join(dir, entry.Name())})
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}

// pageNumber reads the trailing page number from names like "source_Content_page_3.txt".
func pageNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// textFromContent decodes the text-showing operators of a content stream.
// Only literal and simple hex strings are decoded; font encodings are ignored.
func textFromContent(stream []byte) string {
	var out strings.Builder
	var operands []string
	var inArray bool
	var array []string

	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteral(stream, i)
			if inArray {
				array = append(array, s)
			} else {
				operands = append(operands, s)
			}
			i = next
		case c == '<' && i+1 < len(stream) && stream[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(stream) && stream[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHex(stream, i)
			if inArray {
				array = append(array, s)
			} else {
				operands = append(operands, s)
			}
			i = next
		case c == '[':
			inArray = true
			array = array[:0]
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isSpace(c):
			i++
		default:
			start := i
			for i < len(stream) && !isSpace(stream[i]) && !isDelimiter(stream[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			token := string(stream[start:i])
			if inArray {
				// large negative kerning inside TJ usually marks a word gap
				if n, err := strconv.ParseFloat(token, 64); err == nil && n < -200 {
					array = append(array, " ")
				}
				continue
			}
			switch token {
			case "Tj":
				for _, s := range operands {
					out.WriteString(s)
				}
			case "TJ":
				for _, s := range array {
					out.WriteString(s)
				}
				array = array[:0]
			case "'", "\"":
				newline()
				for _, s := range operands {
					out.WriteString(s)
				}
			case "Td", "TD", "T*", "ET":
				newline()
			}
			if !isNumber(token) {
				operands = operands[:0]
			}
		}
	}

	return out.String()
}

func readLiteral(b []byte, i int) (string, int) {
	var sb strings.Builder
	depth := 0
	for i < len(b) {
		c := b[i]
		switch c {
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		case '\\':
			i++
			if i >= len(b) {
				return sb.String(), i
			}
			switch e := b[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					n := 0
					j := 0
					for j < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7' {
						n = n*8 + int(b[i]-'0')
						i++
						j++
					}
					i--
					sb.WriteByte(byte(n))
				} else {
					sb.WriteByte(e)
				}
			}
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), i
}

func readHex(b []byte, i int) (string, int) {
	i++
	var digits []byte
	for i < len(b) && b[i] != '>' {
		if !isSpace(b[i]) {
			digits = append(digits, b[i])
		}
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var sb strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		n, err := strconv.ParseUint(string(digits[j:j+2]), 16, 8)
		if err != nil {
			continue
		}
		// skip bytes that are not printable single-byte text
		if n >= 0x20 && n < 0x7f {
			sb.WriteByte(byte(n))
		}
	}
	return sb.String(), i + 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isNumber(token string) bool {
	_, err := strconv.ParseFloat(token, 64)
	return err == nil
}
