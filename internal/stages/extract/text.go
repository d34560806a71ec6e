package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"notes-pipeline/internal/models"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// TextExtractor returns plain-text uploads as-is.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, payload *models.Payload) (string, error) {
	data := bytes.TrimPrefix(payload.Data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("file is not valid UTF-8 text")
	}
	return string(data), nil
}

// HTMLExtractor returns the visible text of an HTML document.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(_ context.Context, payload *models.Payload) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload.Data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var blocks []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are visited on their own
		if s.Find("p, li, blockquote, pre").Length() > 0 {
			return
		}
		if line := collapse(s.Text()); line != "" {
			blocks = append(blocks, line)
		}
	})
	if len(blocks) == 0 {
		if body := collapse(root.Text()); body != "" {
			blocks = append(blocks, body)
		}
	}

	var lines []string
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, title)
	}
	lines = append(lines, blocks...)

	return strings.Join(lines, "\n"), nil
}

// TopicExtractor builds source text from a typed topic.
type TopicExtractor struct{}

func (TopicExtractor) Extract(_ context.Context, payload *models.Payload) (string, error) {
	t := payload.Topic
	if t == nil {
		return "", errors.New("topic missing")
	}
	if strings.TrimSpace(t.Topic) == "" {
		return "", errors.New("topic is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(t.Topic))
	if s := strings.TrimSpace(t.Subject); s != "" {
		fmt.Fprintf(&b, "Subject: %s\n", s)
	}
	if g := strings.TrimSpace(t.Grade); g != "" {
		fmt.Fprintf(&b, "Grade level: %s\n", g)
	}
	if d := strings.TrimSpace(t.Details); d != "" {
		fmt.Fprintf(&b, "Details: %s\n", d)
	}
	return b.String(), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
