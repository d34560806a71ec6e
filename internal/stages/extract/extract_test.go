package extract

import (
	"context"
	"errors"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/stages"
	"strings"
	"testing"
)

func TestRouter_PlainText(t *testing.T) {
	r := NewRouter(nil)

	text, err := r.Extract(context.Background(), &models.Payload{
		FileName: "notes.txt",
		MimeType: "text/plain; charset=utf-8",
		Data:     []byte("  hello world \n"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected 'hello world', got %q", text)
	}
}

func TestRouter_EmptyTextIsNoTextFound(t *testing.T) {
	r := NewRouter(nil)

	_, err := r.Extract(context.Background(), &models.Payload{
		FileName: "blank.txt",
		MimeType: "text/plain",
		Data:     []byte("   \n\t"),
	})

	var extErr *stages.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if err.Error() != "no text found" {
		t.Errorf("expected 'no text found', got %q", err.Error())
	}
}

func TestRouter_UnsupportedType(t *testing.T) {
	r := NewRouter(nil)

	_, err := r.Extract(context.Background(), &models.Payload{
		FileName: "image.bin",
		MimeType: "application/octet-stream",
		Data:     []byte{0x1, 0x2},
	})
	if !errors.Is(err, stages.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestRouter_FallsBackToExtension(t *testing.T) {
	r := NewRouter(nil)

	text, err := r.Extract(context.Background(), &models.Payload{
		FileName: "page.html",
		MimeType: "application/octet-stream",
		Data:     []byte("<html><body><p>From extension</p></body></html>"),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "From extension" {
		t.Errorf("expected 'From extension', got %q", text)
	}
}

func TestRouter_WrapsPlainErrors(t *testing.T) {
	r := NewRouter(nil)
	r.Register("text/plain", stages.ExtractorFunc(func(ctx context.Context, p *models.Payload) (string, error) {
		return "", errors.New("corrupt file")
	}))

	_, err := r.Extract(context.Background(), &models.Payload{MimeType: "text/plain"})
	var extErr *stages.ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if err.Error() != "corrupt file" {
		t.Errorf("expected 'corrupt file', got %q", err.Error())
	}
}

func TestHTMLExtractor(t *testing.T) {
	html := `<html><head><title>Cells</title><style>p{}</style></head>
<body>
  <script>var x = 1;</script>
  <h1>The Cell</h1>
  <p>Cells are the   basic unit of life.</p>
  <ul><li>Nucleus</li><li><p>Mitochondria</p></li></ul>
</body></html>`

	text, err := HTMLExtractor{}.Extract(context.Background(), &models.Payload{Data: []byte(html)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := "Cells\nThe Cell\nCells are the basic unit of life.\nNucleus\nMitochondria"
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
	if strings.Contains(text, "var x") {
		t.Error("expected script content to be dropped")
	}
}

func TestTopicExtractor(t *testing.T) {
	text, err := TopicExtractor{}.Extract(context.Background(), &models.Payload{
		MimeType: models.MimeTopic,
		Topic:    &models.Topic{Subject: "Biology", Topic: "Photosynthesis", Grade: "8"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"Topic: Photosynthesis", "Subject: Biology", "Grade level: 8"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}

	if _, err := (TopicExtractor{}).Extract(context.Background(), &models.Payload{}); err == nil {
		t.Error("expected error for missing topic")
	}
}

func TestTextFromContent(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf 72 712 Td (Hello World) Tj 0 -14 Td [(Photo) -300 (synthesis)] TJ ET
BT 72 680 Td (Escaped \(paren\)) Tj <4869> Tj ET`)

	got := strings.TrimSpace(textFromContent(stream))
	want := "Hello World\nPhoto synthesis\nEscaped (paren)Hi"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPageNumber(t *testing.T) {
	if n := pageNumber("source_Content_page_12.txt"); n != 12 {
		t.Errorf("expected 12, got %d", n)
	}
	if n := pageNumber("noindex"); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}

func TestPDFExtractor_RejectsGarbage(t *testing.T) {
	e := NewPDFExtractor(t.TempDir())

	if _, err := e.Extract(context.Background(), &models.Payload{Data: []byte("not a pdf")}); err == nil {
		t.Error("expected error for invalid pdf")
	}
}
