package document

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docgraph/docgraph/engine/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_OneDocumentPerPage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "guide.pdf"), "stub")
	writeFile(t, filepath.Join(dir, "nested", "annex.pdf"), "stub")
	writeFile(t, filepath.Join(dir, "notes.docx"), "ignored")

	l := NewLoader(dir)
	l.readPages = func(path string) ([]string, error) {
		if strings.HasSuffix(path, "annex.pdf") {
			return []string{"Annex text."}, nil
		}
		return []string{"SAP HANA on vSphere.  Page 1 of 2", "", "NUMA  tuning."}, nil
	}

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d: %+v", len(docs), docs)
	}
	want := []domain.Document{
		{ID: "guide.pdf#p1", Source: "guide.pdf", Page: 1, Text: "SAP HANA on vSphere."},
		{ID: "guide.pdf#p3", Source: "guide.pdf", Page: 3, Text: "NUMA tuning."},
		{ID: "nested/annex.pdf#p1", Source: "nested/annex.pdf", Page: 1, Text: "Annex text."},
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("doc %d = %+v, want %+v", i, docs[i], want[i])
		}
	}
}

func TestLoad_NonRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.txt"), "Top level.")
	writeFile(t, filepath.Join(dir, "sub", "deep.txt"), "Deep.")

	l := &Loader{Dir: dir, Exts: []string{".txt"}}
	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "top.txt" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestLoad_UnreadableFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.pdf"), "this is not a pdf")

	_, err := NewLoader(dir).Load(context.Background())
	if !errors.Is(err, domain.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestPageTextsLogsToGivenLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	pages := pageTexts(3, func(i int) (string, error) {
		if i == 2 {
			return "", errors.New("bad font")
		}
		return "page " + string(rune('0'+i)), nil
	}, "guide.pdf", log)

	if len(pages) != 3 || pages[0] != "page 1" || pages[1] != "" || pages[2] != "page 3" {
		t.Fatalf("unexpected pages %q", pages)
	}
	out := buf.String()
	if !strings.Contains(out, "document: page text") || !strings.Contains(out, "page=2") || !strings.Contains(out, "bad font") {
		t.Fatalf("page failure not logged to the loader's logger: %q", out)
	}
}

func TestLoad_UsesLoaderLogger(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.pdf"), "this is not a pdf")
	var buf bytes.Buffer
	l := NewLoader(dir)
	l.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := l.Load(context.Background()); !errors.Is(err, domain.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
	if !strings.Contains(buf.String(), "document: skipping unreadable file") {
		t.Fatalf("expected skip logged to the loader's logger, got %q", buf.String())
	}
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestLoad_ReadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "stub")
	l := NewLoader(dir)
	l.readPages = func(string) ([]string, error) { return nil, errors.New("encrypted") }

	_, err := l.Load(context.Background())
	if !errors.Is(err, domain.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestClean(t *testing.T) {
	in := "  Memory\t\tsizing   guide \r\n\n\n\nPage 12 of 40\nReserve all memory.  "
	got := Clean(in)
	want := "Memory sizing guide\n\nReserve all memory."
	if got != want {
		t.Errorf("Clean = %q, want %q", got, want)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"Hello world. How are you? Fine!", 3},
		{"Line one\nLine two\nLine three", 3},
		{"No punctuation", 1},
		{"numa.nodeAffinity controls placement.", 1},
		{"", 0},
		{"Reserve memory.\u00a0Then power on.", 2},
		{"Enable vNUMA.\u3000Check the host.", 2},
		{"Ende.Überblick folgt.", 1},
	}
	for _, tt := range tests {
		if got := splitSentences(tt.input); len(got) != tt.want {
			t.Errorf("splitSentences(%q) = %d sentences %q, want %d", tt.input, len(got), got, tt.want)
		}
	}
}

func TestChunkSentences_Overlap(t *testing.T) {
	sentences := make([]string, 100)
	for i := range sentences {
		sentences[i] = "This is a test sentence with several words in it to count as multiple tokens."
	}
	chunks := chunkSentences(sentences, 50, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := wordCount(c); n > 50 {
			t.Errorf("chunk %d has %d words", i, n)
		}
	}
	// Consecutive chunks share the overlapping sentence.
	if !strings.HasPrefix(chunks[1], sentences[0]) {
		t.Errorf("expected overlap in chunk 1")
	}
}

func TestChunkSentences_Edges(t *testing.T) {
	if got := chunkSentences(nil, 10, 2); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	got := chunkSentences([]string{"a b c"}, 0, -1)
	if len(got) != 1 || got[0] != "a b c" {
		t.Errorf("unexpected %v", got)
	}
	// A sentence longer than the budget still forms its own chunk.
	got = chunkSentences([]string{"one two three four", "five"}, 2, 0)
	if len(got) != 2 {
		t.Errorf("expected 2 chunks, got %v", got)
	}
}

func TestSplit(t *testing.T) {
	docs := []domain.Document{
		{ID: "g.pdf#p1", Source: "g.pdf", Page: 1, Text: "First page. Still first."},
		{ID: "g.pdf#p2", Source: "g.pdf", Page: 2, Text: "Second page."},
	}
	chunks := Split(docs, DefaultChunkSize, DefaultOverlap)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	c := chunks[1]
	if c.ID != "g.pdf#p2#0" || c.DocID != "g.pdf#p2" || c.Page != 2 || c.Source != "g.pdf" || c.Text != "Second page." {
		t.Errorf("unexpected chunk %+v", c)
	}
}
