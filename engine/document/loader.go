// Package document loads PDF pages from a directory tree and splits them into
// chunks sized for entity extraction and embedding.
package document

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docgraph/docgraph/engine/domain"
)

// DefaultExts are the file extensions loaded when none are configured.
var DefaultExts = []string{".pdf"}

// Loader reads every matching file under Dir into one Document per page.
type Loader struct {
	Dir       string
	Exts      []string
	Recursive bool
	Logger    *slog.Logger

	readPages func(path string) ([]string, error)
}

// NewLoader creates a recursive PDF loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir, Exts: DefaultExts, Recursive: true}
}

// Load walks the directory. Unreadable files and pages are logged and skipped;
// an empty result is ErrNoDocuments.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	info, err := os.Stat(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document: %s is not a directory", l.Dir)
	}

	var docs []domain.Document
	err = filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("document: walk", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != l.Dir && !l.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.wanted(path) {
			return nil
		}

		pages, err := l.pages(path, log)
		if err != nil {
			log.Warn("document: skipping unreadable file", "path", path, "error", err)
			return nil
		}
		rel, relErr := filepath.Rel(l.Dir, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for i, text := range pages {
			text = Clean(text)
			if text == "" {
				log.Debug("document: empty page", "path", rel, "page", i+1)
				continue
			}
			docs = append(docs, domain.Document{
				ID:     fmt.Sprintf("%s#p%d", rel, i+1),
				Source: rel,
				Page:   i + 1,
				Text:   text,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("document: walk %s: %w", l.Dir, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document: %s: %w", l.Dir, domain.ErrNoDocuments)
	}
	log.Info("document: loaded", "dir", l.Dir, "pages", len(docs))
	return docs, nil
}

func (l *Loader) wanted(path string) bool {
	exts := l.Exts
	if len(exts) == 0 {
		exts = DefaultExts
	}
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (l *Loader) pages(path string, log *slog.Logger) ([]string, error) {
	if l.readPages != nil {
		return l.readPages(path)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path, log)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(b)}, nil
}

// readPDF extracts plain text page by page. Pages that fail extraction come
// back empty so page numbers stay aligned.
func readPDF(path string, log *slog.Logger) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	return pageTexts(r.NumPage(), func(i int) (string, error) {
		p := r.Page(i)
		if p.V.IsNull() {
			return "", nil
		}
		return p.GetPlainText(nil)
	}, path, log), nil
}

// pageTexts collects pages 1..n. A page whose text fails is logged and left
// empty.
func pageTexts(n int, text func(page int) (string, error), path string, log *slog.Logger) []string {
	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		t, err := text(i)
		if err != nil {
			log.Warn("document: page text", "path", path, "page", i, "error", err)
			continue
		}
		pages[i-1] = t
	}
	return pages
}

var (
	pageMarker = regexp.MustCompile(`(?i)\bpage\s+\d+\s+of\s+\d+\b`)
	spaceRun   = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankRun   = regexp.MustCompile(`\n\s*\n+`)
)

// Clean removes page markers and collapses whitespace, keeping paragraph
// breaks.
func Clean(text string) string {
	text = pageMarker.ReplaceAllString(text, " ")
	text = spaceRun.ReplaceAllString(text, " ")
	text = blankRun.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSpace(ln)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
