// Package extract turns uploaded file bytes into raw text fragments.
//
// Extractors are selected by file extension alone. Supported formats:
//   - .xlsx, .xls, .csv: tabular, first sheet, one fragment per text cell
//   - .docx: paragraphs of word/document.xml
//   - .txt: one fragment per non-empty line
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thebtf/promptvault/pkg/models"
)

var (
	// ErrUnsupportedFormat is returned when no extractor handles the file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrDecodeFailure is returned when the bytes cannot be read as the claimed format.
	ErrDecodeFailure = errors.New("file could not be decoded")
)

// Extractor reads one file format.
type Extractor interface {
	Format() models.SourceFormat
	Extract(ctx context.Context, fileName string, data []byte) ([]models.RawFragment, error)
}

// Registry maps lower-cased extensions (with the leading dot) to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with every built-in extractor.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	tab := Tabular{}
	r.Register(".xlsx", tab)
	r.Register(".xls", tab)
	r.Register(".csv", tab)
	r.Register(".docx", Document{})
	r.Register(".txt", PlainText{})
	return r
}

// Register binds an extension to an extractor, replacing any previous binding.
func (r *Registry) Register(ext string, e Extractor) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.byExt[ext] = e
}

// Lookup returns the extractor for a file name.
func (r *Registry) Lookup(fileName string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	e, ok := r.byExt[ext]
	if !ok {
		if ext == "" {
			return nil, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, fileName)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return e, nil
}

// Extract dispatches on the file extension. The bytes are not inspected when
// the extension is unknown.
func (r *Registry) Extract(ctx context.Context, fileName string, data []byte) ([]models.RawFragment, error) {
	e, err := r.Lookup(fileName)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.Extract(ctx, fileName, data)
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func decodeError(format string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecodeFailure, format, err)
}

func fragments(texts []string, fileName string, format models.SourceFormat) []models.RawFragment {
	out := make([]models.RawFragment, 0, len(texts))
	for _, t := range texts {
		out = append(out, models.RawFragment{Text: t, SourceFile: fileName, SourceFormat: format})
	}
	return out
}
