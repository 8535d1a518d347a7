package extract

import (
	"context"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/thebtf/promptvault/pkg/models"
)

// PlainText reads .txt files, one fragment per non-empty line.
type PlainText struct{}

// Format implements Extractor.
func (PlainText) Format() models.SourceFormat { return models.FormatPlainText }

// Extract implements Extractor.
func (p PlainText) Extract(ctx context.Context, fileName string, data []byte) ([]models.RawFragment, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fragments(splitLines(text), fileName, p.Format()), nil
}

// decodeText honours a UTF-8 or UTF-16 byte order mark. Input without a BOM
// must be valid UTF-8.
func decodeText(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(encoding.UTF8Validator), data)
	if err != nil {
		return "", decodeError("text", err)
	}
	return string(out), nil
}

// splitLines splits on runs of newlines and drops empty pieces.
func splitLines(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' })
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimRight(p, "\r")
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
