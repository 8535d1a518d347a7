package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/thebtf/promptvault/pkg/models"
)

const docxBodyPath = "word/document.xml"

// Document reads .docx files. Paragraph text is flattened and split into one
// fragment per line; layout is not preserved.
type Document struct{}

// Format implements Extractor.
func (Document) Format() models.SourceFormat { return models.FormatDocument }

// Extract implements Extractor.
func (d Document) Extract(ctx context.Context, fileName string, data []byte) ([]models.RawFragment, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, decodeError("docx", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPath {
			body = f
			break
		}
	}
	if body == nil {
		return nil, decodeError("docx", errors.New("missing "+docxBodyPath))
	}

	rc, err := body.Open()
	if err != nil {
		return nil, decodeError("docx", err)
	}
	defer rc.Close()

	text, err := flattenDocx(ctx, rc)
	if err != nil {
		return nil, err
	}
	return fragments(splitLines(text), fileName, d.Format()), nil
}

// flattenDocx walks WordprocessingML and emits the visible text. Paragraph
// ends and line breaks become newlines, tabs become tab characters.
func flattenDocx(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb  strings.Builder
		inT bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", decodeError("docx", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inT = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inT = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inT {
				sb.Write(el)
			}
		}
	}
	return sb.String(), nil
}
