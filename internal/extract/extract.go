package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeTXT  = "text/plain"
)

// ErrUnsupportedType indicates a content type the extractor cannot handle.
var ErrUnsupportedType = errors.New("unsupported content type")

// CorruptError indicates an unparseable document container. It is distinct
// from the empty-text outcome, which is a valid Result.
type CorruptError struct {
	Format string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt %s document: %v", e.Format, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Result is the outcome of text extraction. Empty marks a document that
// parsed fine but carries no text layer (e.g. a scanned PDF). Text is never
// whitespace-only when Empty is false.
type Result struct {
	Text  string
	Empty bool
}

// Extract pulls plain text from raw document bytes. Libraries used:
// github.com/ledongthuc/pdf (PDF); DOCX is unpacked via archive/zip.
func Extract(ctx context.Context, data []byte, contentType string, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var (
		text string
		err  error
	)
	switch normalizeContentType(contentType, fileName) {
	case mimePDF:
		text, err = extractPDF(data)
	case mimeDOCX:
		text, err = extractDOCX(data)
	case mimeTXT:
		text, err = extractTXT(data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(text) == "" {
		return Result{Empty: true}, nil
	}
	return Result{Text: text}, nil
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", &CorruptError{Format: "pdf", Err: err}
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", &CorruptError{Format: "pdf", Err: err}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", &CorruptError{Format: "pdf", Err: err}
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", &CorruptError{Format: "docx", Err: errors.New("empty data")}
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", &CorruptError{Format: "docx", Err: err}
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", &CorruptError{Format: "docx", Err: errors.New("document.xml not found")}
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", &CorruptError{Format: "docx", Err: err}
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", &CorruptError{Format: "docx", Err: err}
	}

	return stripDocxXML(string(raw)), nil
}

// extractTXT decodes plain text as UTF-8, falling back to CP1251 for
// legacy uploads.
func extractTXT(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", &CorruptError{Format: "txt", Err: err}
	}
	return string(decoded), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if last := buf.Len(); last > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeContentType(contentType string, fileName string) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch clean {
	case mimePDF, mimeDOCX, mimeTXT:
		return clean
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt":
		return mimeTXT
	default:
		return clean
	}
}
