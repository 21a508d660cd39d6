// Package document turns attachment bytes into text for the intelligence
// service and parses statements of values without it when possible.
package document

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// MaxSize bounds how much of an attachment is read into memory.
const MaxSize = 32 << 20

type Kind string

const (
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
	KindText        Kind = "text"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

var spreadsheetExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xltx": true,
	".xltm": true,
}

// Document is an attachment loaded into memory.
type Document struct {
	Name string
	Kind Kind
	data []byte
}

// Read loads r and detects its format from content and file name. An
// unnamed zip is assumed to be a workbook.
func Read(r io.Reader, fileName string) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > MaxSize {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read document", fmt.Errorf("%s exceeds %d bytes", fileName, MaxSize))
	}

	doc := &Document{Name: fileName, data: data}
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		doc.Kind = KindPDF
	case bytes.HasPrefix(data, zipMagic) && (ext == "" || spreadsheetExtensions[ext]):
		doc.Kind = KindSpreadsheet
	case utf8.Valid(data):
		doc.Kind = KindText
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "read document", fmt.Errorf("unsupported binary format: %s", fileName))
	}
	return doc, nil
}

// Text renders the document as plain text.
func (d *Document) Text() (string, error) {
	var (
		text string
		err  error
	)
	switch d.Kind {
	case KindPDF:
		text, err = pdfText(d.data)
	case KindSpreadsheet:
		text, err = spreadsheetText(d.data)
	default:
		text = string(d.data)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "render document", fmt.Errorf("no text in %s", d.Name))
	}
	return text, nil
}

// pdfText recovers from parser panics, which the pdf package raises on some
// malformed files.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrInvalidInput, "parse pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(raw), nil
}

func spreadsheetText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open spreadsheet", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "# %s\n", sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
