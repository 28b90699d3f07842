// Package extract turns uploaded file bytes into plain text for ingestion.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
)

// Text extracts plain text from file bytes based on the file extension.
// Supported formats are PDF, plain text and markdown. Unsupported
// extensions return domain.ErrUnsupportedFormat.
func Text(fileBytes []byte, fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return fromPDF(fileBytes)
	case ".txt", ".md", ".markdown":
		return fromPlainText(fileBytes)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, fileName)
	}
}

func fromPDF(fileBytes []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not lose the document
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return b.String(), nil
}

func fromPlainText(fileBytes []byte) (string, error) {
	if !utf8.Valid(fileBytes) {
		return "", fmt.Errorf("%w: file is not valid UTF-8", domain.ErrUnsupportedFormat)
	}
	return string(fileBytes), nil
}
