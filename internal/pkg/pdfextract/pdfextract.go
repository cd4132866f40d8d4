package pdfextract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes caps uploads before they are buffered in memory.
const maxPDFBytes = 32 << 20

// ExtractText buffers r and returns the PDF's plain text. A PDF with no
// extractable text yields an empty string and nil error.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxPDFBytes+1))
	if err != nil {
		return "", fmt.Errorf("read pdf failed: %w", err)
	}
	if len(b) == 0 {
		return "", nil
	}
	if len(b) > maxPDFBytes {
		return "", fmt.Errorf("pdf exceeds %d byte limit", maxPDFBytes)
	}

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("parse pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}
