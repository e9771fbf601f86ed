package extract

import (
	"bytes"
	"context"
	"io"

	"github.com/dslipak/pdf"
)

// minDirectTextChars is the threshold below which a PDF is assumed to be
// scanned and the OCR hook, when configured, is consulted instead.
const minDirectTextChars = 50

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*Content, error) {
	text, err := pdfPlainText(data)
	if err != nil {
		// Unparsable PDFs still go through OCR when available.
		if e.ocr == nil {
			return nil, wrapExtractionErr(err)
		}
		text = ""
	}

	if len(text) < minDirectTextChars && e.ocr != nil {
		ocrText, ocrErr := e.ocr(ctx, data)
		if ocrErr != nil {
			if text == "" {
				return nil, wrapExtractionErr(ocrErr)
			}
		} else {
			text = ocrText
		}
	}

	return &Content{Text: normalizeWhitespace(text)}, nil
}

func pdfPlainText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
