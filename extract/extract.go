package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

var ErrExtraction = errors.New("extraction failed")

// Extractor produces plain text from a staged document.
type Extractor interface {
	Extract(ctx context.Context, path string, filename string) (string, error)
}

func NewExtractor(log *zap.Logger) Extractor {
	if log == nil {
		log = zap.NewNop()
	}

	return &extractor{
		log: log.With(zap.String("component", "extractor")),
	}
}

type extractor struct {
	log *zap.Logger
}

// Extract dispatches on the extension of filename, not of path, since staged
// uploads may be renamed.
func (e *extractor) Extract(ctx context.Context, path string, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))

	log := e.log.With(
		zap.String("filename", filename),
		zap.String("ext", ext),
	)

	var (
		text string
		err  error
	)

	switch ext {
	case ".pdf":
		text, err = extractPDF(path)

	case ".docx":
		text, err = extractDocx(path)

	default:
		text, err = extractPlain(path)
	}

	if err != nil {
		log.Error(err.Error())
		return "", fmt.Errorf("%w: %s: %w", ErrExtraction, filename, err)
	}

	log.Debug("text extracted", zap.Int("length", len(text)))
	return text, nil
}

func extractPDF(path string) (text string, err error) {
	// ledongthuc/pdf panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}

		if content == "" {
			continue
		}

		pages = append(pages, content)
	}

	return strings.Join(pages, "\n"), nil
}

func extractDocx(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, _, err := docconv.ConvertDocx(f)
	if err != nil {
		return "", err
	}

	return text, nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(data) {
		return "", errors.New("file is not valid utf-8 text")
	}

	return string(data), nil
}
