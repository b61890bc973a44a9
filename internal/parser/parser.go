package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"dublin-rag/internal/models"
)

// Extractor turns a source file into pages of plain text
type Extractor interface {
	Extract(filePath string) ([]models.Page, error)
}

// PDFExtractor extracts one Page per PDF page
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// IsSupported reports whether filePath has a PDF extension
func IsSupported(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), models.PDFExtension)
}

// ListSources returns the PDF files to index for source, which is either a
// single file or a directory. Directory entries that are not PDFs are
// returned as skipped; subdirectories are ignored.
func ListSources(source string) (files []string, skipped []string, err error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, nil, fmt.Errorf("stat source %s: %w", source, err)
	}

	if !info.IsDir() {
		if !IsSupported(source) {
			return nil, nil, fmt.Errorf("%s: %w", source, models.ErrUnsupportedFile)
		}
		return []string{source}, nil, nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, nil, fmt.Errorf("read source dir %s: %w", source, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(source, entry.Name())
		if !IsSupported(path) {
			log.Debug().Str("file", path).Msg("Skipping unsupported file")
			skipped = append(skipped, path)
			continue
		}
		files = append(files, path)
	}
	return files, skipped, nil
}

func (e *PDFExtractor) Extract(filePath string) (pages []models.Page, err error) {
	if !IsSupported(filePath) {
		return nil, fmt.Errorf("%s: %w", filePath, models.ErrUnsupportedFile)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// the pdf package panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("corrupt pdf %s: %v", filePath, r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filePath, err)
	}

	source := filepath.Base(filePath)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d of %s: %w", i, filePath, err)
		}
		pages = append(pages, models.Page{
			Source: source,
			Number: i,
			Text:   pageText,
		})
	}
	return pages, nil
}
