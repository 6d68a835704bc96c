// Package extraction loads FinancialExtraction records for screening.
package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/savegress/sentinel/internal/logger"
	"github.com/savegress/sentinel/pkg/models"
)

// ErrEmptyDocument is returned for a source with no content
var ErrEmptyDocument = errors.New("empty document")

// Extractor turns a statement source into an extraction record
type Extractor interface {
	Extract(ctx context.Context, source string) (*models.FinancialExtraction, error)
}

// FileExtractor reads extraction records stored as JSON files
type FileExtractor struct {
	maxSize int64
}

// DefaultMaxFileSize bounds the size of a single extraction record
const DefaultMaxFileSize = 10 << 20

// NewFileExtractor creates a file extractor. A maxSize of zero uses DefaultMaxFileSize.
func NewFileExtractor(maxSize int64) *FileExtractor {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &FileExtractor{maxSize: maxSize}
}

// Extract reads and decodes the JSON record at path source
func (e *FileExtractor) Extract(ctx context.Context, source string) (*models.FinancialExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("extract %s: is a directory", source)
	}
	if info.Size() > e.maxSize {
		return nil, fmt.Errorf("extract %s: file size %d exceeds limit %d", source, info.Size(), e.maxSize)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("extract %s: %w", source, ErrEmptyDocument)
	}

	ext, err := models.DecodeExtraction(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}

	logger.FromContext(ctx).Debug().
		Int64("bytes", info.Size()).
		Int("transactions", len(ext.Transactions)).
		Int("risk_flags", len(ext.RiskFlags)).
		Msg("extraction loaded")
	return ext, nil
}

// ExpandSources replaces each directory in paths with the .json files it
// contains, sorted by name. Plain files are kept in the given order.
func ExpandSources(paths []string) ([]string, error) {
	var sources []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		if !info.IsDir() {
			sources = append(sources, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		var files []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
		sort.Strings(files)
		sources = append(sources, files...)
	}
	return sources, nil
}
