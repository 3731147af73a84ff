package store

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportBatch writes one JSON file per article, named by an md5 hash of its
// URL, plus a consolidated file for the whole batch, under a date-labeled
// directory. The files are a write-only audit artifact; nothing reads them
// back.
func (s *Store) ExportBatch(articles []Article, dateLabel string) error {
	baseDir := filepath.Join(s.outputDir, dateLabel)
	articlesDir := filepath.Join(baseDir, "articles")
	if err := os.MkdirAll(articlesDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	for _, article := range articles {
		data, err := json.MarshalIndent(article, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal article: %w", err)
		}

		name := fmt.Sprintf("%x.json", md5.Sum([]byte(article.URL)))
		if err := os.WriteFile(filepath.Join(articlesDir, name), data, 0644); err != nil {
			return fmt.Errorf("failed to write article export: %w", err)
		}
	}

	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal article batch: %w", err)
	}

	consolidated := filepath.Join(baseDir, fmt.Sprintf("articles_%s.json", dateLabel))
	if err := os.WriteFile(consolidated, data, 0644); err != nil {
		return fmt.Errorf("failed to write consolidated export: %w", err)
	}

	return nil
}
