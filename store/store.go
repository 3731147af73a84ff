package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrArticleNotFound is returned when an article id does not exist.
var ErrArticleNotFound = errors.New("article not found")

// Store manages articles, processed URLs, and scrape runs using SQLite.
type Store struct {
	db        *sql.DB
	outputDir string
}

// Article is a persisted record combining feed metadata and extracted
// content for one unique URL.
type Article struct {
	ID             int64    `json:"id"`
	URL            string   `json:"url"`
	Domain         string   `json:"domain"`
	Title          string   `json:"title"`
	Text           *string  `json:"text,omitempty"`
	Summary        string   `json:"summary"`
	ImageURL       *string  `json:"image_url,omitempty"`
	LocalImagePath *string  `json:"local_image_path,omitempty"`
	Author         string   `json:"author"`
	PublishedDate  string   `json:"published_date"`
	Tags           []string `json:"tags"`
	Used           bool     `json:"used"`
	Success        bool     `json:"success"`
	ScrapedAt      string   `json:"scraped_at"`
}

// Preview is the short article form returned by news listings.
type Preview struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"`
}

// RunStats summarizes one scrape run.
type RunStats struct {
	StartTime                string `json:"start_time"`
	EndTime                  string `json:"end_time"`
	ArticlesFound            int    `json:"articles_found"`
	ArticlesNew              int    `json:"articles_new"`
	ArticlesSkippedDuplicate int    `json:"articles_skipped_duplicate"`
	ArticlesSkippedDomain    int    `json:"articles_skipped_domain"`
}

// New opens (or creates) the SQLite database at dbPath and initializes the
// schema. Exported JSON batches are written under outputDir.
func New(dbPath, outputDir string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, outputDir: outputDir}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE,
		domain TEXT,
		title TEXT,
		text TEXT,
		summary TEXT,
		image_url TEXT,
		local_image_path TEXT,
		author TEXT,
		published_date TEXT,
		tags TEXT,
		used BOOLEAN DEFAULT FALSE,
		success BOOLEAN,
		scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS processed_urls (
		url TEXT PRIMARY KEY,
		processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_time TIMESTAMP,
		end_time TIMESTAMP,
		articles_found INTEGER,
		articles_new INTEGER,
		articles_skipped_duplicate INTEGER,
		articles_skipped_domain INTEGER
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// URLExists reports whether the URL has already been processed.
func (s *Store) URLExists(rawURL string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM processed_urls WHERE url = ?", rawURL).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query processed urls: %w", err)
	}
	return true, nil
}

// DomainExists reports whether any stored article shares the URL's domain.
func (s *Store) DomainExists(rawURL string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM articles WHERE domain = ?", domainOf(rawURL)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query articles by domain: %w", err)
	}
	return true, nil
}

// AddArticle inserts an article and registers its URL as processed, in one
// transaction. The domain is derived from the article URL. A duplicate URL
// is not an error: the returned id is 0 and the article is not stored.
func (s *Store) AddArticle(a Article) (int64, error) {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO articles (
			url, domain, title, text, summary, image_url,
			local_image_path, author, published_date, tags, success
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.URL, domainOf(a.URL), a.Title, a.Text, a.Summary, a.ImageURL,
		a.LocalImagePath, a.Author, a.PublishedDate, string(tagsJSON), a.Success,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") ||
			strings.Contains(err.Error(), "unique constraint") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to insert article: %w", err)
	}

	if _, err := tx.Exec("INSERT OR IGNORE INTO processed_urls (url) VALUES (?)", a.URL); err != nil {
		return 0, fmt.Errorf("failed to record processed url: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit article: %w", err)
	}

	return id, nil
}

// MarkUsed sets used=true for the given article id. Returns
// ErrArticleNotFound if the id is unknown.
func (s *Store) MarkUsed(id int64) error {
	result, err := s.db.Exec("UPDATE articles SET used = TRUE WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark article as used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrArticleNotFound
	}

	return nil
}

// ListUnusedToday returns a page of unused articles whose published date
// falls on the current calendar day, newest first. Page numbers start at 1.
// An out-of-range page yields an empty slice, not an error.
func (s *Store) ListUnusedToday(page, pageSize int) ([]Preview, error) {
	offset := (page - 1) * pageSize
	today := time.Now().Format("2006-01-02")

	rows, err := s.db.Query(`
		SELECT id, title, summary, url, published_date FROM articles
		WHERE used = FALSE AND published_date LIKE ?
		ORDER BY published_date DESC
		LIMIT ? OFFSET ?`,
		today+"%", pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query news list: %w", err)
	}
	defer rows.Close()

	previews := []Preview{}
	for rows.Next() {
		var p Preview
		if err := rows.Scan(&p.ID, &p.Title, &p.Summary, &p.URL, &p.PublishedDate); err != nil {
			return nil, fmt.Errorf("failed to scan preview: %w", err)
		}
		previews = append(previews, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news list: %w", err)
	}

	return previews, nil
}

// GetArticle returns the full record for the given id, including the decoded
// tag list. Returns ErrArticleNotFound if the id is unknown.
func (s *Store) GetArticle(id int64) (*Article, error) {
	var a Article
	var text, imageURL, localImagePath, tagsJSON sql.NullString
	var scrapedAt time.Time

	err := s.db.QueryRow(`
		SELECT id, url, domain, title, text, summary, image_url,
		       local_image_path, author, published_date, tags, used, success, scraped_at
		FROM articles WHERE id = ?`, id,
	).Scan(
		&a.ID, &a.URL, &a.Domain, &a.Title, &text, &a.Summary, &imageURL,
		&localImagePath, &a.Author, &a.PublishedDate, &tagsJSON, &a.Used, &a.Success, &scrapedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	a.ScrapedAt = scrapedAt.Format(time.RFC3339)
	if text.Valid {
		a.Text = &text.String
	}
	if imageURL.Valid {
		a.ImageURL = &imageURL.String
	}
	if localImagePath.Valid {
		a.LocalImagePath = &localImagePath.String
	}

	// Malformed tag data decodes to an empty list rather than failing.
	a.Tags = []string{}
	if tagsJSON.Valid {
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON.String), &tags); err == nil && tags != nil {
			a.Tags = tags
		}
	}

	return &a, nil
}

// LogRun appends one scrape run row. Rows are never updated.
func (s *Store) LogRun(stats RunStats) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_runs (
			start_time, end_time, articles_found,
			articles_new, articles_skipped_duplicate, articles_skipped_domain
		) VALUES (?, ?, ?, ?, ?, ?)`,
		stats.StartTime, stats.EndTime, stats.ArticlesFound,
		stats.ArticlesNew, stats.ArticlesSkippedDuplicate, stats.ArticlesSkippedDomain,
	)
	if err != nil {
		return fmt.Errorf("failed to log scrape run: %w", err)
	}
	return nil
}

// ClearAll deletes every article, processed URL, and scrape run.
// Irreversible.
func (s *Store) ClearAll() error {
	for _, table := range []string{"articles", "processed_urls", "scrape_runs"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// domainOf returns the network-location component of a URL, or "" when the
// URL does not parse.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
