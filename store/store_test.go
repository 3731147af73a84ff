package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test store backed by a temp directory
func createTestStore(t *testing.T) *Store {
	tempDir := t.TempDir()
	s, err := New(filepath.Join(tempDir, "test.db"), filepath.Join(tempDir, "output"))
	require.NoError(t, err, "should create store")
	t.Cleanup(func() { s.Close() })
	return s
}

// Test helper: create a sample article published at the given time
func sampleArticle(url string, published time.Time) Article {
	text := "Full article body text."
	return Article{
		URL:           url,
		Title:         "Test Article",
		Text:          &text,
		Summary:       "Test summary",
		Author:        "Jane Doe",
		PublishedDate: published.Format(time.RFC3339),
		Tags:          []string{"go", "news"},
		Success:       true,
	}
}

// TestNew_CreatesDatabase verifies database and schema creation
func TestNew_CreatesDatabase(t *testing.T) {
	tempDir := t.TempDir()
	s, err := New(filepath.Join(tempDir, "nested", "dir", "test.db"), tempDir)
	require.NoError(t, err, "should create store in nested directory")
	defer s.Close()

	previews, err := s.ListUnusedToday(1, 10)
	require.NoError(t, err, "should be able to query database")
	assert.Empty(t, previews, "new database should have no articles")
}

// TestNew_ExistingDatabase verifies data persists across connections
func TestNew_ExistingDatabase(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	s1, err := New(dbPath, tempDir)
	require.NoError(t, err)
	id, err := s1.AddArticle(sampleArticle("http://example.com/a", time.Now()))
	require.NoError(t, err)
	require.NotZero(t, id)
	s1.Close()

	s2, err := New(dbPath, tempDir)
	require.NoError(t, err)
	defer s2.Close()

	exists, err := s2.URLExists("http://example.com/a")
	require.NoError(t, err)
	assert.True(t, exists, "data should persist across connections")
}

// TestAddArticle_AssignsID verifies inserts return increasing ids
func TestAddArticle_AssignsID(t *testing.T) {
	s := createTestStore(t)

	id1, err := s.AddArticle(sampleArticle("http://example.com/one", time.Now()))
	require.NoError(t, err)
	id2, err := s.AddArticle(sampleArticle("http://example.com/two", time.Now()))
	require.NoError(t, err)

	assert.NotZero(t, id1)
	assert.Greater(t, id2, id1, "ids should increase in insertion order")
}

// TestAddArticle_DuplicateURL verifies the URL uniqueness backstop
func TestAddArticle_DuplicateURL(t *testing.T) {
	s := createTestStore(t)
	now := time.Now()

	id1, err := s.AddArticle(sampleArticle("http://example.com/dup", now))
	require.NoError(t, err)
	require.NotZero(t, id1, "first insert should produce an id")

	id2, err := s.AddArticle(sampleArticle("http://example.com/dup", now))
	require.NoError(t, err, "duplicate insert is not an error")
	assert.Zero(t, id2, "duplicate insert should produce no id")

	previews, err := s.ListUnusedToday(1, 10)
	require.NoError(t, err)
	assert.Len(t, previews, 1, "exactly one row should exist for the URL")
}

// TestAddArticle_DerivesDomain verifies the domain comes from the URL
func TestAddArticle_DerivesDomain(t *testing.T) {
	s := createTestStore(t)

	id, err := s.AddArticle(sampleArticle("https://news.example.com/path/story", time.Now()))
	require.NoError(t, err)

	article, err := s.GetArticle(id)
	require.NoError(t, err)
	assert.Equal(t, "news.example.com", article.Domain)

	exists, err := s.DomainExists("https://news.example.com/other")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.DomainExists("https://elsewhere.example.org/x")
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestAddArticle_RegistersProcessedURL verifies the dedup index is written
func TestAddArticle_RegistersProcessedURL(t *testing.T) {
	s := createTestStore(t)

	exists, err := s.URLExists("http://example.com/fresh")
	require.NoError(t, err)
	assert.False(t, exists, "unknown URL should not be processed")

	_, err = s.AddArticle(sampleArticle("http://example.com/fresh", time.Now()))
	require.NoError(t, err)

	exists, err = s.URLExists("http://example.com/fresh")
	require.NoError(t, err)
	assert.True(t, exists)
}

// TestMarkUsed verifies the one-way used transition
func TestMarkUsed(t *testing.T) {
	s := createTestStore(t)

	id, err := s.AddArticle(sampleArticle("http://example.com/use", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.MarkUsed(id))

	article, err := s.GetArticle(id)
	require.NoError(t, err)
	assert.True(t, article.Used)
}

// TestMarkUsed_UnknownID verifies the not-found signal
func TestMarkUsed_UnknownID(t *testing.T) {
	s := createTestStore(t)

	err := s.MarkUsed(9999)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

// TestListUnusedToday_FiltersAndPaginates verifies listing semantics
func TestListUnusedToday_FiltersAndPaginates(t *testing.T) {
	s := createTestStore(t)
	now := time.Now()

	// Five unused articles published today, a minute apart.
	for i := 0; i < 5; i++ {
		_, err := s.AddArticle(sampleArticle(
			fmt.Sprintf("http://example.com/today/%d", i),
			now.Add(-time.Duration(i)*time.Minute),
		))
		require.NoError(t, err)
	}

	// One used article from today.
	usedID, err := s.AddArticle(sampleArticle("http://example.com/used", now))
	require.NoError(t, err)
	require.NoError(t, s.MarkUsed(usedID))

	// One unused article from yesterday.
	_, err = s.AddArticle(sampleArticle("http://example.com/old", now.Add(-24*time.Hour)))
	require.NoError(t, err)

	page1, err := s.ListUnusedToday(1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "http://example.com/today/0", page1[0].URL, "newest first")
	assert.Equal(t, "http://example.com/today/1", page1[1].URL)

	var all []Preview
	for page := 1; ; page++ {
		previews, err := s.ListUnusedToday(page, 2)
		require.NoError(t, err)
		if len(previews) == 0 {
			break
		}
		all = append(all, previews...)
	}

	assert.Len(t, all, 5, "pages should cover exactly the unused today set")
	for _, p := range all {
		assert.NotEqual(t, "http://example.com/used", p.URL)
		assert.NotEqual(t, "http://example.com/old", p.URL)
	}
}

// TestListUnusedToday_OutOfRangePage verifies empty, not error
func TestListUnusedToday_OutOfRangePage(t *testing.T) {
	s := createTestStore(t)

	_, err := s.AddArticle(sampleArticle("http://example.com/a", time.Now()))
	require.NoError(t, err)

	previews, err := s.ListUnusedToday(50, 10)
	require.NoError(t, err)
	assert.Empty(t, previews)
}

// TestGetArticle_TagRoundTrip verifies tag order and duplicates survive
func TestGetArticle_TagRoundTrip(t *testing.T) {
	s := createTestStore(t)

	a := sampleArticle("http://example.com/tags", time.Now())
	a.Tags = []string{"a", "b", "a"}
	id, err := s.AddArticle(a)
	require.NoError(t, err)

	article, err := s.GetArticle(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, article.Tags)
}

// TestGetArticle_MalformedTags verifies bad tag data decodes to empty
func TestGetArticle_MalformedTags(t *testing.T) {
	s := createTestStore(t)

	id, err := s.AddArticle(sampleArticle("http://example.com/badtags", time.Now()))
	require.NoError(t, err)

	_, err = s.db.Exec("UPDATE articles SET tags = ? WHERE id = ?", "{not json", id)
	require.NoError(t, err)

	article, err := s.GetArticle(id)
	require.NoError(t, err)
	assert.Equal(t, []string{}, article.Tags)
}

// TestGetArticle_UnknownID verifies the not-found signal
func TestGetArticle_UnknownID(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetArticle(12345)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

// TestGetArticle_OptionalFields verifies absent optionals stay nil
func TestGetArticle_OptionalFields(t *testing.T) {
	s := createTestStore(t)

	a := sampleArticle("http://example.com/sparse", time.Now())
	a.Text = nil
	a.ImageURL = nil
	a.LocalImagePath = nil
	id, err := s.AddArticle(a)
	require.NoError(t, err)

	article, err := s.GetArticle(id)
	require.NoError(t, err)
	assert.Nil(t, article.Text)
	assert.Nil(t, article.ImageURL)
	assert.Nil(t, article.LocalImagePath)
	assert.NotEmpty(t, article.ScrapedAt, "scraped_at is set at insert")
}

// TestLogRun verifies run rows are appended
func TestLogRun(t *testing.T) {
	s := createTestStore(t)

	stats := RunStats{
		StartTime:                time.Now().Format(time.RFC3339),
		EndTime:                  time.Now().Format(time.RFC3339),
		ArticlesFound:            7,
		ArticlesNew:              3,
		ArticlesSkippedDuplicate: 4,
	}
	require.NoError(t, s.LogRun(stats))
	require.NoError(t, s.LogRun(stats))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM scrape_runs").Scan(&count))
	assert.Equal(t, 2, count)
}

// TestClearAll verifies every table is emptied and URLs can be re-added
func TestClearAll(t *testing.T) {
	s := createTestStore(t)

	id, err := s.AddArticle(sampleArticle("http://example.com/clear", time.Now()))
	require.NoError(t, err)
	require.NotZero(t, id)
	require.NoError(t, s.LogRun(RunStats{StartTime: time.Now().Format(time.RFC3339)}))

	require.NoError(t, s.ClearAll())

	exists, err := s.URLExists("http://example.com/clear")
	require.NoError(t, err)
	assert.False(t, exists, "processed URLs should be gone")

	previews, err := s.ListUnusedToday(1, 10)
	require.NoError(t, err)
	assert.Empty(t, previews)

	newID, err := s.AddArticle(sampleArticle("http://example.com/clear", time.Now()))
	require.NoError(t, err)
	assert.NotZero(t, newID, "previously seen URL should insert as new after clear")
}
