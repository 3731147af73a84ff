// Package scrape fetches article pages and extracts structured content.
package scrape

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// noTitle is the placeholder used when every title fallback comes up empty.
const noTitle = "No Title Found"

// fallbackSelectors are tried in order when the readability heuristic yields
// no text.
var fallbackSelectors = []string{"article", ".article-body", ".entry-content", ".post-content", "main"}

// Result holds the outcome of extracting one article. Success is true iff
// non-empty body text was obtained; on failure Error carries a diagnostic.
type Result struct {
	URL            string
	Title          string
	Text           string
	ImageURL       string
	LocalImagePath string
	Success        bool
	Error          string
}

// Scraper fetches article HTML and extracts title, body text, and a main
// image.
type Scraper struct {
	client         *http.Client
	userAgent      string
	downloadImages bool
	imageDir       string
}

// New creates a Scraper. When downloadImages is true, discovered images are
// fetched and persisted under imageDir.
func New(client *http.Client, userAgent string, downloadImages bool, imageDir string) *Scraper {
	return &Scraper{
		client:         client,
		userAgent:      userAgent,
		downloadImages: downloadImages,
		imageDir:       imageDir,
	}
}

// Scrape fetches the page at rawURL and extracts its content. Network and
// parse failures are converted into a failure Result; they never propagate
// as errors.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) Result {
	html, err := s.fetch(ctx, rawURL)
	if err != nil {
		return Result{URL: rawURL, Title: "Error", Error: err.Error()}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{URL: rawURL, Title: "Error", Error: fmt.Sprintf("failed to parse HTML: %v", err)}
	}

	result := Result{
		URL:      rawURL,
		Title:    extractTitle(doc),
		Text:     extractText(html, rawURL, doc),
		ImageURL: extractMainImage(doc, rawURL),
	}
	result.Success = result.Text != ""

	if s.downloadImages && result.ImageURL != "" {
		// Download failure is swallowed; the local path simply stays empty.
		result.LocalImagePath = s.downloadImage(ctx, result.ImageURL)
	}

	return result
}

// fetch retrieves the raw HTML at rawURL.
func (s *Scraper) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// extractTitle tries og:title, twitter:title, the first h1, and the title
// element, falling back to a fixed placeholder.
func extractTitle(doc *goquery.Document) string {
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return noTitle
}

// extractText runs the readability heuristic over the HTML, then falls back
// to a fixed list of container selectors, then to any container whose class
// name mentions article, content, or body.
func extractText(html, pageURL string, doc *goquery.Document) string {
	parsedURL, _ := url.Parse(pageURL)
	if article, err := readability.FromReader(strings.NewReader(html), parsedURL); err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}

	for _, selector := range fallbackSelectors {
		element := doc.Find(selector).First()
		if element.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(element.Text()); text != "" {
			return text
		}
	}

	var text string
	doc.Find("div[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if strings.Contains(class, "article") || strings.Contains(class, "content") || strings.Contains(class, "body") {
			text = strings.TrimSpace(sel.Text())
			return text == ""
		}
		return true
	})

	return text
}

// extractMainImage tries og:image, twitter:image, then the first image
// inside an article or main element. Image URLs are resolved against the
// page URL.
func extractMainImage(doc *goquery.Document, pageURL string) string {
	if src, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && src != "" {
		return resolveURL(pageURL, src)
	}
	if src, ok := doc.Find(`meta[name="twitter:image"]`).Attr("content"); ok && src != "" {
		return resolveURL(pageURL, src)
	}
	if src, ok := doc.Find("article img, main img").First().Attr("src"); ok && src != "" {
		return resolveURL(pageURL, src)
	}
	return ""
}

// resolveURL resolves ref against base, returning ref unchanged when either
// fails to parse.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// downloadImage fetches the image and persists it under a filename derived
// from an md5 hash of its URL. Returns the local path, or "" on any failure.
func (s *Scraper) downloadImage(ctx context.Context, imageURL string) string {
	if err := os.MkdirAll(s.imageDir, 0755); err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	ext := ".jpg"
	if parsed, err := url.Parse(imageURL); err == nil {
		if e := path.Ext(parsed.Path); e != "" && len(e) <= 5 {
			ext = e
		}
	}

	filename := fmt.Sprintf("%x%s", md5.Sum([]byte(imageURL)), ext)
	filePath := filepath.Join(s.imageDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return ""
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(filePath)
		return ""
	}

	return filePath
}
