// Package feed fetches RSS and Atom feeds and normalizes their entries.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxFeedBytes caps how much of a feed response is read.
const maxFeedBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Entry is one normalized feed item, independent of feed dialect. The gofeed
// library handles both RSS and Atom transparently.
type Entry struct {
	Link          string
	Title         string
	Summary       string
	PublishedDate string
	Author        string
	Tags          []string
	ImageFromFeed string
}

// Reader downloads and normalizes feeds.
type Reader struct {
	client    HTTPClient
	userAgent string
}

// NewReader creates a Reader with the given HTTP client and User-Agent.
func NewReader(client HTTPClient, userAgent string) *Reader {
	return &Reader{
		client:    client,
		userAgent: userAgent,
	}
}

// Parse fetches the feed at url and returns its normalized entries in feed
// order. Entries without a resolvable link are dropped.
func (r *Reader) Parse(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching feed", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		entries = append(entries, Entry{
			Link:          item.Link,
			Title:         item.Title,
			Summary:       item.Description,
			PublishedDate: normalizeDate(item),
			Author:        authorOf(item),
			Tags:          tagsOf(item),
			ImageFromFeed: imageOf(item),
		})
	}

	return entries, nil
}

// normalizeDate returns the entry's publication date in RFC 3339 form,
// preferring the published date over the updated date. When neither is
// present or parseable, the current instant is substituted, so callers must
// not assume the result reflects true publication time.
func normalizeDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.Format(time.RFC3339)
	}
	return time.Now().Format(time.RFC3339)
}

// authorOf extracts a single author name, checking the item author, the
// multi-author list, and the Dublin Core creator extension in that order.
func authorOf(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" {
				return creator
			}
		}
	}
	return ""
}

// tagsOf returns the entry's categories in feed order. Duplicates are kept.
func tagsOf(item *gofeed.Item) []string {
	tags := []string{}
	for _, category := range item.Categories {
		if category != "" {
			tags = append(tags, category)
		}
	}
	return tags
}

// imageOf discovers an image URL from feed metadata. Tries media:content,
// enclosures, media:thumbnail, then the item-level image; first hit wins.
func imageOf(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			url := content.Attrs["url"]
			if url == "" {
				continue
			}
			if strings.Contains(content.Attrs["type"], "image") || content.Attrs["medium"] == "image" {
				return url
			}
		}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure.URL == "" {
			continue
		}
		if strings.Contains(enclosure.Type, "image") || strings.Contains(enclosure.URL, "image") {
			return enclosure.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if url := thumb.Attrs["url"]; url != "" {
				return url
			}
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	return ""
}
