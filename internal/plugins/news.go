package plugins

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// DefaultFeedURL is the RSS feed template; %s is replaced by the category
const DefaultFeedURL = "https://rss.nytimes.com/services/xml/rss/nyt/%s.xml"

const (
	maxArticles    = 5
	maxConcurrency = 4
)

// Article is one news item returned to the model
type Article struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Summary   string     `json:"summary,omitempty"`
	Published *time.Time `json:"published,omitempty"`
}

// Headlines holds the articles of one category, or the reason it failed
type Headlines struct {
	Category string    `json:"category"`
	Articles []Article `json:"articles,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// NewsReader fetches articles from RSS feeds
type NewsReader struct {
	feedURL string
	parser  *gofeed.Parser
}

// NewNewsReader creates a reader for the given feed URL template
func NewNewsReader(feedURL string, client *http.Client) *NewsReader {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "kernelchat/1.0"

	return &NewsReader{
		feedURL: feedURL,
		parser:  parser,
	}
}

// URL returns the feed URL for category
func (r *NewsReader) URL(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		category = "HomePage"
	}
	if !strings.Contains(r.feedURL, "%s") {
		return r.feedURL
	}
	return fmt.Sprintf(r.feedURL, category)
}

// Latest returns the top five articles of a category
func (r *NewsReader) Latest(ctx context.Context, category string) ([]Article, error) {
	feed, err := r.parser.ParseURLWithContext(r.URL(category), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s news: %w", category, err)
	}

	articles := make([]Article, 0, maxArticles)
	for _, item := range feed.Items {
		if len(articles) == maxArticles {
			break
		}
		articles = append(articles, Article{
			Title:     item.Title,
			Link:      item.Link,
			Summary:   item.Description,
			Published: item.PublishedParsed,
		})
	}
	return articles, nil
}

// Headlines fetches several categories concurrently. A failing category is
// reported in its entry and does not fail the others.
func (r *NewsReader) Headlines(ctx context.Context, categories []string) ([]Headlines, error) {
	results := make([]Headlines, len(categories))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, category := range categories {
		g.Go(func() error {
			results[i].Category = category
			articles, err := r.Latest(gCtx, category)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				results[i].Error = err.Error()
				return nil
			}
			results[i].Articles = articles
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
