// Package news crawls gold news from RSS feeds and HTML listing pages.
package news

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

const (
	RequestTimeout = 15 * time.Second
	// MaxContentChars caps the stored article body.
	MaxContentChars = 2000
	minHeadlineLen  = 8
)

// Feed is a named news source.
type Feed struct {
	Source string
	URL    string
}

// ParseFeeds turns "source|url" pairs into feeds, skipping malformed entries.
func ParseFeeds(specs []string) []Feed {
	feeds := make([]Feed, 0, len(specs))
	for _, entry := range specs {
		source, raw, ok := strings.Cut(strings.TrimSpace(entry), "|")
		if !ok {
			continue
		}
		source, raw = strings.TrimSpace(source), strings.TrimSpace(raw)
		if source == "" || !strings.HasPrefix(raw, "http") {
			continue
		}
		feeds = append(feeds, Feed{Source: source, URL: raw})
	}
	return feeds
}

// Article is one crawled headline.
type Article struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Crawler fetches articles with a shared colly configuration.
type Crawler struct {
	base *colly.Collector
	now  func() time.Time
	log  zerolog.Logger
}

// NewCrawler creates a crawler.
func NewCrawler(log zerolog.Logger) *Crawler {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	c.SetRequestTimeout(RequestTimeout)
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       500 * time.Millisecond,
	})
	return &Crawler{
		base: c,
		now:  time.Now,
		log:  log.With().Str("client", "news").Logger(),
	}
}

// Fetch crawls a single feed and returns at most limit articles, unique by URL.
// RSS items are read from <item> elements; any other page is treated as an
// HTML listing and its headline links are collected.
func (cr *Crawler) Fetch(ctx context.Context, feed Feed, limit int) ([]Article, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if limit <= 0 {
		limit = 5
	}

	c := cr.base.Clone()
	c.Context = ctx

	var (
		articles []Article
		seen     = make(map[string]struct{})
		isFeed   bool
	)
	add := func(a Article) {
		if len(articles) >= limit || a.URL == "" || a.Title == "" {
			return
		}
		if _, ok := seen[a.URL]; ok {
			return
		}
		seen[a.URL] = struct{}{}
		articles = append(articles, a)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/rss+xml,application/xml;q=0.9,text/html;q=0.8,*/*;q=0.5")
	})

	c.OnResponse(func(r *colly.Response) {
		ct := strings.ToLower(r.Headers.Get("Content-Type"))
		isFeed = strings.Contains(ct, "xml")
	})

	c.OnXML("//item", func(e *colly.XMLElement) {
		isFeed = true
		add(Article{
			Title:       strings.TrimSpace(e.ChildText("title")),
			Content:     cr.toMarkdown(e.ChildText("description")),
			Source:      feed.Source,
			URL:         strings.TrimSpace(e.ChildText("link")),
			PublishedAt: cr.parseDate(e.ChildText("pubDate")),
		})
	})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		if isFeed {
			return
		}
		cr.collectHeadlines(e.DOM, e.Request.URL, feed.Source, add)
	})

	var crawlErr error
	c.OnError(func(r *colly.Response, err error) {
		crawlErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(feed.URL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", feed.URL, err)
	}
	c.Wait()

	if crawlErr != nil {
		return nil, fmt.Errorf("failed to crawl %s: %w", feed.URL, crawlErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cr.log.Debug().
		Str("source", feed.Source).
		Int("articles", len(articles)).
		Msg("Crawled feed")
	return articles, nil
}

// collectHeadlines picks anchors that look like article links.
func (cr *Crawler) collectHeadlines(doc *goquery.Selection, base *url.URL, source string, add func(Article)) {
	doc.Find("script, style, nav, header, footer, aside").Remove()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		title := strings.Join(strings.Fields(s.Text()), " ")
		if len([]rune(title)) < minHeadlineLen {
			return
		}
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || strings.HasPrefix(href, "javascript:") {
			return
		}
		if base != nil && !u.IsAbs() {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		add(Article{
			Title:       title,
			Source:      source,
			URL:         u.String(),
			PublishedAt: cr.now(),
		})
	})
}

// toMarkdown converts an HTML description to markdown, falling back to its text.
func (cr *Crawler) toMarkdown(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html))
		if derr != nil {
			return truncate(html)
		}
		return truncate(strings.Join(strings.Fields(doc.Text()), " "))
	}
	return truncate(strings.TrimSpace(md))
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

func (cr *Crawler) parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return cr.now()
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxContentChars {
		return s
	}
	return string(r[:MaxContentChars])
}

// ErrNoFeeds is returned when the crawler is asked to run without feeds.
var ErrNoFeeds = errors.New("no news feeds configured")
