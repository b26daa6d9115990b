package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper collects headlines from quote pages of financial sites
type Scraper struct {
	sources []Source
	timeout time.Duration
}

// Source defines a news site and how to read its symbol page
type Source struct {
	Name       string
	BaseURL    string
	SearchPath string // e.g. "/quote/{symbol}/news"
	Selectors  ArticleSelectors
	RateLimit  time.Duration
}

// ArticleSelectors defines CSS selectors for extracting article data
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	PublishedAt      string
}

// NewScraper creates a scraper over sources, or the default US sources when
// none are given.
func NewScraper(timeout time.Duration, sources ...Source) *Scraper {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	return &Scraper{sources: sources, timeout: timeout}
}

// DefaultSources lists the US financial news pages scraped by default
func DefaultSources() []Source {
	return []Source{
		{
			Name:       "Finviz",
			BaseURL:    "https://finviz.com",
			SearchPath: "/quote.ashx?t={SYMBOL}",
			Selectors: ArticleSelectors{
				ArticleContainer: "table#news-table tr",
				Title:            "a.tab-link-news",
				URL:              "a.tab-link-news",
				PublishedAt:      "td:first-child",
			},
			RateLimit: time.Second,
		},
		{
			Name:       "YahooFinance",
			BaseURL:    "https://finance.yahoo.com",
			SearchPath: "/quote/{SYMBOL}/news",
			Selectors: ArticleSelectors{
				ArticleContainer: "li.stream-item",
				Title:            "h3",
				URL:              "a",
				PublishedAt:      "div.publishing",
			},
			RateLimit: time.Second,
		},
	}
}

// Headlines fetches up to limit articles for symbol, split across sources.
// A failing source is logged and skipped.
func (s *Scraper) Headlines(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error) {
	logger.Info(ctx, "Starting news scraping", "symbol", symbol, "sources", len(s.sources))

	perSource := limit / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	all := []types.NewsArticle{}
	var failures []string
	for i, source := range s.sources {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		articles, err := s.scrapeSource(ctx, source, symbol, perSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "symbol", symbol)
			failures = append(failures, source.Name)
			continue
		}
		all = append(all, articles...)

		if i < len(s.sources)-1 && source.RateLimit > 0 {
			time.Sleep(source.RateLimit)
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	if len(all) == 0 && len(failures) == len(s.sources) {
		return nil, fmt.Errorf("all news sources failed: %s", strings.Join(failures, ", "))
	}

	logger.Info(ctx, "News scraping completed", "symbol", symbol, "articles", len(all))
	return all, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, source Source, symbol string, max int) ([]types.NewsArticle, error) {
	var (
		mu       sync.Mutex
		articles []types.NewsArticle
		visitErr error
	)

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(source.BaseURL)),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	c.OnHTML(source.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if len(articles) >= max {
			return
		}

		title := firstText(e.DOM, source.Selectors.Title)
		link, _ := e.DOM.Find(source.Selectors.URL).First().Attr("href")
		if title == "" || link == "" {
			return
		}
		if !strings.HasPrefix(link, "http") {
			link = strings.TrimRight(source.BaseURL, "/") + "/" + strings.TrimLeft(link, "/")
		}

		articles = append(articles, types.NewsArticle{
			Title:       title,
			URL:         link,
			Source:      source.Name,
			PublishedAt: firstText(e.DOM, source.Selectors.PublishedAt),
			Symbol:      symbol,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	path := strings.NewReplacer(
		"{SYMBOL}", url.PathEscape(strings.ToUpper(symbol)),
		"{symbol}", url.PathEscape(strings.ToLower(symbol)),
	).Replace(source.SearchPath)
	searchURL := strings.TrimRight(source.BaseURL, "/") + path

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	if visitErr != nil {
		return nil, visitErr
	}
	return articles, nil
}

// firstText is the whitespace-collapsed text of the first element matching
// selector under sel. Rows often hold several links; only the first is the
// headline.
func firstText(sel *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(sel.Find(selector).First().Text()), " ")
}

// getDomain extracts domain from URL
func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
