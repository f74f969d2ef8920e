// Package craigslist fetches and parses Craigslist search-results pages.
package craigslist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.212 Safari/537.36"

// noPricePlaceholder is substituted for listings that omit a price; such
// listings are still reported.
const noPricePlaceholder = "No price listed"

// cityCodes maps the locations offered by the bot to Craigslist subdomains.
var cityCodes = map[string]string{
	"New York":      "newyork",
	"San Francisco": "sfbay",
	"Los Angeles":   "losangeles",
	"Chicago":       "chicago",
	"Miami":         "miami",
}

// Listing is one scraped classified-ad candidate.
type Listing struct {
	Title string
	Price string
	Link  string
}

// Searcher retrieves all candidate listings for a query URL. Best-effort: a
// retrieval failure is an error the caller logs and treats as zero results.
type Searcher interface {
	Search(ctx context.Context, queryURL string) ([]Listing, error)
}

// BuildSearchURL turns a filter into a Craigslist search URL. The price is
// passed as max_price only when it is all digits; any other price text is left
// to the remote search and never re-validated locally.
func BuildSearchURL(f filters.Filter, defaultSite string) string {
	city, ok := cityCodes[f.Location]
	if !ok {
		city = defaultSite
	}
	u := fmt.Sprintf("https://%s.craigslist.org/search/sss?query=%s", city, url.QueryEscape(f.Item))
	if isDigits(f.Price) {
		u += "&max_price=" + f.Price
	}
	return u
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type Client struct {
	client *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{client: &http.Client{Timeout: timeout}}
}

func (c *Client) Search(ctx context.Context, queryURL string) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("craigslist returned %d", resp.StatusCode)
	}
	return parseListings(resp.Body)
}

// parseListings extracts listings from a search-results page. Fragments
// missing a title or a link are partial render artifacts and are skipped; a
// missing price gets the placeholder instead.
func parseListings(r io.Reader) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var listings []Listing
	doc.Find("div.cl-search-result").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find("a.posting-title span.label").First().Text())
		link, _ := sel.Find("a.posting-title").First().Attr("href")
		if link == "" {
			link, _ = sel.Find("a.main").First().Attr("href")
		}
		if title == "" || link == "" {
			return
		}
		price := strings.TrimSpace(sel.Find("span.priceinfo").First().Text())
		if price == "" {
			price = noPricePlaceholder
		}
		listings = append(listings, Listing{Title: title, Price: price, Link: link})
	})
	return listings, nil
}
