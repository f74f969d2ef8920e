// Package search runs one filter against Craigslist, suppressing listings the
// user has already been shown.
package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/craigslist"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/seen"
)

// Result is a fresh listing tagged with the filter and user that produced it.
type Result struct {
	UserID         int64     `json:"user_id"`
	Title          string    `json:"title"`
	Price          string    `json:"price"`
	Link           string    `json:"link"`
	SearchItem     string    `json:"search_item"`
	SearchLocation string    `json:"search_location"`
	MaxPrice       string    `json:"max_price"`
	ReportedAt     time.Time `json:"reported_at"`
}

// Executor produces the current set of matching listings for one filter that
// the user has not seen before, and marks everything it returns as seen.
type Executor struct {
	searcher    craigslist.Searcher
	registry    seen.Registry
	recorder    Recorder
	defaultSite string
}

// NewExecutor constructs an Executor. recorder may be nil to disable the
// results archive.
func NewExecutor(searcher craigslist.Searcher, registry seen.Registry, recorder Recorder, defaultSite string) *Executor {
	return &Executor{searcher: searcher, registry: registry, recorder: recorder, defaultSite: defaultSite}
}

// Run executes one search for one filter. Two consecutive runs over an
// unchanged candidate set yield an empty second result: everything reported is
// registered as seen before Run returns.
func (e *Executor) Run(ctx context.Context, userID int64, f filters.Filter) ([]Result, error) {
	queryURL := craigslist.BuildSearchURL(f, e.defaultSite)
	log.Printf("[search] user %d: searching for %q in %q: %s", userID, f.Item, f.Location, queryURL)

	listings, err := e.searcher.Search(ctx, queryURL)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", queryURL, err)
	}

	var results []Result
	for _, l := range listings {
		if e.registry.Seen(userID, l.Link) {
			continue
		}
		if err := e.registry.Add(userID, l.Link); err != nil {
			log.Printf("[search] failed to record seen link %s: %v", l.Link, err)
		}
		res := Result{
			UserID:         userID,
			Title:          l.Title,
			Price:          l.Price,
			Link:           l.Link,
			SearchItem:     f.Item,
			SearchLocation: f.Location,
			MaxPrice:       f.Price,
			ReportedAt:     time.Now().UTC(),
		}
		if e.recorder != nil {
			if err := e.recorder.Append(res); err != nil {
				log.Printf("[search] failed to archive result %s: %v", l.Link, err)
			}
		}
		results = append(results, res)
	}

	log.Printf("[search] user %d: %d candidate(s), %d new", userID, len(listings), len(results))
	return results, nil
}
