// Package scheduler wires up the cron job that periodically re-runs every
// saved filter, and dispatches the on-demand search that follows a
// confirmation. Both paths go through the per-user guard so they never overlap
// for the same user.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/search"
)

// Notifier delivers result messages back to a user. Sends are best-effort.
type Notifier interface {
	SendMessage(chatID int64, text string)
}

// Runner executes one search for one filter.
type Runner interface {
	Run(ctx context.Context, userID int64, f filters.Filter) ([]search.Result, error)
}

type Scheduler struct {
	cron     *cron.Cron
	repo     filters.Repository
	guard    *search.Guard
	runner   Runner
	notifier Notifier
	interval time.Duration
	pause    time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New(repo filters.Repository, guard *search.Guard, runner Runner, interval, pause time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		repo:     repo,
		guard:    guard,
		runner:   runner,
		interval: interval,
		pause:    pause,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetNotifier sets the delivery target for search results.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.notifier == nil {
		return fmt.Errorf("notifier not set")
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.runSweep)
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	log.Printf("[scheduler] started, sweeping every %s", s.interval)
	return nil
}

// Stop halts the cron loop and waits for in-flight searches to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	s.cancel()
	s.wg.Wait()
	log.Printf("[scheduler] stopped")
}

// runSweep fans one tick out across all users with saved filters. Users whose
// guard is held are skipped this tick; a failure for one user never aborts the
// others.
func (s *Scheduler) runSweep() {
	users, err := s.repo.UserIDs()
	if err != nil {
		log.Printf("[scheduler] failed to list users: %v", err)
		return
	}
	if len(users) == 0 {
		log.Printf("[scheduler] no saved filters, nothing to sweep")
		return
	}

	log.Printf("[scheduler] sweep started for %d user(s)", len(users))
	var wg sync.WaitGroup
	for _, userID := range users {
		if !s.guard.TryAcquire(userID) {
			log.Printf("[scheduler] user %d: search already in flight, skipping this sweep", userID)
			continue
		}
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			defer s.guard.Release(userID)
			results, err := s.searchUser(s.ctx, userID)
			if err != nil {
				log.Printf("[scheduler] user %d: sweep search failed: %v", userID, err)
			}
			if len(results) == 0 {
				return
			}
			s.notifier.SendMessage(userID, "New listings matching your filters:")
			for _, r := range results {
				s.notifier.SendMessage(userID, formatResult(r))
			}
		}(userID)
	}
	wg.Wait()
	log.Printf("[scheduler] sweep complete")
}

// RunForUser dispatches the on-demand search that follows a confirmed filter.
// If a sweep already holds the guard the dispatch is dropped; the sweep will
// deliver anything new. Runs in the background and returns immediately.
func (s *Scheduler) RunForUser(userID int64) {
	if !s.guard.TryAcquire(userID) {
		log.Printf("[scheduler] user %d: search already in flight, skipping immediate search", userID)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.guard.Release(userID)
		results, err := s.searchUser(s.ctx, userID)
		if err != nil {
			// The filter is already persisted at this point, so report the
			// failure instead of dropping it, even when older filters still
			// produced results.
			s.notifier.SendMessage(userID, fmt.Sprintf("Your filter has been saved, but there was an error running the search: %v", err))
		}
		if len(results) == 0 {
			if err == nil {
				s.notifier.SendMessage(userID, "No listings found matching your filter currently. You'll be notified when items appear.")
			}
			return
		}
		s.notifier.SendMessage(userID, "Here are current listings matching your filter:")
		for _, r := range results {
			s.notifier.SendMessage(userID, formatResult(r))
		}
	}()
}

// searchUser runs every saved filter for one user in insertion order, pausing
// between filters to stay under Craigslist's rate limits. A failed filter is
// logged and the rest still run; the first error is returned alongside
// whatever succeeded.
func (s *Scheduler) searchUser(ctx context.Context, userID int64) ([]search.Result, error) {
	fs, err := s.repo.ForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load filters: %w", err)
	}

	var all []search.Result
	var firstErr error
	for i, f := range fs {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return all, firstErr
			case <-time.After(s.pause):
			}
		}
		results, err := s.runner.Run(ctx, userID, f)
		if err != nil {
			log.Printf("[scheduler] user %d: filter %q failed: %v", userID, f.Item, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		all = append(all, results...)
	}
	return all, firstErr
}

func formatResult(r search.Result) string {
	return fmt.Sprintf("%s\n%s\n%s", r.Title, r.Price, r.Link)
}
