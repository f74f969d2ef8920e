package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/search"
)

type memRepo struct {
	data map[int64][]filters.Filter
}

func (m *memRepo) ForUser(userID int64) ([]filters.Filter, error) { return m.data[userID], nil }
func (m *memRepo) Append(userID int64, f filters.Filter) error {
	m.data[userID] = append(m.data[userID], f)
	return nil
}
func (m *memRepo) UserIDs() ([]int64, error) {
	ids := make([]int64, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[int64][]search.Result
	err     error
	runs    []int64
	items   []string
}

func (f *fakeRunner) Run(_ context.Context, userID int64, flt filters.Filter) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, userID)
	f.items = append(f.items, flt.Item)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[userID], nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newFakeNotifier() *fakeNotifier { return &fakeNotifier{sent: make(map[int64][]string)} }

func (f *fakeNotifier) SendMessage(chatID int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[chatID] = append(f.sent[chatID], text)
}

func (f *fakeNotifier) messages(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[chatID]...)
}

func newTestScheduler(repo filters.Repository, runner Runner, n Notifier) (*Scheduler, *search.Guard) {
	guard := search.NewGuard()
	s := New(repo, guard, runner, 0, 0)
	s.SetNotifier(n)
	return s, guard
}

func TestSweep_DeliversNewListings(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{
		42: {{UserID: 42, Title: "PS5", Price: "$300", Link: "https://x/1"}},
	}}
	n := newFakeNotifier()
	s, _ := newTestScheduler(repo, runner, n)

	s.runSweep()

	msgs := n.messages(42)
	if len(msgs) != 2 {
		t.Fatalf("want header + 1 listing, got %v", msgs)
	}
	if msgs[0] != "New listings matching your filters:" {
		t.Fatalf("unexpected header: %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "https://x/1") {
		t.Fatalf("listing message missing link: %q", msgs[1])
	}
}

func TestSweep_NoResultsNoMessages(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{}}
	n := newFakeNotifier()
	s, _ := newTestScheduler(repo, runner, n)

	s.runSweep()

	if msgs := n.messages(42); len(msgs) != 0 {
		t.Fatalf("sweep with nothing new must stay silent, got %v", msgs)
	}
}

func TestSweep_SkipsUserWithSearchInFlight(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{
		42: {{UserID: 42, Title: "PS5", Link: "https://x/1"}},
	}}
	n := newFakeNotifier()
	s, guard := newTestScheduler(repo, runner, n)

	if !guard.TryAcquire(42) {
		t.Fatalf("pre-acquire failed")
	}
	s.runSweep()

	if len(runner.runs) != 0 {
		t.Fatalf("sweep must skip guarded user, ran for %v", runner.runs)
	}
	if len(n.messages(42)) != 0 {
		t.Fatalf("guarded user must get no sweep messages")
	}
	// The sweep must not have released a flag it never acquired.
	if guard.TryAcquire(42) {
		t.Fatalf("sweep released a guard it did not own")
	}
}

func TestSweep_OneUserFailureDoesNotAbortOthers(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		1: {{Item: "a", Price: "1", Location: "Chicago"}},
		2: {{Item: "b", Price: "2", Location: "Miami"}},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{
		2: {{UserID: 2, Title: "b", Link: "https://x/b"}},
	}}
	// User 1 gets an error, user 2 must still be served.
	failing := &failingRunner{inner: runner, failFor: 1}
	n := newFakeNotifier()
	s, guard := newTestScheduler(repo, failing, n)

	s.runSweep()

	if len(n.messages(2)) == 0 {
		t.Fatalf("user 2 not served after user 1 failed")
	}
	// Guards must be released for both users after the sweep.
	if !guard.TryAcquire(1) || !guard.TryAcquire(2) {
		t.Fatalf("guard leaked after sweep")
	}
}

type failingRunner struct {
	inner   Runner
	failFor int64
}

func (f *failingRunner) Run(ctx context.Context, userID int64, flt filters.Filter) ([]search.Result, error) {
	if userID == f.failFor {
		return nil, errors.New("scrape failed")
	}
	return f.inner.Run(ctx, userID, flt)
}

func TestRunForUser_DeliversImmediateResults(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{
		42: {{UserID: 42, Title: "PS5", Price: "$300", Link: "https://x/1"}},
	}}
	n := newFakeNotifier()
	s, guard := newTestScheduler(repo, runner, n)

	s.RunForUser(42)
	s.wg.Wait()

	msgs := n.messages(42)
	if len(msgs) != 2 || msgs[0] != "Here are current listings matching your filter:" {
		t.Fatalf("unexpected messages: %v", msgs)
	}
	if !guard.TryAcquire(42) {
		t.Fatalf("guard not released after immediate search")
	}
}

func TestRunForUser_NoResultsMessage(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{}}
	n := newFakeNotifier()
	s, _ := newTestScheduler(repo, runner, n)

	s.RunForUser(42)
	s.wg.Wait()

	msgs := n.messages(42)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "No listings found matching your filter") {
		t.Fatalf("unexpected messages: %v", msgs)
	}
}

func TestRunForUser_ReportsSearchFailure(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{err: errors.New("craigslist unreachable")}
	n := newFakeNotifier()
	s, guard := newTestScheduler(repo, runner, n)

	s.RunForUser(42)
	s.wg.Wait()

	msgs := n.messages(42)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Your filter has been saved, but there was an error running the search") {
		t.Fatalf("search failure after confirm must be reported, got %v", msgs)
	}
	if !guard.TryAcquire(42) {
		t.Fatalf("guard not released after failed search")
	}
}

// itemFailingRunner fails the search for one filter item and serves the rest.
type itemFailingRunner struct {
	mu      sync.Mutex
	results map[string][]search.Result
	failFor string
	items   []string
}

func (r *itemFailingRunner) Run(_ context.Context, _ int64, f filters.Filter) ([]search.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, f.Item)
	if f.Item == r.failFor {
		return nil, errors.New("craigslist unreachable")
	}
	return r.results[f.Item], nil
}

func TestRunForUser_ReportsFailureAlongsideResults(t *testing.T) {
	// The freshly confirmed filter fails while an older filter still returns
	// a hit: the user must get both the results and the failure notice.
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {
			{Item: "old", Price: "10", Location: "Chicago"},
			{Item: "new", Price: "300", Location: "Miami"},
		},
	}}
	runner := &itemFailingRunner{
		results: map[string][]search.Result{
			"old": {{UserID: 42, Title: "old hit", Price: "$10", Link: "https://x/old"}},
		},
		failFor: "new",
	}
	n := newFakeNotifier()
	s, guard := newTestScheduler(repo, runner, n)

	s.RunForUser(42)
	s.wg.Wait()

	msgs := n.messages(42)
	if len(msgs) != 3 {
		t.Fatalf("want failure notice + header + listing, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "Your filter has been saved, but there was an error running the search") {
		t.Fatalf("partial failure not reported to the user: %v", msgs)
	}
	if msgs[1] != "Here are current listings matching your filter:" || !strings.Contains(msgs[2], "https://x/old") {
		t.Fatalf("surviving results not delivered: %v", msgs)
	}
	if !guard.TryAcquire(42) {
		t.Fatalf("guard not released after partial failure")
	}
}

func TestSearchUser_FiltersRunInInsertionOrderWithPause(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {
			{Item: "a", Price: "1", Location: "Chicago"},
			{Item: "b", Price: "2", Location: "Miami"},
			{Item: "c", Price: "3", Location: "New York"},
		},
	}}
	runner := &fakeRunner{results: map[int64][]search.Result{}}
	n := newFakeNotifier()
	guard := search.NewGuard()
	pause := 20 * time.Millisecond
	s := New(repo, guard, runner, 0, pause)
	s.SetNotifier(n)

	start := time.Now()
	s.runSweep()
	elapsed := time.Since(start)

	if len(runner.items) != 3 ||
		runner.items[0] != "a" || runner.items[1] != "b" || runner.items[2] != "c" {
		t.Fatalf("filters not run in insertion order: %v", runner.items)
	}
	// Two gaps between three filters.
	if elapsed < 2*pause {
		t.Fatalf("pause between successive filters not taken: elapsed %v", elapsed)
	}
}

func TestRunForUser_SkippedWhileGuardHeld(t *testing.T) {
	repo := &memRepo{data: map[int64][]filters.Filter{
		42: {{Item: "PS5", Price: "300", Location: "Chicago"}},
	}}
	runner := &fakeRunner{}
	n := newFakeNotifier()
	s, guard := newTestScheduler(repo, runner, n)

	guard.TryAcquire(42)
	s.RunForUser(42)
	s.wg.Wait()

	if len(runner.runs) != 0 || len(n.messages(42)) != 0 {
		t.Fatalf("immediate search must be dropped while a search is in flight")
	}
}
