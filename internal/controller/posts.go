package controller

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/abelbrown/postboard/internal/fetch"
	"github.com/abelbrown/postboard/internal/store"
)

// Messages published to observers when a fetch fails. The underlying error
// is logged, not published.
const (
	MsgNoConnectivity = "No internet connection. Refresh when you are back online."
	MsgFetchFailed    = "Could not load posts. Please try again."
)

// PostsConfig configures a PostsController.
type PostsConfig struct {
	TotalPages int          // page ceiling; the API reports none (default: 10)
	Dispatch   func(func()) // runs observer notifications; nil runs them inline
	Logger     *log.Logger  // nil discards
}

// DefaultPostsConfig returns sensible defaults.
func DefaultPostsConfig() PostsConfig {
	return PostsConfig{TotalPages: 10}
}

// PostsController owns the observable post list and its paging state.
//
// # Thread Safety
//
// All methods are safe for concurrent use. State is guarded by mu; the
// network call, the mirror write and observer notifications run without it.
//
// # Paging
//
// currentPage is the last page applied from the network. It only advances
// when a fetch succeeds, so a failed LoadMore retries the same page. LoadMore
// appends only onto a list that came from the network; if nothing has been
// fetched yet, or the list was restored from the mirror, it fetches page 1.
type PostsController struct {
	source     Source
	mirror     Mirror
	dispatch   func(func())
	logger     *log.Logger
	totalPages int

	mu          sync.Mutex
	posts       []store.Post
	currentPage int
	loading     bool
	state       State
	lastErr     string
	fetched     bool // a network page has been applied
	cached      bool // posts came from the mirror
	closed      bool
	observers   []observerEntry
	nextObsID   int

	wg sync.WaitGroup
}

type observerEntry struct {
	id  int
	obs Observer
}

// NewPostsController creates a controller with an empty list on page 1.
func NewPostsController(src Source, mirror Mirror, cfg PostsConfig) *PostsController {
	if cfg.TotalPages <= 0 {
		cfg.TotalPages = DefaultPostsConfig().TotalPages
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(f func()) { f() }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	return &PostsController{
		source:      src,
		mirror:      mirror,
		dispatch:    cfg.Dispatch,
		logger:      cfg.Logger,
		totalPages:  cfg.TotalPages,
		currentPage: 1,
		state:       StateIdle,
	}
}

// Subscribe registers o and returns a function that removes it.
func (c *PostsController) Subscribe(o Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObsID
	c.nextObsID++
	c.observers = append(c.observers, observerEntry{id: id, obs: o})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.observers {
			if e.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Reset starts a page-1 fetch that replaces the list on success.
// Returns false without side effects if a fetch is already active.
func (c *PostsController) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.loading {
		return false
	}
	c.begin(1)
	return true
}

// LoadMore starts a fetch of the next page that appends on success.
// Returns false without side effects if a fetch is already active or the
// last page has been reached.
func (c *PostsController) LoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.loading {
		return false
	}
	if !c.fetched || c.cached {
		c.begin(1)
		return true
	}
	if c.currentPage >= c.totalPages {
		return false
	}
	c.begin(c.currentPage + 1)
	return true
}

// begin marks the controller as fetching page and starts the request.
// Caller must hold c.mu.
func (c *PostsController) begin(page int) {
	c.loading = true
	c.state = StateFetching
	c.lastErr = ""

	c.wg.Add(1)
	go c.run(page)
}

// run performs the fetch for page and applies the outcome.
// There is no cancellation; a controller closed mid-fetch drops the result.
func (c *PostsController) run(page int) {
	defer c.wg.Done()

	// fetch id correlates the log lines of one request
	logger := c.logger.With("fetch", uuid.NewString()[:8], "page", page)
	logger.Debug("fetch started")

	start := time.Now()
	posts, err := c.source.FetchPage(context.Background(), page)

	c.mu.Lock()
	if c.closed {
		c.loading = false
		c.mu.Unlock()
		logger.Debug("discarding result after close")
		return
	}

	if err != nil {
		c.loading = false
		c.state = StateError
		c.lastErr = failureMessage(err)
		msg := c.lastErr
		c.mu.Unlock()

		logger.Error("fetch failed", "err", err, "dur", time.Since(start))
		c.notify(func(o Observer) { o.FetchFailed(msg) })
		return
	}

	if page == 1 {
		c.posts = append([]store.Post(nil), posts...)
	} else {
		c.posts = append(c.posts, posts...)
	}
	c.currentPage = page
	c.fetched = true
	c.cached = false
	written := c.snapshotLocked()
	c.mu.Unlock()

	// Still loading, so no other fetch can start a competing write.
	if err := c.mirror.ReplaceAll(written.Posts); err != nil {
		logger.Error("mirror replace failed", "rows", len(written.Posts), "err", err)
	}

	c.mu.Lock()
	c.loading = false
	c.state = StateIdle
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logger.Info("page loaded", "new", len(posts), "total", len(snap.Posts), "dur", time.Since(start))
	c.notify(func(o Observer) { o.PostsChanged(snap) })
}

// Restore publishes the mirror contents as the current list when nothing
// has been fetched from the network yet. Returns the number of posts applied.
func (c *PostsController) Restore() (int, error) {
	rows, err := c.mirror.ReadAll()
	if err != nil {
		c.logger.Error("restore from mirror failed", "err", err)
		return 0, err
	}

	c.mu.Lock()
	if c.closed || c.fetched || len(rows) == 0 {
		c.mu.Unlock()
		return 0, nil
	}
	c.posts = rows
	c.cached = true
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("restored from mirror", "rows", len(rows))
	c.notify(func(o Observer) { o.PostsChanged(snap) })
	return len(rows), nil
}

// ApplyFavoriteToggle sets the favorite flag of the first post with id.
// Only the in-memory list changes; the mirror has no favorite column.
// Returns false if no post has that id.
func (c *PostsController) ApplyFavoriteToggle(id int64, favorite bool) bool {
	c.mu.Lock()
	found := false
	for i := range c.posts {
		if c.posts[i].ID == id {
			c.posts[i].Favorite = favorite
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return false
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(func(o Observer) { o.PostsChanged(snap) })
	return true
}

// Posts returns a copy of the current list.
func (c *PostsController) Posts() []store.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.Post(nil), c.posts...)
}

// Page returns the last page applied from the network.
func (c *PostsController) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPage
}

// TotalPages returns the page ceiling.
func (c *PostsController) TotalPages() int {
	return c.totalPages
}

// Loading reports whether a fetch is in flight.
func (c *PostsController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// State returns the fetch state and, in StateError, the published message.
func (c *PostsController) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastErr
}

// Snapshot returns the current list and paging position.
func (c *PostsController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close tears the controller down. In-flight results are discarded and no
// further fetches start. Close does not wait; call Wait for that.
func (c *PostsController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.observers = nil
}

// Wait blocks until every started fetch has finished.
func (c *PostsController) Wait() {
	c.wg.Wait()
}

// snapshotLocked copies the list. Caller must hold c.mu.
func (c *PostsController) snapshotLocked() Snapshot {
	return Snapshot{
		Posts:      append([]store.Post(nil), c.posts...),
		Page:       c.currentPage,
		TotalPages: c.totalPages,
		Cached:     c.cached,
		Loading:    c.loading,
	}
}

// notify hands fn to the dispatcher once per registered observer set.
func (c *PostsController) notify(fn func(Observer)) {
	c.mu.Lock()
	entries := append([]observerEntry(nil), c.observers...)
	c.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	c.dispatch(func() {
		for _, e := range entries {
			fn(e.obs)
		}
	})
}

// failureMessage converts a fetch error into the single published message.
func failureMessage(err error) string {
	if errors.Is(err, fetch.ErrNoConnectivity) {
		return MsgNoConnectivity
	}
	return MsgFetchFailed
}
