// Package controller implements the paginated fetch-and-cache controller.
//
// # Architecture
//
//	┌──────────┐     ┌─────────────────┐     ┌──────────┐
//	│  Source  │ ──> │ PostsController │ ──> │ Observer │
//	│ (remote) │     │  (page state)   │     │   (UI)   │
//	└──────────┘     └─────────────────┘     └──────────┘
//	                          │
//	                          v
//	                   ┌────────────┐
//	                   │   Mirror   │
//	                   │  (local)   │
//	                   └────────────┘
//
// A fetch moves the controller from Idle to Fetching(n). On success the page
// is merged into the in-memory list (replace for page 1, append otherwise),
// the mirror is replaced with the full list, and observers receive a
// Snapshot. On failure the list and mirror are untouched and observers
// receive a single human-readable message.
//
// # Concurrency
//
// At most one fetch is in flight. Reset and LoadMore calls that arrive while
// a fetch is active are dropped, not queued. Fetches run on their own
// goroutine; observer notifications run through the configured dispatcher.
package controller

import (
	"context"

	"github.com/abelbrown/postboard/internal/store"
)

// Source fetches one page of posts.
type Source interface {
	FetchPage(ctx context.Context, page int) ([]store.Post, error)
}

// Mirror is the local copy replaced after every successful fetch.
type Mirror interface {
	ReplaceAll(posts []store.Post) error
	ReadAll() ([]store.Post, error)
}

// State is the controller's fetch state.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the current list plus paging position.
type Snapshot struct {
	Posts      []store.Post
	Page       int
	TotalPages int
	// Cached is true while the list came from the mirror rather than the network.
	Cached bool
	// Loading is true while a fetch is in flight.
	Loading bool
}

// Observer receives controller output.
type Observer interface {
	PostsChanged(snap Snapshot)
	FetchFailed(message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnPosts func(Snapshot)
	OnError func(string)
}

// PostsChanged implements Observer.
func (o ObserverFuncs) PostsChanged(snap Snapshot) {
	if o.OnPosts != nil {
		o.OnPosts(snap)
	}
}

// FetchFailed implements Observer.
func (o ObserverFuncs) FetchFailed(message string) {
	if o.OnError != nil {
		o.OnError(message)
	}
}
