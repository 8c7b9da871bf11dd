// Package ui provides the Bubble Tea TUI for postboard.
package ui

import "github.com/abelbrown/postboard/internal/controller"

// PostsChanged is sent when the controller publishes a new list.
type PostsChanged struct {
	Snap controller.Snapshot
}

// FetchFailed is sent when a fetch fails. Message is user-facing.
type FetchFailed struct {
	Message string
}
