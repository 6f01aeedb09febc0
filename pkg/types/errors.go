package types

import "errors"

// Error kinds surfaced by the engine. Callers match them with errors.Is;
// every error returned from the mutation and publication APIs wraps exactly
// one of these.
var (
	// ErrNotFound covers unresolved commits, blobs and slug paths.
	ErrNotFound = errors.New("not found")

	// ErrStorage is a durable-store read or write failure. It is fatal to
	// the current operation and never retried internally.
	ErrStorage = errors.New("storage failure")

	// ErrDepthExceeded is returned when adding a container would exceed the
	// configured maximum nesting depth.
	ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

	// ErrNotAContainer is returned when a parent cannot hold the requested
	// child type, either structurally or by content-kind policy.
	ErrNotAContainer = errors.New("parent cannot hold this child")

	// ErrInvalidMove is returned for moves that would exceed the depth
	// bound, violate kind policy, or place a node inside its own subtree.
	ErrInvalidMove = errors.New("invalid move")

	// ErrCannotDeleteRoot is returned when a delete targets the tree root.
	ErrCannotDeleteRoot = errors.New("cannot delete root container")

	// ErrEmptyContent is returned by publish when nothing publishable
	// remains after excluding unready subtrees.
	ErrEmptyContent = errors.New("nothing publishable")

	// ErrNotPublished is returned by unpublish when no public version
	// exists.
	ErrNotPublished = errors.New("content is not published")

	// ErrConcurrentModification is returned on lock contention beyond the
	// bounded wait, or when a caller-supplied base commit no longer matches
	// the draft head.
	ErrConcurrentModification = errors.New("concurrent modification")
)
