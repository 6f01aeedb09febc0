// Package types holds the shared value types of the content engine: object
// hashes, the publishable-content aggregate, publication records, content
// kinds and the error taxonomy. It has no behavior beyond hashing and
// kind policy so every other package can depend on it without cycles.
package types

import "time"

// ContentKind is the closed set of document kinds. The kind decides which
// node types a container may hold at which depth; it never changes after
// creation.
type ContentKind string

const (
	KindTutorial ContentKind = "tutorial"
	KindArticle  ContentKind = "article"
	KindOpinion  ContentKind = "opinion"
)

// Valid reports whether k is one of the known kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindTutorial, KindArticle, KindOpinion:
		return true
	}
	return false
}

// AllowsContainers reports whether content of this kind may hold child
// containers under a container at the given depth. The root container is
// depth 0; maxDepth is the configured number of container levels below the
// root (2 means root → part → chapter).
func (k ContentKind) AllowsContainers(depth, maxDepth int) bool {
	switch k {
	case KindTutorial:
		return depth < maxDepth
	default:
		// Articles and opinions are flat: extracts directly under the root.
		return false
	}
}

// AllowsExtracts reports whether content of this kind may hold extracts
// under a container at the given depth. Tutorials require at least one
// container level first.
func (k ContentKind) AllowsExtracts(depth int) bool {
	switch k {
	case KindTutorial:
		return depth >= 1
	default:
		return true
	}
}

// PublishableContent is the root aggregate: one long-form document with a
// draft commit chain and at most one current public snapshot. Persisted in
// the object store's key-value area; the commit trees it references are
// loaded separately per hash.
type PublishableContent struct {
	ID      int64       `cbor:"id"`
	Title   string      `cbor:"title"`
	Slug    string      `cbor:"slug"`
	Kind    ContentKind `cbor:"kind"`
	Authors []string    `cbor:"authors"`
	Licence string      `cbor:"licence"`

	// DraftHash is the current head of the draft commit chain. Advanced by
	// every structural mutation.
	DraftHash Hash `cbor:"draftHash"`
	// ValidationHash points at the commit submitted for validation, if any.
	ValidationHash Hash `cbor:"validationHash"`
	// PublicHash points at the commit of the current public snapshot. Set
	// only by the publication manager.
	PublicHash Hash `cbor:"publicHash"`
	// CurrentPublicationID is the id of the current PublicationRecord, empty
	// when unpublished.
	CurrentPublicationID string `cbor:"currentPublicationId"`

	CreatedAt   time.Time `cbor:"createdAt"`
	PublishedAt time.Time `cbor:"publishedAt"`
	UpdatedAt   time.Time `cbor:"updatedAt"`
}

// IsPublished reports whether a public snapshot currently exists.
func (c *PublishableContent) IsPublished() bool {
	return !c.PublicHash.IsZero()
}

// PublicationRecord is the immutable record of one published snapshot.
// Records form a chain through PredecessorID/SuccessorID; superseded
// records keep their timestamps and get MustRedirect set so historical
// links stay resolvable.
type PublicationRecord struct {
	ID        string `cbor:"id"`
	ContentID int64  `cbor:"contentId"`

	// CommitHash is the exact draft commit that was published.
	CommitHash Hash `cbor:"commitHash"`
	// Title is the root title at publication time, used to detect whether a
	// later publication needs a fresh public slug.
	Title      string `cbor:"title"`
	PublicSlug string `cbor:"publicSlug"`
	// Directory is the snapshot location under the public root. Written
	// once, never mutated.
	Directory string `cbor:"directory"`

	PublishedAt time.Time `cbor:"publishedAt"`
	UpdatedAt   time.Time `cbor:"updatedAt"`

	MustRedirect  bool   `cbor:"mustRedirect"`
	PredecessorID string `cbor:"predecessorId"`
	SuccessorID   string `cbor:"successorId"`
}
