package types

// Event is the marker interface for notifications emitted to external
// collaborators (search indexing, notification fan-out). The engine only
// emits; it never calls collaborators directly.
type Event interface {
	EventName() string
}

// ContentChanged is emitted after every successful draft mutation.
type ContentChanged struct {
	ContentID int64
	NewCommit Hash
}

func (ContentChanged) EventName() string { return "content.changed" }

// ContentPublished is emitted after every successful publication.
type ContentPublished struct {
	ContentID   int64
	RecordID    string
	Commit      Hash
	MajorUpdate bool
}

func (ContentPublished) EventName() string { return "content.published" }

// ContentUnpublished is emitted after a public version is revoked.
type ContentUnpublished struct {
	ContentID int64
	RecordID  string
}

func (ContentUnpublished) EventName() string { return "content.unpublished" }
