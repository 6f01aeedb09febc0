// Package publish produces and tracks public snapshots of draft trees.
//
// A publication pins one draft commit, prunes containers marked not ready,
// writes a fully denormalized copy of what remains into a fresh
// uniquely-named directory under the public root, and only then advances
// the content's public pointer. Concurrent readers therefore see either
// the complete previous snapshot or the complete new one, never a partial
// tree. Superseded snapshots stay on disk for redirection.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkwell-cms/inkwell/internal/locker"
	"github.com/inkwell-cms/inkwell/pkg/events"
	"github.com/inkwell-cms/inkwell/pkg/metrics"
	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/slug"
	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

type Manager struct {
	store     *objectstore.Store
	locks     *locker.Locker
	bus       *events.Bus
	log       *logrus.Logger
	publicDir string
	treeOpts  tree.Options
}

func NewManager(store *objectstore.Store, locks *locker.Locker, bus *events.Bus, log *logrus.Logger, publicDir string, opts tree.Options) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		store:     store,
		locks:     locks,
		bus:       bus,
		log:       log,
		publicDir: publicDir,
		treeOpts:  opts,
	}
}

// Publication locks are separate from draft locks: publishing never
// blocks editing.
func publishLockKey(id int64) string {
	return fmt.Sprintf("publish:%d", id)
}

// Publish snapshots the tree at the given commit into the public area and
// creates a new publication record. A zero `at` publishes the draft head.
// majorUpdate resets the publication timestamp; a minor update keeps it
// and only advances the last-updated timestamp.
func (m *Manager) Publish(ctx context.Context, id int64, at types.Hash, majorUpdate bool) (*types.PublicationRecord, error) {
	release, err := m.locks.Acquire(ctx, publishLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := m.store.LoadContent(id)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = c.DraftHash
	}

	// The commit is pinned here; concurrent draft edits cannot affect the
	// snapshot below.
	vc, err := tree.Load(m.store, id, at, m.treeOpts)
	if err != nil {
		return nil, err
	}

	unready, err := m.store.UnreadyPaths(id)
	if err != nil {
		return nil, err
	}

	pruned := pruneUnready(vc.Root(), nil, unready)
	if len(pruned.Children) == 0 {
		return nil, fmt.Errorf("content %d at %s: %w", id, at.Short(), types.ErrEmptyContent)
	}

	var prev *types.PublicationRecord
	if c.CurrentPublicationID != "" {
		prev, err = m.store.LoadPublicationRecord(c.CurrentPublicationID)
		if err != nil {
			return nil, err
		}
	}

	publicSlug, err := m.publicSlugFor(c, vc, prev)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &types.PublicationRecord{
		ID:         uuid.NewString(),
		ContentID:  id,
		CommitHash: at,
		Title:      vc.Title(),
		PublicSlug: publicSlug,

		PublishedAt: now,
		UpdatedAt:   now,
	}
	if prev != nil {
		record.PredecessorID = prev.ID
		if !majorUpdate {
			record.PublishedAt = prev.PublishedAt
		}
	}

	// Write the complete snapshot to its own directory before anything
	// becomes visible.
	dir, err := m.writeSnapshot(id, record.ID, vc, pruned)
	if err != nil {
		return nil, err
	}
	record.Directory = dir

	// The pointer flip is the moment of publication. The new record, the
	// predecessor's redirect mark (UpdatedAt deliberately stays: the old
	// record is history, not a live document) and the pointer land in one
	// transaction, so a failure leaves the previous publication fully
	// intact.
	c.PublicHash = at
	c.CurrentPublicationID = record.ID
	c.PublishedAt = record.PublishedAt
	c.UpdatedAt = record.UpdatedAt

	records := []*types.PublicationRecord{record}
	if prev != nil {
		prev.MustRedirect = true
		prev.SuccessorID = record.ID
		records = append(records, prev)
	}
	if err := m.store.SavePublicationState(c, records...); err != nil {
		return nil, err
	}

	metrics.Publications.Inc()
	m.log.WithFields(logrus.Fields{
		"content": id,
		"commit":  at.Short(),
		"record":  record.ID,
		"slug":    publicSlug,
		"major":   majorUpdate,
	}).Info("content published")
	m.bus.Emit(types.ContentPublished{
		ContentID:   id,
		RecordID:    record.ID,
		Commit:      at,
		MajorUpdate: majorUpdate,
	})
	return record, nil
}

// publicSlugFor keeps the previous public slug while the title is
// unchanged; a retitled document gets a fresh slug from the public pool.
// The public pool is global and only grows, so superseded slugs keep
// redirecting.
func (m *Manager) publicSlugFor(c *types.PublishableContent, vc *tree.VersionedContent, prev *types.PublicationRecord) (string, error) {
	if prev != nil && prev.Title == vc.Title() {
		return prev.PublicSlug, nil
	}

	base := slug.Slugify(vc.Title())
	candidate := base
	for i := 1; ; i++ {
		taken, err := m.store.HasPublicSlug(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	if err := m.store.ReservePublicSlug(candidate, c.ID); err != nil {
		return "", err
	}
	return candidate, nil
}

// Unpublish revokes the current public version. The publication record
// and its snapshot files are retained for historical redirection; purging
// them is a separate administrative concern.
func (m *Manager) Unpublish(ctx context.Context, id int64) error {
	release, err := m.locks.Acquire(ctx, publishLockKey(id))
	if err != nil {
		return err
	}
	defer release()

	c, err := m.store.LoadContent(id)
	if err != nil {
		return err
	}
	if !c.IsPublished() {
		return fmt.Errorf("content %d: %w", id, types.ErrNotPublished)
	}

	recordID := c.CurrentPublicationID
	c.PublicHash = types.Hash{}
	c.CurrentPublicationID = ""
	c.UpdatedAt = time.Now()
	if err := m.store.SaveContent(c); err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"content": id,
		"record":  recordID,
	}).Info("content unpublished")
	m.bus.Emit(types.ContentUnpublished{ContentID: id, RecordID: recordID})
	return nil
}

// MarkReady flips the publish-eligibility flag of the container at path.
// This is editorial metadata on the draft: no commit is created. The
// publish lock serializes the read-modify-write of the readiness set, both
// against other MarkReady calls and against a running publication.
func (m *Manager) MarkReady(ctx context.Context, id int64, path []string, ready bool) error {
	if len(path) == 0 {
		return fmt.Errorf("the root container has no readiness flag")
	}

	release, err := m.locks.Acquire(ctx, publishLockKey(id))
	if err != nil {
		return err
	}
	defer release()

	c, err := m.store.LoadContent(id)
	if err != nil {
		return err
	}
	vc, err := tree.Load(m.store, id, c.DraftHash, m.treeOpts)
	if err != nil {
		return err
	}
	if _, err := vc.FindContainer(path); err != nil {
		return err
	}

	return m.store.SetUnready(id, strings.Join(path, "/"), !ready)
}

// CurrentRecord returns the current publication record, or ErrNotPublished.
func (m *Manager) CurrentRecord(id int64) (*types.PublicationRecord, error) {
	c, err := m.store.LoadContent(id)
	if err != nil {
		return nil, err
	}
	if c.CurrentPublicationID == "" {
		return nil, fmt.Errorf("content %d: %w", id, types.ErrNotPublished)
	}
	return m.store.LoadPublicationRecord(c.CurrentPublicationID)
}
