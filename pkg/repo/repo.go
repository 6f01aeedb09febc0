// Package repo is the repository mutation API: the only path by which a
// content item's draft tree advances to a new commit. One mutation is one
// commit, serialized per content id by an advisory lock, with a
// ContentChanged event emitted after every success.
//
// A failed mutation leaves the draft head untouched. Blobs written during
// a failed attempt may remain as unreferenced garbage in the
// content-addressed store; they are addressed by hash and never reachable
// from the head.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkwell-cms/inkwell/internal/locker"
	"github.com/inkwell-cms/inkwell/pkg/events"
	"github.com/inkwell-cms/inkwell/pkg/metrics"
	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// historyWalkLimit bounds the parent-chain walk when answering "changed
// since last publication". Trees have at most a few hundred nodes; a
// draft more than this many commits ahead counts as changed.
const historyWalkLimit = 10000

type Service struct {
	store    *objectstore.Store
	locks    *locker.Locker
	bus      *events.Bus
	log      *logrus.Logger
	workDir  string
	treeOpts tree.Options
}

func NewService(store *objectstore.Store, locks *locker.Locker, bus *events.Bus, log *logrus.Logger, workDir string, opts tree.Options) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		store:    store,
		locks:    locks,
		bus:      bus,
		log:      log,
		workDir:  workDir,
		treeOpts: opts,
	}
}

func draftLockKey(id int64) string {
	return fmt.Sprintf("draft:%d", id)
}

// Content loads the aggregate metadata for one content item.
func (s *Service) Content(id int64) (*types.PublishableContent, error) {
	return s.store.LoadContent(id)
}

// ListContents returns every registered content item, ordered by id.
func (s *Service) ListContents() ([]*types.PublishableContent, error) {
	return s.store.ListContents()
}

// CreateContent starts a new document: an empty tree with a root container
// titled title, committed once, registered under a fresh id.
func (s *Service) CreateContent(ctx context.Context, title string, kind types.ContentKind, authors []string, licence string) (*types.PublishableContent, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
	if len(authors) == 0 {
		return nil, fmt.Errorf("content needs at least one author")
	}

	id, err := s.store.NextContentID()
	if err != nil {
		return nil, err
	}

	vc := tree.New(title, kind, s.treeOpts)
	sha, err := vc.Commit(s.store, id, "content creation")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := &types.PublishableContent{
		ID:        id,
		Title:     title,
		Slug:      vc.Slug(),
		Kind:      kind,
		Authors:   append([]string(nil), authors...),
		Licence:   licence,
		DraftHash: sha,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveContent(c); err != nil {
		return nil, err
	}

	metrics.CommitsWritten.Inc()
	s.log.WithFields(logrus.Fields{
		"content": id,
		"kind":    kind,
		"commit":  sha.Short(),
	}).Info("content created")
	s.bus.Emit(types.ContentChanged{ContentID: id, NewCommit: sha})
	return c, nil
}

// mutate runs one structural edit under the content's draft lock: load the
// tree at the draft head, apply fn, commit, advance the head, emit. A
// non-zero base is the draft head the caller last saw; if it no longer
// matches, the mutation fails before any write. A non-nil meta mutator is
// applied to the aggregate inside the same save, so metadata changes can
// never race a concurrent head advance.
func (s *Service) mutate(ctx context.Context, id int64, base types.Hash, message string, fn func(*tree.VersionedContent) error, meta func(*types.PublishableContent)) (types.Hash, error) {
	release, err := s.locks.Acquire(ctx, draftLockKey(id))
	if err != nil {
		return types.Hash{}, err
	}
	defer release()

	c, err := s.store.LoadContent(id)
	if err != nil {
		return types.Hash{}, err
	}
	if !base.IsZero() && base != c.DraftHash {
		return types.Hash{}, fmt.Errorf("base %s is behind draft head %s: %w",
			base.Short(), c.DraftHash.Short(), types.ErrConcurrentModification)
	}

	vc, err := tree.Load(s.store, id, c.DraftHash, s.treeOpts)
	if err != nil {
		return types.Hash{}, err
	}

	if err := fn(vc); err != nil {
		return types.Hash{}, err
	}

	sha, err := vc.Commit(s.store, id, message)
	if err != nil {
		return types.Hash{}, err
	}

	c.Title = vc.Title()
	c.Slug = vc.Slug()
	c.DraftHash = sha
	c.UpdatedAt = time.Now()
	if meta != nil {
		meta(c)
	}
	if err := s.store.SaveContent(c); err != nil {
		return types.Hash{}, err
	}

	metrics.CommitsWritten.Inc()
	s.log.WithFields(logrus.Fields{
		"content": id,
		"commit":  sha.Short(),
		"message": message,
	}).Debug("draft advanced")
	s.bus.Emit(types.ContentChanged{ContentID: id, NewCommit: sha})
	return sha, nil
}

// writeOptional stores an optional text as a blob. nil stays nil: absent
// text never becomes the empty blob.
func (s *Service) writeOptional(id int64, text *string) (*types.Hash, error) {
	if text == nil {
		return nil, nil
	}
	h, err := s.store.WriteBlob(id, []byte(*text))
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// AddContainer appends a new container as the last child of parentPath.
func (s *Service) AddContainer(ctx context.Context, id int64, base types.Hash, parentPath []string, title string, introduction, conclusion *string) (types.Hash, error) {
	return s.mutate(ctx, id, base, fmt.Sprintf("add container %q", title), func(vc *tree.VersionedContent) error {
		parent, err := vc.FindContainer(parentPath)
		if err != nil {
			return err
		}
		intro, err := s.writeOptional(id, introduction)
		if err != nil {
			return err
		}
		concl, err := s.writeOptional(id, conclusion)
		if err != nil {
			return err
		}
		_, err = vc.AddContainer(parent, title, intro, concl)
		return err
	}, nil)
}

// AddExtract appends a new extract as the last child of parentPath.
func (s *Service) AddExtract(ctx context.Context, id int64, base types.Hash, parentPath []string, title string, text *string) (types.Hash, error) {
	return s.mutate(ctx, id, base, fmt.Sprintf("add extract %q", title), func(vc *tree.VersionedContent) error {
		parent, err := vc.FindContainer(parentPath)
		if err != nil {
			return err
		}
		blob, err := s.writeOptional(id, text)
		if err != nil {
			return err
		}
		_, err = vc.AddExtract(parent, title, blob)
		return err
	}, nil)
}

// DeleteNode removes the node at path and, for containers, its whole
// subtree. Historical commits keep the removed nodes retrievable.
func (s *Service) DeleteNode(ctx context.Context, id int64, base types.Hash, path []string) (types.Hash, error) {
	if len(path) == 0 {
		return types.Hash{}, fmt.Errorf("delete: %w", types.ErrCannotDeleteRoot)
	}
	return s.mutate(ctx, id, base, fmt.Sprintf("delete %q", pathString(path)), func(vc *tree.VersionedContent) error {
		n, err := vc.Find(path)
		if err != nil {
			return err
		}
		return vc.Delete(n)
	}, nil)
}

// MoveNode relocates the node at path under newParentPath at the given
// position.
func (s *Service) MoveNode(ctx context.Context, id int64, base types.Hash, path, newParentPath []string, pos tree.Position) (types.Hash, error) {
	return s.mutate(ctx, id, base, fmt.Sprintf("move %q", pathString(path)), func(vc *tree.VersionedContent) error {
		n, err := vc.Find(path)
		if err != nil {
			return err
		}
		newParent, err := vc.FindContainer(newParentPath)
		if err != nil {
			return err
		}
		return vc.Move(n, newParent, pos)
	}, nil)
}

func pathString(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
