package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// SubmitForValidation pins the current draft head as the commit under
// validation. No new commit is created.
func (s *Service) SubmitForValidation(ctx context.Context, id int64) (types.Hash, error) {
	release, err := s.locks.Acquire(ctx, draftLockKey(id))
	if err != nil {
		return types.Hash{}, err
	}
	defer release()

	c, err := s.store.LoadContent(id)
	if err != nil {
		return types.Hash{}, err
	}
	c.ValidationHash = c.DraftHash
	if err := s.store.SaveContent(c); err != nil {
		return types.Hash{}, err
	}
	return c.ValidationHash, nil
}

// ChangedSincePublication reports whether the draft head differs
// structurally from the published commit. Unpublished content always
// counts as changed. The commit chain is walked with a bounded number of
// steps; if the published commit is not an ancestor within the bound, the
// structural hashes decide.
func (s *Service) ChangedSincePublication(id int64) (bool, error) {
	c, err := s.store.LoadContent(id)
	if err != nil {
		return false, err
	}
	if !c.IsPublished() {
		return true, nil
	}
	if c.DraftHash == c.PublicHash {
		return false, nil
	}

	chain, reached, err := s.store.WalkHistory(id, c.DraftHash, c.PublicHash, historyWalkLimit)
	if err != nil {
		return false, err
	}
	if reached && len(chain) == 0 {
		return false, nil
	}

	// Commits may differ while the visible structure does not (e.g. an
	// edit that was reverted); compare structural hashes.
	draft, err := tree.Load(s.store, id, c.DraftHash, s.treeOpts)
	if err != nil {
		return false, err
	}
	public, err := tree.Load(s.store, id, c.PublicHash, s.treeOpts)
	if err != nil {
		return false, err
	}
	return draft.ComputeHash() != public.ComputeHash(), nil
}

// WorkingCopyDir returns the working directory for one content item.
func (s *Service) WorkingCopyDir(id int64) string {
	return filepath.Join(s.workDir, strconv.FormatInt(id, 10))
}

// MaterializeDraft writes the draft head as a working directory.
// The result is a disposable cache; see tree.Materialize.
func (s *Service) MaterializeDraft(ctx context.Context, id int64) (string, error) {
	release, err := s.locks.Acquire(ctx, draftLockKey(id))
	if err != nil {
		return "", err
	}
	defer release()

	c, err := s.store.LoadContent(id)
	if err != nil {
		return "", err
	}
	vc, err := tree.Load(s.store, id, c.DraftHash, s.treeOpts)
	if err != nil {
		return "", err
	}

	dir := s.WorkingCopyDir(id)
	if err := objectstore.DeleteWorkingCopy(dir); err != nil {
		return "", err
	}
	if err := vc.Materialize(s.store, id, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// DeleteContent permanently removes a content item's registration and its
// working copy. Only allowed when no public version exists and all authors
// are gone; the decision to remove authors is an external concern.
// Historical commits and blobs stay in the store, addressed by hash.
func (s *Service) DeleteContent(ctx context.Context, id int64) error {
	release, err := s.locks.Acquire(ctx, draftLockKey(id))
	if err != nil {
		return err
	}
	defer release()

	c, err := s.store.LoadContent(id)
	if err != nil {
		return err
	}
	if c.IsPublished() {
		return fmt.Errorf("content %d still has a public version", id)
	}

	if err := objectstore.DeleteWorkingCopy(s.WorkingCopyDir(id)); err != nil {
		return err
	}
	if err := s.store.DeleteContent(id); err != nil {
		return err
	}
	s.log.WithField("content", id).Info("content deleted")
	return nil
}

// UpdateAuthors replaces the ordered author set. The set must stay
// non-empty while the content exists.
func (s *Service) UpdateAuthors(ctx context.Context, id int64, authors []string) error {
	if len(authors) == 0 {
		return fmt.Errorf("content needs at least one author")
	}
	release, err := s.locks.Acquire(ctx, draftLockKey(id))
	if err != nil {
		return err
	}
	defer release()

	c, err := s.store.LoadContent(id)
	if err != nil {
		return err
	}
	c.Authors = append([]string(nil), authors...)
	c.UpdatedAt = time.Now()
	return s.store.SaveContent(c)
}
