package objectstore

import (
	"fmt"

	"github.com/inkwell-cms/inkwell/pkg/codec"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// Commit is one immutable snapshot of a content tree. Manifest holds the
// tree structure as deterministic CBOR owned by the tree package; the
// object store treats it as opaque bytes. Parent is zero for the first
// commit — history is a single-parent chain, never a merge.
type Commit struct {
	Parent    types.Hash `cbor:"parent"`
	CreatedAt int64      `cbor:"createdAt"` // unix seconds
	Message   string     `cbor:"message"`
	Manifest  []byte     `cbor:"manifest"`
}

// WriteCommit stores the commit in the content's area and returns its
// commit-domain hash. Idempotent for identical commits.
func (s *Store) WriteCommit(contentID int64, c *Commit) (types.Hash, error) {
	encoded, err := codec.Marshal(c)
	if err != nil {
		return types.Hash{}, fmt.Errorf("encode commit: %v: %w", err, types.ErrStorage)
	}
	ref := types.HashCommit(encoded)

	exists, err := s.kv.Has(commitKey(contentID, ref))
	if err != nil {
		return types.Hash{}, err
	}
	if !exists {
		if err := s.kv.Write(commitKey(contentID, ref), encoded); err != nil {
			return types.Hash{}, err
		}
	}
	return ref, nil
}

// ReadCommit loads a commit by hash.
func (s *Store) ReadCommit(contentID int64, ref types.Hash) (*Commit, error) {
	raw, err := s.kv.Read(commitKey(contentID, ref))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", ref.Short(), err)
	}
	var c Commit
	if err := codec.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode commit %s: %v: %w", ref.Short(), err, types.ErrStorage)
	}
	return &c, nil
}

// WalkHistory follows parent links from `from`, collecting commit hashes
// until `until` is reached (exclusive), the chain ends, or limit commits
// have been visited. It returns the visited hashes in child-to-parent
// order and whether `until` was reached.
func (s *Store) WalkHistory(contentID int64, from, until types.Hash, limit int) ([]types.Hash, bool, error) {
	var chain []types.Hash
	current := from
	for steps := 0; steps < limit; steps++ {
		if current.IsZero() {
			return chain, false, nil
		}
		if current == until {
			return chain, true, nil
		}
		chain = append(chain, current)
		c, err := s.ReadCommit(contentID, current)
		if err != nil {
			return nil, false, err
		}
		current = c.Parent
	}
	return chain, false, nil
}
