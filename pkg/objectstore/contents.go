package objectstore

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/inkwell-cms/inkwell/pkg/codec"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

func contentKey(id int64) []byte {
	return []byte(fmt.Sprintf("content:%d", id))
}

func unreadyKey(id int64) []byte {
	return []byte(fmt.Sprintf("content:%d:unready", id))
}

func publicationKey(id string) []byte {
	return []byte("pub:" + id)
}

func publicSlugKey(s string) []byte {
	return []byte("pubslug:" + s)
}

// SaveContent persists the aggregate metadata of one content item.
func (s *Store) SaveContent(c *types.PublishableContent) error {
	encoded, err := codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode content %d: %v: %w", c.ID, err, types.ErrStorage)
	}
	return s.kv.Write(contentKey(c.ID), encoded)
}

// LoadContent loads the aggregate metadata of one content item.
func (s *Store) LoadContent(id int64) (*types.PublishableContent, error) {
	raw, err := s.kv.Read(contentKey(id))
	if err != nil {
		return nil, fmt.Errorf("content %d: %w", id, err)
	}
	var c types.PublishableContent
	if err := codec.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode content %d: %v: %w", id, err, types.ErrStorage)
	}
	return &c, nil
}

// ListContents scans the registry and returns every content aggregate,
// ordered by id. Blob, chunk, commit and unready keys share the content
// prefix but carry further segments, so only bare `content:<id>` keys are
// aggregates.
func (s *Store) ListContents() ([]*types.PublishableContent, error) {
	items, err := s.kv.GetItemsWithPrefix([]byte("content:"))
	if err != nil {
		return nil, err
	}

	var out []*types.PublishableContent
	for _, kv := range items {
		if bytes.Count(kv[0], []byte(":")) != 1 {
			continue
		}
		var c types.PublishableContent
		if err := codec.Unmarshal(kv[1], &c); err != nil {
			return nil, fmt.Errorf("decode content %q: %v: %w", kv[0], err, types.ErrStorage)
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteContent removes only the aggregate metadata record. Historical
// commits and blobs stay retrievable by hash.
func (s *Store) DeleteContent(id int64) error {
	return s.kv.Delete(contentKey(id))
}

// SavePublicationRecord persists one publication record.
func (s *Store) SavePublicationRecord(r *types.PublicationRecord) error {
	encoded, err := codec.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode publication %s: %v: %w", r.ID, err, types.ErrStorage)
	}
	return s.kv.Write(publicationKey(r.ID), encoded)
}

// SavePublicationState persists the content aggregate together with any
// publication records in a single transaction. Publication flips the
// public pointer, the new record and the predecessor's redirect mark
// through this, so readers never observe one without the others.
func (s *Store) SavePublicationState(c *types.PublishableContent, records ...*types.PublicationRecord) error {
	batch := make([][2][]byte, 0, len(records)+1)
	for _, r := range records {
		encoded, err := codec.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode publication %s: %v: %w", r.ID, err, types.ErrStorage)
		}
		batch = append(batch, [2][]byte{publicationKey(r.ID), encoded})
	}
	encoded, err := codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode content %d: %v: %w", c.ID, err, types.ErrStorage)
	}
	batch = append(batch, [2][]byte{contentKey(c.ID), encoded})
	return s.kv.WriteBatch(batch)
}

// LoadPublicationRecord loads one publication record by id.
func (s *Store) LoadPublicationRecord(id string) (*types.PublicationRecord, error) {
	raw, err := s.kv.Read(publicationKey(id))
	if err != nil {
		return nil, fmt.Errorf("publication %s: %w", id, err)
	}
	var r types.PublicationRecord
	if err := codec.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode publication %s: %v: %w", id, err, types.ErrStorage)
	}
	return &r, nil
}

// HasPublicSlug reports whether a slug is taken in the public area. The
// public pool is global across contents and, like node pools, only grows.
func (s *Store) HasPublicSlug(slug string) (bool, error) {
	return s.kv.Has(publicSlugKey(slug))
}

// ReservePublicSlug marks a public slug as taken by the given content.
func (s *Store) ReservePublicSlug(slug string, contentID int64) error {
	return s.kv.Write(publicSlugKey(slug), []byte(fmt.Sprintf("%d", contentID)))
}

// UnreadyPaths returns the set of container slug paths currently marked
// not ready to publish. Readiness is editorial metadata: it lives outside
// the commit history and changing it creates no commit.
func (s *Store) UnreadyPaths(contentID int64) (map[string]bool, error) {
	out := make(map[string]bool)
	raw, err := s.kv.Read(unreadyKey(contentID))
	if err != nil {
		if isNotFound(err) {
			return out, nil
		}
		return nil, err
	}
	var paths []string
	if err := codec.Unmarshal(raw, &paths); err != nil {
		return nil, fmt.Errorf("decode unready set of content %d: %v: %w", contentID, err, types.ErrStorage)
	}
	for _, p := range paths {
		out[p] = true
	}
	return out, nil
}

// SetUnready adds or removes one container slug path from the not-ready
// set.
func (s *Store) SetUnready(contentID int64, path string, unready bool) error {
	set, err := s.UnreadyPaths(contentID)
	if err != nil {
		return err
	}
	if unready {
		set[path] = true
	} else {
		delete(set, path)
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	encoded, err := codec.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encode unready set of content %d: %v: %w", contentID, err, types.ErrStorage)
	}
	return s.kv.Write(unreadyKey(contentID), encoded)
}
