// Package objectstore is the content-addressed persistence layer: text
// blobs, tree commits, content metadata and publication records, organized
// as one append-only area per content item inside a single badger
// database.
//
// Blobs are chunked with a buzhash rolling chunker, compressed with LZMA
// and deduplicated by chunk hash. Commits are deterministically CBOR
// encoded and addressed by the hash of their encoding, each linked to at
// most one parent. Nothing in this package ever rewrites an existing
// object.
package objectstore

import (
	"bytes"
	"fmt"
	"io"

	chunker "github.com/ipfs/boxo/chunker"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz/lzma"

	"github.com/inkwell-cms/inkwell/internal/keyValStore"
	"github.com/inkwell-cms/inkwell/pkg/codec"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

type Store struct {
	kv  *keyValStore.KeyValStore
	log *logrus.Logger
}

func New(kv *keyValStore.KeyValStore, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{kv: kv, log: log}
}

// NextContentID allocates a fresh content id.
func (s *Store) NextContentID() (int64, error) {
	return s.kv.NextContentID()
}

func blobKey(contentID int64, h types.Hash) []byte {
	return []byte(fmt.Sprintf("content:%d:blob:%s", contentID, h))
}

func chunkKey(contentID int64, h types.Hash) []byte {
	return []byte(fmt.Sprintf("content:%d:chunk:%s", contentID, h))
}

func commitKey(contentID int64, h types.Hash) []byte {
	return []byte(fmt.Sprintf("content:%d:commit:%s", contentID, h))
}

// blobRecord is the persisted form of a blob: its size and the ordered
// chunk references that reassemble it.
type blobRecord struct {
	Size   int64        `cbor:"size"`
	Chunks []types.Hash `cbor:"chunks"`
}

// WriteBlob stores data in the content's area and returns its blob-domain
// hash. Idempotent: writing identical bytes twice returns the same
// reference without a duplicate write.
func (s *Store) WriteBlob(contentID int64, data []byte) (types.Hash, error) {
	ref := types.HashBlob(data)

	exists, err := s.kv.Has(blobKey(contentID, ref))
	if err != nil {
		return types.Hash{}, err
	}
	if exists {
		return ref, nil
	}

	chunks, err := chunkData(data)
	if err != nil {
		return types.Hash{}, fmt.Errorf("chunk blob %s: %v: %w", ref.Short(), err, types.ErrStorage)
	}

	record := blobRecord{Size: int64(len(data))}
	for _, chunk := range chunks {
		chunkHash := types.HashChunk(chunk)
		record.Chunks = append(record.Chunks, chunkHash)

		key := chunkKey(contentID, chunkHash)
		has, err := s.kv.Has(key)
		if err != nil {
			return types.Hash{}, err
		}
		if has {
			continue
		}
		compressed, err := compressWithLzma(chunk)
		if err != nil {
			return types.Hash{}, fmt.Errorf("compress chunk %s: %v: %w", chunkHash.Short(), err, types.ErrStorage)
		}
		if err := s.kv.Write(key, compressed); err != nil {
			return types.Hash{}, err
		}
	}

	encoded, err := codec.Marshal(record)
	if err != nil {
		return types.Hash{}, fmt.Errorf("encode blob record %s: %v: %w", ref.Short(), err, types.ErrStorage)
	}
	if err := s.kv.Write(blobKey(contentID, ref), encoded); err != nil {
		return types.Hash{}, err
	}

	s.log.WithFields(logrus.Fields{
		"content": contentID,
		"blob":    ref.Short(),
		"chunks":  len(record.Chunks),
		"size":    record.Size,
	}).Debug("blob written")

	return ref, nil
}

// ReadBlob reassembles a blob from its chunks.
func (s *Store) ReadBlob(contentID int64, ref types.Hash) ([]byte, error) {
	raw, err := s.kv.Read(blobKey(contentID, ref))
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", ref.Short(), err)
	}

	var record blobRecord
	if err := codec.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode blob record %s: %v: %w", ref.Short(), err, types.ErrStorage)
	}

	data := make([]byte, 0, record.Size)
	for _, chunkHash := range record.Chunks {
		compressed, err := s.kv.Read(chunkKey(contentID, chunkHash))
		if err != nil {
			return nil, fmt.Errorf("chunk %s of blob %s: %w", chunkHash.Short(), ref.Short(), err)
		}
		chunk, err := decompressWithLzma(compressed)
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %s: %v: %w", chunkHash.Short(), err, types.ErrStorage)
		}
		data = append(data, chunk...)
	}
	return data, nil
}

// HasBlob reports whether the blob exists in the content's area.
func (s *Store) HasBlob(contentID int64, ref types.Hash) (bool, error) {
	return s.kv.Has(blobKey(contentID, ref))
}

// chunkData splits data into content-defined chunks. Empty input yields no
// chunks; the blob record alone carries the zero size.
func chunkData(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bz := chunker.NewBuzhash(bytes.NewReader(data))
	var chunks [][]byte
	for {
		chunk, err := bz.NextBytes()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWithLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
