package types

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. All object references (blob, chunk,
// commit) and structural tree hashes are this size. The zero value means
// "no reference".
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain separation
// ensures the same bytes hash differently in different contexts, so a blob
// can never be addressed as a commit or vice versa. The byte values are the
// ASCII encoding of the domain name, zero-padded to 32 bytes, which keeps
// them inspectable in hex dumps.
type domainKey [32]byte

var (
	blobDomainKey   = makeDomainKey("inkwell.blob")
	chunkDomainKey  = makeDomainKey("inkwell.chunk")
	commitDomainKey = makeDomainKey("inkwell.commit")
	treeDomainKey   = makeDomainKey("inkwell.tree")
)

func makeDomainKey(name string) domainKey {
	var k domainKey
	if len(name) > len(k) {
		panic("types: domain key name too long: " + name)
	}
	copy(k[:], name)
	return k
}

func keyedSum(key domainKey, data []byte) Hash {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("types: BLAKE3 keyed hasher initialization failed: " + err.Error())
	}
	_, _ = h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashBlob computes the blob-domain hash of a full, uncompressed blob
// payload. This is the blob's content address.
func HashBlob(data []byte) Hash {
	return keyedSum(blobDomainKey, data)
}

// HashChunk computes the chunk-domain hash of one uncompressed chunk.
// Chunks are hashed before compression so deduplication survives a change
// of compression settings.
func HashChunk(data []byte) Hash {
	return keyedSum(chunkDomainKey, data)
}

// HashCommit computes the commit-domain hash of an encoded commit.
func HashCommit(data []byte) Hash {
	return keyedSum(commitDomainKey, data)
}

// HashTree computes the tree-domain hash of a canonically serialized tree
// structure. It is independent of commit history.
func HashTree(data []byte) Hash {
	return keyedSum(treeDomainKey, data)
}

// IsZero reports whether h is the zero hash, i.e. no reference.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 10 hex characters, for log output.
func (h Hash) Short() string {
	return h.String()[:10]
}

// HashFromHex parses a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return Hash{}, fmt.Errorf("parse hash %q: got %d bytes, want %d", s, len(b), len(h))
	}
	copy(h[:], b)
	return h, nil
}
