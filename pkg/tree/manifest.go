package tree

import (
	"fmt"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/codec"
	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/slug"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

const (
	nodeTypeContainer = "container"
	nodeTypeExtract   = "extract"
)

// Manifest is the serialized form of one tree, embedded in a commit.
type Manifest struct {
	Kind types.ContentKind `cbor:"kind"`
	Root ManifestNode      `cbor:"root"`
}

// ManifestNode serializes one tree node. Blob references are pointers:
// a nil pointer round-trips as "text absent", a reference to the empty
// blob as "explicitly empty". Taken persists the container's slug pool so
// slugs of deleted nodes stay reserved across commit/load cycles.
type ManifestNode struct {
	Type         string         `cbor:"type"`
	Title        string         `cbor:"title"`
	Slug         string         `cbor:"slug"`
	Introduction *types.Hash    `cbor:"introduction,omitempty"`
	Conclusion   *types.Hash    `cbor:"conclusion,omitempty"`
	Text         *types.Hash    `cbor:"text,omitempty"`
	Taken        []string       `cbor:"taken,omitempty"`
	Children     []ManifestNode `cbor:"children,omitempty"`
}

// Manifest serializes the tree.
func (vc *VersionedContent) Manifest() Manifest {
	return Manifest{
		Kind: vc.kind,
		Root: manifestNode(vc.root),
	}
}

func manifestNode(n Node) ManifestNode {
	switch node := n.(type) {
	case *Container:
		out := ManifestNode{
			Type:         nodeTypeContainer,
			Title:        node.title,
			Slug:         node.slg,
			Introduction: node.introduction,
			Conclusion:   node.conclusion,
			Taken:        node.pool.Taken(),
		}
		for _, child := range node.children {
			out.Children = append(out.Children, manifestNode(child))
		}
		return out
	case *Extract:
		return ManifestNode{
			Type:  nodeTypeExtract,
			Title: node.title,
			Slug:  node.slg,
			Text:  node.text,
		}
	}
	panic("tree: unknown node type")
}

// Commit writes the tree as a new commit in the content's area, linked to
// the commit the tree was loaded from, and advances the tree's own commit
// pointer. The store write is the only side effect; on error the tree and
// its previous commit are untouched.
func (vc *VersionedContent) Commit(store *objectstore.Store, contentID int64, message string) (types.Hash, error) {
	m := vc.Manifest()
	encoded, err := codec.Marshal(m)
	if err != nil {
		return types.Hash{}, fmt.Errorf("encode manifest: %v: %w", err, types.ErrStorage)
	}

	ref, err := store.WriteCommit(contentID, &objectstore.Commit{
		Parent:    vc.commit,
		CreatedAt: time.Now().Unix(),
		Message:   message,
		Manifest:  encoded,
	})
	if err != nil {
		return types.Hash{}, err
	}
	vc.commit = ref
	return ref, nil
}

// Load reads a commit from the store and reconstructs the node graph and
// the slug pools. Pools come from the manifest's Taken lists; a manifest
// without pool data (built elsewhere) falls back to the slugs actually
// present plus the reserved words.
func Load(store *objectstore.Store, contentID int64, commit types.Hash, opts Options) (*VersionedContent, error) {
	opts = opts.withDefaults()

	c, err := store.ReadCommit(contentID, commit)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := codec.Unmarshal(c.Manifest, &m); err != nil {
		return nil, fmt.Errorf("decode manifest of commit %s: %v: %w", commit.Short(), err, types.ErrStorage)
	}
	return FromManifest(&m, commit, opts)
}

// FromManifest builds a tree from a decoded manifest.
func FromManifest(m *Manifest, commit types.Hash, opts Options) (*VersionedContent, error) {
	opts = opts.withDefaults()
	if m.Root.Type != nodeTypeContainer {
		return nil, fmt.Errorf("manifest root is %q, not a container: %w", m.Root.Type, types.ErrStorage)
	}
	root, err := buildNode(&m.Root, nil)
	if err != nil {
		return nil, err
	}
	return &VersionedContent{
		root:     root.(*Container),
		kind:     m.Kind,
		commit:   commit,
		maxDepth: opts.MaxContainerDepth,
	}, nil
}

func buildNode(mn *ManifestNode, parent *Container) (Node, error) {
	switch mn.Type {
	case nodeTypeContainer:
		c := &Container{
			title:        mn.Title,
			slg:          mn.Slug,
			parent:       parent,
			introduction: mn.Introduction,
			conclusion:   mn.Conclusion,
			pool:         slug.NewPoolFrom(mn.Taken),
		}
		for i := range mn.Children {
			child, err := buildNode(&mn.Children[i], c)
			if err != nil {
				return nil, err
			}
			// Present slugs are always in the pool, with or without
			// serialized pool data.
			c.pool.Reserve(child.Slug())
			c.children = append(c.children, child)
		}
		return c, nil
	case nodeTypeExtract:
		return &Extract{
			title:  mn.Title,
			slg:    mn.Slug,
			parent: parent,
			text:   mn.Text,
		}, nil
	default:
		return nil, fmt.Errorf("unknown manifest node type %q: %w", mn.Type, types.ErrStorage)
	}
}
