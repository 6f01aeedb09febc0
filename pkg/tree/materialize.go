package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// workingManifest is the manifest.json written at the root of a
// materialized working copy. It mirrors the tree structure with relative
// file paths instead of blob hashes, so the directory is self-describing.
type workingManifest struct {
	Kind   types.ContentKind `json:"kind"`
	Commit string            `json:"commit"`
	Root   workingNode       `json:"root"`
}

type workingNode struct {
	Type         string        `json:"type"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	Introduction *string       `json:"introduction,omitempty"`
	Conclusion   *string       `json:"conclusion,omitempty"`
	Text         *string       `json:"text,omitempty"`
	Children     []workingNode `json:"children,omitempty"`
}

// Materialize writes the tree as a working directory: one folder per
// container, one markdown file per text blob, named by slug path, plus a
// manifest.json describing structure and titles. The result is a
// disposable cache regenerable from the commit; it is never read back as
// a source of truth.
func (vc *VersionedContent) Materialize(store *objectstore.Store, contentID int64, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create working copy %s: %v: %w", dir, err, types.ErrStorage)
	}

	root, err := vc.materializeNode(store, contentID, vc.root, dir, nil)
	if err != nil {
		return err
	}

	manifest := workingManifest{
		Kind:   vc.kind,
		Commit: vc.commit.String(),
		Root:   *root,
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode working manifest: %v: %w", err, types.ErrStorage)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), encoded, 0o644); err != nil {
		return fmt.Errorf("write working manifest: %v: %w", err, types.ErrStorage)
	}
	return nil
}

func (vc *VersionedContent) materializeNode(store *objectstore.Store, contentID int64, n Node, baseDir string, relPath []string) (*workingNode, error) {
	switch node := n.(type) {
	case *Container:
		nodeDir := filepath.Join(baseDir, filepath.Join(relPath...))
		if err := os.MkdirAll(nodeDir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %v: %w", nodeDir, err, types.ErrStorage)
		}

		out := &workingNode{Type: nodeTypeContainer, Title: node.title, Slug: node.slg}

		intro, err := writeTextFile(store, contentID, node.introduction, nodeDir, relPath, "introduction.md")
		if err != nil {
			return nil, err
		}
		out.Introduction = intro

		concl, err := writeTextFile(store, contentID, node.conclusion, nodeDir, relPath, "conclusion.md")
		if err != nil {
			return nil, err
		}
		out.Conclusion = concl

		for _, child := range node.children {
			childPath := append(append([]string{}, relPath...), child.Slug())
			childOut, err := vc.materializeNode(store, contentID, child, baseDir, childPath)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, *childOut)
		}
		return out, nil

	case *Extract:
		out := &workingNode{Type: nodeTypeExtract, Title: node.title, Slug: node.slg}
		parentDir := filepath.Join(baseDir, filepath.Join(relPath[:len(relPath)-1]...))
		text, err := writeTextFile(store, contentID, node.text, parentDir, relPath[:len(relPath)-1], node.slg+".md")
		if err != nil {
			return nil, err
		}
		out.Text = text
		return out, nil
	}
	return nil, fmt.Errorf("tree: unknown node type")
}

// writeTextFile resolves a blob reference to a file on disk and returns
// the file's path relative to the working copy root. Absent references
// produce no file and a nil path.
func writeTextFile(store *objectstore.Store, contentID int64, ref *types.Hash, dir string, relPath []string, name string) (*string, error) {
	if ref == nil {
		return nil, nil
	}
	data, err := store.ReadBlob(contentID, *ref)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %v: %w", name, err, types.ErrStorage)
	}
	rel := filepath.Join(append(append([]string{}, relPath...), name)...)
	return &rel, nil
}
