package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// publicNode is the pruned, publishable shape of one tree node, carrying
// blob references until the snapshot writer resolves them to files.
type publicNode struct {
	Type     string
	Title    string
	Slug     string
	Intro    *types.Hash
	Concl    *types.Hash
	Text     *types.Hash
	Children []*publicNode
}

// pruneUnready copies the publishable part of the tree: any container
// whose slug path is marked not ready is dropped together with its whole
// subtree. Extracts are never flagged individually.
func pruneUnready(c *tree.Container, prefix []string, unready map[string]bool) *publicNode {
	out := &publicNode{
		Type:  "container",
		Title: c.Title(),
		Slug:  c.Slug(),
		Intro: c.Introduction(),
		Concl: c.Conclusion(),
	}
	for _, child := range c.Children() {
		switch node := child.(type) {
		case *tree.Container:
			childPath := append(append([]string{}, prefix...), node.Slug())
			if unready[strings.Join(childPath, "/")] {
				continue
			}
			out.Children = append(out.Children, pruneUnready(node, childPath, unready))
		case *tree.Extract:
			out.Children = append(out.Children, &publicNode{
				Type:  "extract",
				Title: node.Title(),
				Slug:  node.Slug(),
				Text:  node.Text(),
			})
		}
	}
	return out
}

// snapshotNode is the JSON shape written into the public manifest, with
// relative file paths in place of blob references.
type snapshotNode struct {
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Slug         string         `json:"slug"`
	Introduction *string        `json:"introduction,omitempty"`
	Conclusion   *string        `json:"conclusion,omitempty"`
	Text         *string        `json:"text,omitempty"`
	Children     []snapshotNode `json:"children,omitempty"`
}

type snapshotManifest struct {
	Kind   types.ContentKind `json:"kind"`
	Commit string            `json:"commit"`
	Root   snapshotNode      `json:"root"`
}

// writeSnapshot materializes the pruned tree under a fresh directory named
// by the publication record id. The directory is written once and never
// mutated afterwards, so readers need no locking.
func (m *Manager) writeSnapshot(contentID int64, recordID string, vc *tree.VersionedContent, pruned *publicNode) (string, error) {
	dir := filepath.Join(m.publicDir, recordID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create public snapshot %s: %v: %w", dir, err, types.ErrStorage)
	}

	root, err := m.writeSnapshotNode(contentID, pruned, dir, nil)
	if err != nil {
		return "", err
	}

	manifest := snapshotManifest{
		Kind:   vc.Kind(),
		Commit: vc.CommitHash().String(),
		Root:   *root,
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode public manifest: %v: %w", err, types.ErrStorage)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), encoded, 0o644); err != nil {
		return "", fmt.Errorf("write public manifest: %v: %w", err, types.ErrStorage)
	}
	return dir, nil
}

func (m *Manager) writeSnapshotNode(contentID int64, n *publicNode, baseDir string, relPath []string) (*snapshotNode, error) {
	out := &snapshotNode{Type: n.Type, Title: n.Title, Slug: n.Slug}

	if n.Type == "extract" {
		parentRel := relPath[:len(relPath)-1]
		text, err := m.writeSnapshotText(contentID, n.Text, baseDir, parentRel, n.Slug+".md")
		if err != nil {
			return nil, err
		}
		out.Text = text
		return out, nil
	}

	nodeDir := filepath.Join(baseDir, filepath.Join(relPath...))
	if err := os.MkdirAll(nodeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %v: %w", nodeDir, err, types.ErrStorage)
	}

	intro, err := m.writeSnapshotText(contentID, n.Intro, baseDir, relPath, "introduction.md")
	if err != nil {
		return nil, err
	}
	out.Introduction = intro

	concl, err := m.writeSnapshotText(contentID, n.Concl, baseDir, relPath, "conclusion.md")
	if err != nil {
		return nil, err
	}
	out.Conclusion = concl

	for _, child := range n.Children {
		childPath := append(append([]string{}, relPath...), child.Slug)
		childOut, err := m.writeSnapshotNode(contentID, child, baseDir, childPath)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, *childOut)
	}
	return out, nil
}

func (m *Manager) writeSnapshotText(contentID int64, ref *types.Hash, baseDir string, relPath []string, name string) (*string, error) {
	if ref == nil {
		return nil, nil
	}
	data, err := m.store.ReadBlob(contentID, *ref)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(baseDir, filepath.Join(relPath...))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %v: %w", name, err, types.ErrStorage)
	}
	rel := filepath.Join(append(append([]string{}, relPath...), name)...)
	return &rel, nil
}
