package repo

import (
	"context"
	"fmt"

	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

// OptionalText is a tri-state text change: leave unchanged, remove, or
// set to a value (possibly the empty string). The distinction between
// "removed" and "set to empty" is preserved through commits.
type OptionalText struct {
	set   bool
	value *string
}

// KeepText leaves the text as it is.
func KeepText() OptionalText {
	return OptionalText{}
}

// RemoveText makes the text absent.
func RemoveText() OptionalText {
	return OptionalText{set: true}
}

// SetText replaces the text with s.
func SetText(s string) OptionalText {
	return OptionalText{set: true, value: &s}
}

// NodeUpdate describes an update to one node. Title nil keeps the current
// title; Introduction/Conclusion apply to containers, Text to extracts.
type NodeUpdate struct {
	Title        *string
	Introduction OptionalText
	Conclusion   OptionalText
	Text         OptionalText
}

// resolve turns the change into a blob reference against the current one.
func (o OptionalText) resolve(s *Service, id int64, current *types.Hash) (*types.Hash, error) {
	if !o.set {
		return current, nil
	}
	return s.writeOptional(id, o.value)
}

// UpdateNode retitles a node and/or replaces its texts. The slug is
// re-derived only when the title changed; everything else about the node's
// address is stable.
func (s *Service) UpdateNode(ctx context.Context, id int64, base types.Hash, path []string, upd NodeUpdate) (types.Hash, error) {
	return s.mutate(ctx, id, base, fmt.Sprintf("update %q", pathString(path)), func(vc *tree.VersionedContent) error {
		n, err := vc.Find(path)
		if err != nil {
			return err
		}

		switch node := n.(type) {
		case *tree.Container:
			if upd.Text.set {
				return fmt.Errorf("containers carry introduction/conclusion, not text: %w", types.ErrNotAContainer)
			}
			intro, err := upd.Introduction.resolve(s, id, node.Introduction())
			if err != nil {
				return err
			}
			concl, err := upd.Conclusion.resolve(s, id, node.Conclusion())
			if err != nil {
				return err
			}
			node.SetIntroduction(intro)
			node.SetConclusion(concl)
		case *tree.Extract:
			if upd.Introduction.set || upd.Conclusion.set {
				return fmt.Errorf("extracts carry text, not introduction/conclusion: %w", types.ErrNotAContainer)
			}
			text, err := upd.Text.resolve(s, id, node.Text())
			if err != nil {
				return err
			}
			node.SetText(text)
		}

		if upd.Title != nil {
			vc.Rename(n, *upd.Title)
		}
		return nil
	}, nil)
}

// UpdateMetadata changes top-level metadata: the document title (which
// retitles the root container) and/or the licence. Both land in the same
// save under the draft lock, so a concurrent mutation can never be lost.
func (s *Service) UpdateMetadata(ctx context.Context, id int64, base types.Hash, title, licence *string) (types.Hash, error) {
	return s.mutate(ctx, id, base, "update metadata", func(vc *tree.VersionedContent) error {
		if title != nil {
			vc.Rename(vc.Root(), *title)
		}
		return nil
	}, func(c *types.PublishableContent) {
		if licence != nil {
			c.Licence = *licence
		}
	})
}
