package repo_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/internal/keyValStore"
	"github.com/inkwell-cms/inkwell/internal/locker"
	"github.com/inkwell-cms/inkwell/pkg/events"
	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/repo"
	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

func newService(t *testing.T) (*repo.Service, *objectstore.Store) {
	t.Helper()
	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	store := objectstore.New(kv, nil)
	s := repo.NewService(store, locker.New(time.Second), events.NewBus(nil), nil, t.TempDir(), tree.Options{})
	return s, store
}

func str(s string) *string { return &s }

func TestCreateContent(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "CC BY-SA")
	require.NoError(t, err)
	assert.Equal(t, "my-tutorial", c.Slug)
	assert.False(t, c.DraftHash.IsZero())
	assert.False(t, c.IsPublished())

	got, err := s.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.DraftHash, got.DraftHash)
}

func TestCreateContentValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.CreateContent(ctx, "T", types.ContentKind("poem"), []string{"ada"}, "")
	assert.Error(t, err)

	_, err = s.CreateContent(ctx, "T", types.KindTutorial, nil, "")
	assert.Error(t, err)
}

func TestSlugSuffixesAcrossCommits(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	_, err = s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
	require.NoError(t, err)
	_, err = s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
	require.NoError(t, err)

	_, err = s.DeleteNode(ctx, c.ID, types.Hash{}, []string{"part-one"})
	require.NoError(t, err)

	// The freed slug is never reused; the suffix keeps counting.
	sha, err := s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
	require.NoError(t, err)

	vc, err := tree.Load(store, c.ID, sha, tree.Options{})
	require.NoError(t, err)
	children := vc.Root().Children()
	require.Len(t, children, 2)
	assert.Equal(t, "part-one-1", children[0].Slug())
	assert.Equal(t, "part-one-2", children[1].Slug())
}

func TestFailedMutationLeavesDraftHead(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)
	head := c.DraftHash

	_, err = s.AddContainer(ctx, c.ID, types.Hash{}, []string{"missing"}, "Part One", nil, nil)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	got, err := s.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, head, got.DraftHash)
}

func TestStaleBaseIsRejected(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)
	stale := c.DraftHash

	_, err = s.AddContainer(ctx, c.ID, stale, nil, "Part One", nil, nil)
	require.NoError(t, err)

	_, err = s.AddContainer(ctx, c.ID, stale, nil, "Part Two", nil, nil)
	assert.True(t, errors.Is(err, types.ErrConcurrentModification))
}

func TestDeleteRootNode(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	_, err = s.DeleteNode(ctx, c.ID, types.Hash{}, nil)
	assert.True(t, errors.Is(err, types.ErrCannotDeleteRoot))
}

func TestUpdateNodeTexts(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Article", types.KindArticle, []string{"ada"}, "")
	require.NoError(t, err)
	_, err = s.AddExtract(ctx, c.ID, types.Hash{}, nil, "Section One", str("first draft"))
	require.NoError(t, err)

	sha, err := s.UpdateNode(ctx, c.ID, types.Hash{}, []string{"section-one"}, repo.NodeUpdate{
		Text: repo.SetText("second draft"),
	})
	require.NoError(t, err)

	vc, err := tree.Load(store, c.ID, sha, tree.Options{})
	require.NoError(t, err)
	n, err := vc.Find([]string{"section-one"})
	require.NoError(t, err)
	text, err := store.ReadBlob(c.ID, *n.(*tree.Extract).Text())
	require.NoError(t, err)
	assert.Equal(t, "second draft", string(text))

	// Removing makes the text absent, not empty.
	sha, err = s.UpdateNode(ctx, c.ID, types.Hash{}, []string{"section-one"}, repo.NodeUpdate{
		Text: repo.RemoveText(),
	})
	require.NoError(t, err)
	vc, err = tree.Load(store, c.ID, sha, tree.Options{})
	require.NoError(t, err)
	n, err = vc.Find([]string{"section-one"})
	require.NoError(t, err)
	assert.Nil(t, n.(*tree.Extract).Text())
}

func TestUpdateNodeKeepsTextByDefault(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Article", types.KindArticle, []string{"ada"}, "")
	require.NoError(t, err)
	_, err = s.AddExtract(ctx, c.ID, types.Hash{}, nil, "Section One", str("the text"))
	require.NoError(t, err)

	sha, err := s.UpdateNode(ctx, c.ID, types.Hash{}, []string{"section-one"}, repo.NodeUpdate{
		Title: str("Renamed Section"),
	})
	require.NoError(t, err)

	vc, err := tree.Load(store, c.ID, sha, tree.Options{})
	require.NoError(t, err)
	n, err := vc.Find([]string{"renamed-section"})
	require.NoError(t, err)
	text, err := store.ReadBlob(c.ID, *n.(*tree.Extract).Text())
	require.NoError(t, err)
	assert.Equal(t, "the text", string(text))
}

func TestUpdateNodeRejectsWrongFields(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	_, err = s.UpdateNode(ctx, c.ID, types.Hash{}, nil, repo.NodeUpdate{
		Text: repo.SetText("containers have no text"),
	})
	assert.True(t, errors.Is(err, types.ErrNotAContainer))
}

func TestUpdateMetadata(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "CC BY")
	require.NoError(t, err)

	_, err = s.UpdateMetadata(ctx, c.ID, types.Hash{}, str("Better Title"), str("CC BY-SA"))
	require.NoError(t, err)

	got, err := s.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Better Title", got.Title)
	assert.Equal(t, "better-title", got.Slug)
	assert.Equal(t, "CC BY-SA", got.Licence)
}

func TestUpdateMetadataDoesNotLoseConcurrentEdits(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "CC BY")
	require.NoError(t, err)

	// A licence update racing a structural edit: both run under the draft
	// lock, so neither commit nor metadata may be lost.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.UpdateMetadata(ctx, c.ID, types.Hash{}, nil, str("CC BY-SA"))
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "CC BY-SA", got.Licence)

	vc, err := tree.Load(store, c.ID, got.DraftHash, tree.Options{})
	require.NoError(t, err)
	_, err = vc.Find([]string{"part-one"})
	assert.NoError(t, err, "the structural edit must survive the metadata update")
}

func TestListContents(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	a, err := s.CreateContent(ctx, "Alpha", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)
	b, err := s.CreateContent(ctx, "Beta", types.KindArticle, []string{"grace"}, "")
	require.NoError(t, err)
	// Extra keys under the content prefix must not leak into the listing.
	_, err = s.AddExtract(ctx, b.ID, types.Hash{}, nil, "Section One", str("text"))
	require.NoError(t, err)

	all, err := s.ListContents()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, "Alpha", all[0].Title)
	assert.Equal(t, b.ID, all[1].ID)
	assert.Equal(t, "Beta", all[1].Title)
}

func TestSubmitForValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	pinned, err := s.SubmitForValidation(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.DraftHash, pinned)

	// Further edits leave the pinned validation commit behind.
	sha, err := s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
	require.NoError(t, err)
	got, err := s.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, pinned, got.ValidationHash)
	assert.Equal(t, sha, got.DraftHash)
}

func TestChangedSincePublication(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	changed, err := s.ChangedSincePublication(c.ID)
	require.NoError(t, err)
	assert.True(t, changed, "unpublished content always counts as changed")

	sha, err := s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
	require.NoError(t, err)

	got, err := s.Content(c.ID)
	require.NoError(t, err)
	got.PublicHash = sha
	got.CurrentPublicationID = "rec-1"
	require.NoError(t, store.SaveContent(got))

	changed, err = s.ChangedSincePublication(c.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part Two", nil, nil)
	require.NoError(t, err)
	changed, err = s.ChangedSincePublication(c.ID)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestChangedSincePublicationSeesRevertedEdits(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)
	published, err := s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", nil, nil)
	require.NoError(t, err)

	got, err := s.Content(c.ID)
	require.NoError(t, err)
	got.PublicHash = published
	got.CurrentPublicationID = "rec-1"
	require.NoError(t, store.SaveContent(got))

	// Add then delete: new commits, same visible structure.
	_, err = s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part Two", nil, nil)
	require.NoError(t, err)
	_, err = s.DeleteNode(ctx, c.ID, types.Hash{}, []string{"part-two"})
	require.NoError(t, err)

	changed, err := s.ChangedSincePublication(c.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMaterializeDraft(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)
	_, err = s.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", str("the intro"), nil)
	require.NoError(t, err)
	_, err = s.AddExtract(ctx, c.ID, types.Hash{}, []string{"part-one"}, "Section One", str("the text"))
	require.NoError(t, err)

	dir, err := s.MaterializeDraft(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, s.WorkingCopyDir(c.ID), dir)

	intro, err := os.ReadFile(filepath.Join(dir, "part-one", "introduction.md"))
	require.NoError(t, err)
	assert.Equal(t, "the intro", string(intro))

	text, err := os.ReadFile(filepath.Join(dir, "part-one", "section-one.md"))
	require.NoError(t, err)
	assert.Equal(t, "the text", string(text))

	_, err = os.Stat(filepath.Join(dir, "manifest.json"))
	assert.NoError(t, err)
}

func TestDeleteContent(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteContent(ctx, c.ID))
	_, err = s.Content(c.ID)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	// Historical commits stay retrievable by hash.
	_, err = store.ReadCommit(c.ID, c.DraftHash)
	assert.NoError(t, err)
}

func TestDeleteContentRefusesPublished(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	c.PublicHash = c.DraftHash
	c.CurrentPublicationID = "rec-1"
	require.NoError(t, store.SaveContent(c))

	assert.Error(t, s.DeleteContent(ctx, c.ID))
}

func TestUpdateAuthors(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c, err := s.CreateContent(ctx, "My Tutorial", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateAuthors(ctx, c.ID, []string{"ada", "grace"}))
	got, err := s.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ada", "grace"}, got.Authors)

	assert.Error(t, s.UpdateAuthors(ctx, c.ID, nil))
}
