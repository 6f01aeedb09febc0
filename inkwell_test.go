package inkwell_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inkwell "github.com/inkwell-cms/inkwell"
	"github.com/inkwell-cms/inkwell/pkg/repo"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

func newEngine(t *testing.T) *inkwell.Engine {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	e, err := inkwell.New(inkwell.Config{
		DataDir:   filepath.Join(t.TempDir(), "data"),
		WorkDir:   t.TempDir(),
		PublicDir: t.TempDir(),
		LockWait:  time.Second,
		Logger:    log,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func str(s string) *string { return &s }

func TestEngineEndToEnd(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	var changes atomic.Int64
	e.Subscribe(func(ev types.Event) {
		if _, ok := ev.(types.ContentChanged); ok {
			changes.Add(1)
		}
	})

	c, err := e.CreateContent(ctx, "Learn Go", types.KindTutorial, []string{"ada"}, "CC BY-SA")
	require.NoError(t, err)

	_, err = e.Repo.AddContainer(ctx, c.ID, types.Hash{}, nil, "Part One", str("welcome"), nil)
	require.NoError(t, err)
	_, err = e.Repo.AddContainer(ctx, c.ID, types.Hash{}, []string{"part-one"}, "Chapter One", nil, nil)
	require.NoError(t, err)
	_, err = e.Repo.AddExtract(ctx, c.ID, types.Hash{}, []string{"part-one", "chapter-one"}, "Hello World", str("package main"))
	require.NoError(t, err)

	changed, err := e.Repo.ChangedSincePublication(c.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	record, err := e.Publications.Publish(ctx, c.ID, types.Hash{}, true)
	require.NoError(t, err)
	assert.Equal(t, "learn-go", record.PublicSlug)

	text, err := os.ReadFile(filepath.Join(record.Directory, "part-one", "chapter-one", "hello-world.md"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(text))

	changed, err = e.Repo.ChangedSincePublication(c.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// Deliveries are asynchronous; one creation plus three edits.
	assert.Eventually(t, func() bool { return changes.Load() >= 4 }, time.Second, 10*time.Millisecond)
}

func TestEngineReopensExistingData(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	workDir := t.TempDir()
	publicDir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	config := inkwell.Config{
		DataDir:   dataDir,
		WorkDir:   workDir,
		PublicDir: publicDir,
		LockWait:  time.Second,
		Logger:    log,
	}
	ctx := context.Background()

	e, err := inkwell.New(config)
	require.NoError(t, err)
	c, err := e.CreateContent(ctx, "Learn Go", types.KindTutorial, []string{"ada"}, "")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = inkwell.New(config)
	require.NoError(t, err)
	defer e.Close()

	got, err := e.Repo.Content(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learn Go", got.Title)
	assert.Equal(t, c.DraftHash, got.DraftHash)
}

func TestEngineDraftEditsAfterPublish(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	c, err := e.CreateContent(ctx, "Notes", types.KindArticle, []string{"ada"}, "")
	require.NoError(t, err)
	_, err = e.Repo.AddExtract(ctx, c.ID, types.Hash{}, nil, "One", str("v1"))
	require.NoError(t, err)

	record, err := e.Publications.Publish(ctx, c.ID, types.Hash{}, true)
	require.NoError(t, err)

	_, err = e.Repo.UpdateNode(ctx, c.ID, types.Hash{}, []string{"one"}, repo.NodeUpdate{
		Text: repo.SetText("v2"),
	})
	require.NoError(t, err)

	// The published snapshot is untouched by draft edits.
	text, err := os.ReadFile(filepath.Join(record.Directory, "one.md"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(text))
}
