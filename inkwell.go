// Package inkwell is a versioned hierarchical content engine: long-form
// documents stored as trees of containers and extracts, every edit
// persisted as a commit in a content-addressed store, with a draft working
// tree and separately snapshotted public versions.
//
// The Engine is the composition root. Structural edits go through Repo,
// publication through Publications; external collaborators observe the
// engine through Subscribe.
package inkwell

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/inkwell-cms/inkwell/internal/keyValStore"
	"github.com/inkwell-cms/inkwell/internal/locker"
	"github.com/inkwell-cms/inkwell/pkg/events"
	"github.com/inkwell-cms/inkwell/pkg/objectstore"
	"github.com/inkwell-cms/inkwell/pkg/publish"
	"github.com/inkwell-cms/inkwell/pkg/repo"
	"github.com/inkwell-cms/inkwell/pkg/tree"
	"github.com/inkwell-cms/inkwell/pkg/types"
)

type Engine struct {
	// Repo is the repository mutation API for draft trees.
	Repo *repo.Service
	// Publications manages public snapshots.
	Publications *publish.Manager

	config Config
	kv     *keyValStore.KeyValStore
	store  *objectstore.Store
	bus    *events.Bus
	cron   *cron.Cron
	log    *logrus.Logger
}

// New opens the engine. The data directory is created when missing; the
// GC schedule starts immediately.
func New(config Config) (*Engine, error) {
	config.applyDefaults()
	log := config.Logger

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Path:          config.DataDir,
		MinimumFreeGB: config.MinimumFreeGB,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	store := objectstore.New(kv, log)
	bus := events.NewBus(log)
	locks := locker.New(config.LockWait)
	treeOpts := tree.Options{MaxContainerDepth: config.MaxContainerDepth}

	e := &Engine{
		Repo:         repo.NewService(store, locks, bus, log, config.WorkDir, treeOpts),
		Publications: publish.NewManager(store, locks, bus, log, config.PublicDir, treeOpts),
		config:       config,
		kv:           kv,
		store:        store,
		bus:          bus,
		cron:         cron.New(),
		log:          log,
	}

	if _, err := e.cron.AddFunc(config.GCSchedule, e.runGC); err != nil {
		_ = kv.Close()
		return nil, err
	}
	e.cron.Start()

	return e, nil
}

func (e *Engine) runGC() {
	if err := e.kv.Clean(); err != nil {
		e.log.WithError(err).Warn("scheduled store maintenance")
	}
}

// Subscribe registers a handler for all engine events.
func (e *Engine) Subscribe(fn func(types.Event)) {
	e.bus.Subscribe(fn)
}

// Store exposes the object store for read-only integrations.
func (e *Engine) Store() *objectstore.Store {
	return e.store
}

// CreateContent starts a new document.
func (e *Engine) CreateContent(ctx context.Context, title string, kind types.ContentKind, authors []string, licence string) (*types.PublishableContent, error) {
	return e.Repo.CreateContent(ctx, title, kind, authors, licence)
}

// Close stops scheduled maintenance, waits for in-flight event deliveries
// and closes the store.
func (e *Engine) Close() error {
	ctx := e.cron.Stop()
	<-ctx.Done()
	e.bus.Drain()
	return e.kv.Close()
}
