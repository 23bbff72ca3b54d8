package main

import (
	"path/filepath"
	"sync/atomic"

	"github.com/ghastnet/ghastd/blockdag"
	"github.com/ghastnet/ghastd/config"
	"github.com/ghastnet/ghastd/dbaccess"
)

// blocksDirname is the subdirectory of the data directory holding the block
// store.
const blocksDirname = "blocks"

// ghastd is a wrapper for the ghastd services.
type ghastd struct {
	cfg             *config.Config
	databaseContext *dbaccess.DatabaseContext
	dag             *blockdag.BlockDAG

	started, shutdown int32
}

// newGhastd opens the block store and restores the DAG from it.
func newGhastd(cfg *config.Config) (*ghastd, error) {
	var databaseContext *dbaccess.DatabaseContext
	if !cfg.NoPersist {
		var err error
		databaseContext, err = dbaccess.New(filepath.Join(cfg.DataDir, blocksDirname))
		if err != nil {
			return nil, err
		}
	}

	dag, err := blockdag.New(&blockdag.Config{
		DAGParams:       cfg.NetParams(),
		DatabaseContext: databaseContext,
	})
	if err != nil {
		if databaseContext != nil {
			databaseContext.Close()
		}
		return nil, err
	}

	return &ghastd{
		cfg:             cfg,
		databaseContext: databaseContext,
		dag:             dag,
	}, nil
}

// start launches the ghastd services.
func (g *ghastd) start() {
	// Already started?
	if atomic.AddInt32(&g.started, 1) != 1 {
		return
	}

	log.Infof("Starting ghastd on %s", g.cfg.NetParams().Name)

	g.dag.Subscribe(func(notification *blockdag.Notification) {
		switch data := notification.Data.(type) {
		case *blockdag.ChainChangedNotificationData:
			log.Infof("Pivot chain changed: %d removed, %d added",
				len(data.RemovedChainBlockHashes), len(data.AddedChainBlockHashes))
		case *blockdag.EpochSealedNotificationData:
			log.Debugf("Sealed epoch %d anchored at %s with %d blocks",
				data.Epoch.Height, data.Epoch.PivotHash, len(data.Epoch.BlockHashes))
		}
	})
}

// stop gracefully shuts down the ghastd services.
func (g *ghastd) stop() error {
	// Make sure this only happens once.
	if atomic.AddInt32(&g.shutdown, 1) != 1 {
		log.Infof("ghastd is already in the process of shutting down")
		return nil
	}

	log.Warnf("ghastd shutting down")

	if g.databaseContext != nil {
		return g.databaseContext.Close()
	}
	return nil
}
