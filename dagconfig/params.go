// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dagconfig

import (
	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

const (
	// defaultCheckpointDepth is the number of pivot blocks that must exist
	// above a checkpoint candidate before it may become the pruning
	// frontier.
	defaultCheckpointDepth = 100

	// defaultCheckpointRiskThreshold is the maximum confirmation risk a
	// pivot block may carry and still be accepted as a checkpoint.
	defaultCheckpointRiskThreshold = 1e-4

	// defaultConfirmationRiskThreshold is the risk below which callers
	// conventionally treat a pivot block as confirmed.
	defaultConfirmationRiskThreshold = 1e-6

	// defaultPruningWindow bounds the number of blocks the anticone
	// tracker keeps bit-vector state for between checkpoints.
	defaultPruningWindow = 100000
)

// Params defines a Tree-Graph network by its parameters. The consensus core
// receives Params once at construction and never re-reads configuration.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// GenesisBlock defines the first block of the DAG.
	GenesisBlock *wire.BlockHeader

	// GenesisHash is the starting block hash.
	GenesisHash *daghash.Hash

	// CheckpointDepth is the minimum number of pivot-chain blocks that
	// must lie above a block before it is deep enough to checkpoint.
	CheckpointDepth uint64

	// CheckpointRiskThreshold is the maximum confirmation risk a
	// checkpoint candidate may carry.
	CheckpointRiskThreshold float64

	// ConfirmationRiskThreshold is the default risk bound used when
	// reporting confirmed pivot blocks to collaborators.
	ConfirmationRiskThreshold float64

	// PruningWindow bounds the retained history between checkpoints. The
	// anticone tracker's bit-vector index space is capped to this many
	// blocks.
	PruningWindow uint64
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:                      "ghast-mainnet",
	GenesisBlock:              &genesisBlock,
	GenesisHash:               &genesisHash,
	CheckpointDepth:           defaultCheckpointDepth,
	CheckpointRiskThreshold:   defaultCheckpointRiskThreshold,
	ConfirmationRiskThreshold: defaultConfirmationRiskThreshold,
	PruningWindow:             defaultPruningWindow,
}

// SimnetParams defines the network parameters for the simulation test
// network. The shallow checkpoint depth and generous risk thresholds let
// tests exercise pruning without building thousands of blocks.
var SimnetParams = Params{
	Name:                      "ghast-simnet",
	GenesisBlock:              &simnetGenesisBlock,
	GenesisHash:               &simnetGenesisHash,
	CheckpointDepth:           4,
	CheckpointRiskThreshold:   0.5,
	ConfirmationRiskThreshold: 0.25,
	PruningWindow:             1000,
}
