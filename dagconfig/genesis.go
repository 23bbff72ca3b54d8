// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dagconfig

import (
	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

// genesisBlock defines the genesis block header of the Tree-Graph for the
// main network. A genesis block carries the zero parent hash, no referees,
// and a unit weight that anchors all subtree aggregates.
var genesisBlock = wire.BlockHeader{
	Version:       1,
	ParentHash:    daghash.ZeroHash,
	RefereeHashes: nil,
	Weight:        1,
	Nonce:         0x646167676873616d,
	Timestamp:     0x17c5f62c8b0, // 2021-11-01 00:00:00 +0000 UTC
}

// genesisHash is the hash of the main network genesis block. It is derived
// from the header rather than hardcoded so that the definition above stays
// the single source of truth.
var genesisHash = genesisBlock.BlockHash()

// simnetGenesisBlock defines the genesis block header of the Tree-Graph for
// the simulation test network.
var simnetGenesisBlock = wire.BlockHeader{
	Version:       1,
	ParentHash:    daghash.ZeroHash,
	RefereeHashes: nil,
	Weight:        1,
	Nonce:         0x73696d6e6574,
	Timestamp:     0x17c5f62c8b0,
}

// simnetGenesisHash is the hash of the simnet genesis block.
var simnetGenesisHash = simnetGenesisBlock.BlockHash()
