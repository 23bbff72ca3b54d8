package dbaccess

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// blockCacheSize is the number of recently touched block headers kept
// decoded-side in memory, fronting the leveldb store.
const blockCacheSize = 2048

// DatabaseContext represents a handle to the block store. It is the gateway
// every database access in the node goes through.
type DatabaseContext struct {
	db         *leveldb.DB
	blockCache *lru.Cache
}

// New opens (creating if needed) the block store at the given path and
// returns a DatabaseContext for it.
func New(path string) (*DatabaseContext, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open database at %s", path)
	}
	blockCache, err := lru.New(blockCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DatabaseContext{db: db, blockCache: blockCache}, nil
}

// Close closes the underlying database.
func (ctx *DatabaseContext) Close() error {
	return errors.WithStack(ctx.db.Close())
}

// ErrNotFound denotes that the requested entry does not exist in the store.
var ErrNotFound = errors.New("dbaccess: entry not found")

// IsNotFoundError checks whether an error is an ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func convertNotFoundError(err error) error {
	if errors.Is(err, ldberrors.ErrNotFound) {
		return errors.WithStack(ErrNotFound)
	}
	return errors.WithStack(err)
}
