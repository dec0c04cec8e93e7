package engine_util

import (
	"os"

	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

const (
	// CfEntry maps versioned entry keys to entry envelopes.
	CfEntry string = "entry"
	// CfChange indexes entry writes by the space version that made them.
	CfChange string = "change"
	// CfMeta holds per-space cookies, per-client last mutation ids and the schema version.
	CfMeta string = "meta"
)

var CFs [3]string = [3]string{CfEntry, CfChange, CfMeta}

// CreateDB creates a new Badger DB on disk at path.
func CreateDB(path string, syncWrites bool) (*badger.DB, error) {
	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.SyncWrites = syncWrites
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, errors.WithStack(err)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Annotatef(err, "open badger at %s", path)
	}
	return db, nil
}
