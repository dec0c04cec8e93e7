package storage

import (
	"context"

	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
)

// Storage represents the internal-facing server part of TinySync, it reads and writes data to disk (or
// semi-permanent memory). Write applies a batch atomically: after it returns nil every modification in the
// batch is visible to new readers, and if it fails none of them are.
type Storage interface {
	Start() error
	Stop() error
	Write(ctx context.Context, batch []Modify) error
	Reader(ctx context.Context) (StorageReader, error)
}

// StorageReader reads from a consistent snapshot of the storage taken when the reader was created.
type StorageReader interface {
	// When the key doesn't exist, return nil for the value
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	Close()
}
