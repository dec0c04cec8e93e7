package pebble_storage

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/pingcap/errors"
)

// PebbleStorage is a single-node `Storage` backed by pebble. Writes are applied as one pebble batch and
// readers are pebble snapshots.
type PebbleStorage struct {
	conf *config.Config
	db   *pebble.DB
	wo   *pebble.WriteOptions
}

func NewPebbleStorage(conf *config.Config) *PebbleStorage {
	wo := pebble.NoSync
	if conf.SyncWrites {
		wo = pebble.Sync
	}
	return &PebbleStorage{conf: conf, wo: wo}
}

func (s *PebbleStorage) Start() error {
	db, err := pebble.Open(s.conf.DBPath, &pebble.Options{})
	if err != nil {
		return errors.Annotatef(err, "open pebble at %s", s.conf.DBPath)
	}
	s.db = db
	return nil
}

func (s *PebbleStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

func (s *PebbleStorage) Reader(ctx context.Context) (storage.StorageReader, error) {
	if s.db == nil {
		return nil, errors.New("pebble storage is not started")
	}
	return &pebbleReader{snap: s.db.NewSnapshot()}, nil
}

func (s *PebbleStorage) Write(ctx context.Context, batch []storage.Modify) error {
	if s.db == nil {
		return errors.New("pebble storage is not started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, m := range batch {
		var err error
		switch data := m.Data.(type) {
		case storage.Put:
			err = b.Set(engine_util.KeyWithCF(data.Cf, data.Key), data.Value, nil)
		case storage.Delete:
			err = b.Delete(engine_util.KeyWithCF(data.Cf, data.Key), nil)
		}
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(b.Commit(s.wo))
}

type pebbleReader struct {
	snap *pebble.Snapshot
}

func (r *pebbleReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, closer, err := r.snap.Get(engine_util.KeyWithCF(cf, key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer closer.Close()
	return append([]byte{}, val...), nil
}

func (r *pebbleReader) IterCF(cf string) engine_util.DBIterator {
	prefix := []byte(cf + "_")
	iter := r.snap.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: engine_util.PrefixEnd(prefix),
	})
	return &pebbleIterator{iter: iter, prefix: prefix}
}

func (r *pebbleReader) Close() {
	r.snap.Close()
}

// pebbleIterator strips the column family prefix from pebble keys. The iterator bounds keep it inside one
// column family.
type pebbleIterator struct {
	iter   *pebble.Iterator
	prefix []byte
}

func (it *pebbleIterator) Item() engine_util.DBItem {
	return &pebbleItem{
		key:   it.iter.Key()[len(it.prefix):],
		value: it.iter.Value(),
	}
}

func (it *pebbleIterator) Valid() bool { return it.iter.Valid() }

func (it *pebbleIterator) Next() { it.iter.Next() }

func (it *pebbleIterator) Seek(key []byte) {
	it.iter.SeekGE(append(append([]byte{}, it.prefix...), key...))
}

func (it *pebbleIterator) Close() { it.iter.Close() }

// pebbleItem is only valid until the iterator moves; callers that keep keys or values copy them.
type pebbleItem struct {
	key   []byte
	value []byte
}

func (i *pebbleItem) Key() []byte { return i.key }

func (i *pebbleItem) KeyCopy(dst []byte) []byte { return append(dst[:0], i.key...) }

func (i *pebbleItem) Value() ([]byte, error) { return i.value, nil }

func (i *pebbleItem) ValueCopy(dst []byte) ([]byte, error) { return append(dst[:0], i.value...), nil }
