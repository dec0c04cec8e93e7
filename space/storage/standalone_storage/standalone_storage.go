package standalone_storage

import (
	"context"

	"github.com/Connor1996/badger"
	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/pingcap/errors"
)

// StandAloneStorage is an implementation of `Storage` for a single-node TinySync instance backed by badger.
// Column families are emulated with key prefixes (see engine_util.KeyWithCF).
type StandAloneStorage struct {
	conf *config.Config
	db   *badger.DB
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{conf: conf}
}

func (s *StandAloneStorage) Start() error {
	db, err := engine_util.CreateDB(s.conf.DBPath, s.conf.SyncWrites)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *StandAloneStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.WithStack(err)
}

// Reader opens a read-only badger transaction. It sees a snapshot of the DB as of the call.
func (s *StandAloneStorage) Reader(ctx context.Context) (storage.StorageReader, error) {
	if s.db == nil {
		return nil, errors.New("standalone storage is not started")
	}
	return &badgerReader{txn: s.db.NewTransaction(false)}, nil
}

func (s *StandAloneStorage) Write(ctx context.Context, batch []storage.Modify) error {
	if s.db == nil {
		return errors.New("standalone storage is not started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	return wb.WriteToDB(s.db)
}

type badgerReader struct {
	txn *badger.Txn
}

func (r *badgerReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(r.txn, cf, key)
	return val, errors.WithStack(err)
}

func (r *badgerReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, r.txn)
}

func (r *badgerReader) Close() {
	r.txn.Discard()
}
