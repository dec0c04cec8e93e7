package mvcc

import (
	"context"

	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/util/codec"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/pingcap/errors"
)

// SchemaVersion is the version of the key layout described in keys.go.
const SchemaVersion uint64 = 1

var ErrSchemaMismatch = errors.New("storage was written with an incompatible schema version")

// CheckSchema reports whether the storage behind reader has been bootstrapped, and fails if it was
// bootstrapped with a different schema version.
func CheckSchema(reader storage.StorageReader) (bool, error) {
	val, err := reader.GetCF(engine_util.CfMeta, schemaVersionKey)
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, nil
	}
	version, err := codec.DecodeUint64(val)
	if err != nil {
		return false, err
	}
	if version != SchemaVersion {
		return true, errors.Annotatef(ErrSchemaMismatch, "found %d, want %d", version, SchemaVersion)
	}
	return true, nil
}

func schemaWrite() storage.Modify {
	return storage.Modify{Data: storage.Put{
		Key:   schemaVersionKey,
		Value: codec.EncodeUint64(SchemaVersion),
		Cf:    engine_util.CfMeta,
	}}
}

// Bootstrap marks empty storage with SchemaVersion. It is idempotent.
func Bootstrap(ctx context.Context, s storage.Storage) error {
	reader, err := s.Reader(ctx)
	if err != nil {
		return err
	}
	bootstrapped, err := CheckSchema(reader)
	reader.Close()
	if err != nil || bootstrapped {
		return err
	}
	return s.Write(ctx, []storage.Modify{schemaWrite()})
}
