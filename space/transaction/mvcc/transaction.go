package mvcc

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/pingcap-incubator/tinysync/space/util/codec"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/pingcap/errors"
)

// RoTxn is a read-only view of one space, backed by a storage snapshot.
type RoTxn struct {
	Reader  storage.StorageReader
	SpaceID string
	prefix  []byte
}

func NewRoTxn(reader storage.StorageReader, spaceID string) *RoTxn {
	return &RoTxn{Reader: reader, SpaceID: spaceID, prefix: spacePrefix(spaceID)}
}

func (txn *RoTxn) getUint64(key []byte) (uint64, error) {
	val, err := txn.Reader.GetCF(engine_util.CfMeta, key)
	if err != nil || val == nil {
		return 0, err
	}
	return codec.DecodeUint64(val)
}

// GetCookie returns the space's current version, 0 if nothing was ever committed to it.
func (txn *RoTxn) GetCookie() (uint64, error) {
	return txn.getUint64(CookieKey(txn.SpaceID))
}

// GetLastMutationID returns the id of the last mutation consumed for clientID, 0 for an unknown client.
func (txn *RoTxn) GetLastMutationID(clientID string) (uint64, error) {
	return txn.getUint64(LastMutationIDKey(txn.SpaceID, clientID))
}

// GetEntry returns the most recent entry for key, tombstones included. It returns nil if the key was never
// written.
func (txn *RoTxn) GetEntry(key string) (*Entry, error) {
	iter := txn.Reader.IterCF(engine_util.CfEntry)
	defer iter.Close()

	seekKey := EntryKey(txn.SpaceID, key, math.MaxUint64)
	iter.Seek(seekKey)
	if !iter.Valid() {
		return nil, nil
	}
	item := iter.Item()
	k := item.Key()
	if len(k) != len(seekKey) || !bytes.HasPrefix(k, seekKey[:len(seekKey)-codec.VersionSize]) {
		return nil, nil
	}
	return txn.entryFromItem(item)
}

func (txn *RoTxn) entryFromItem(item engine_util.DBItem) (*Entry, error) {
	userKey, version, err := decodeEntryKey(txn.prefix, item.Key())
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	value, deleted, err := decodeEntryValue(raw)
	if err != nil {
		return nil, errors.Annotatef(err, "key %q version %d", userKey, version)
	}
	return &Entry{Key: userKey, Value: value, Deleted: deleted, Version: version}, nil
}

// ScanLatest returns the most recent entry of every key starting with prefix, in key order. Tombstones are
// included.
func (txn *RoTxn) ScanLatest(prefix string) ([]Entry, error) {
	iter := txn.Reader.IterCF(engine_util.CfEntry)
	defer iter.Close()

	var entries []Entry
	last := ""
	first := true
	for iter.Seek(append(spacePrefix(txn.SpaceID), codec.EncodeBytes([]byte(prefix))...)); iter.Valid(); iter.Next() {
		item := iter.Item()
		if !bytes.HasPrefix(item.Key(), txn.prefix) {
			break
		}
		userKey, _, err := decodeEntryKey(txn.prefix, item.Key())
		if err != nil {
			return nil, err
		}
		if userKey < prefix {
			continue
		}
		if !strings.HasPrefix(userKey, prefix) {
			break
		}
		if !first && userKey == last {
			// An older version of a key already returned.
			continue
		}
		first = false
		last = userKey
		entry, err := txn.entryFromItem(item)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

type keyItem string

func (k keyItem) Less(than btree.Item) bool {
	return k < than.(keyItem)
}

// ChangedEntries returns the latest entry of every key written at a version greater than since, in key order.
func (txn *RoTxn) ChangedEntries(since uint64) ([]Entry, error) {
	if since == math.MaxUint64 {
		return nil, nil
	}
	changed, err := txn.changedKeys(since)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, changed.Len())
	changed.Ascend(func(i btree.Item) bool {
		var entry *Entry
		entry, err = txn.GetEntry(string(i.(keyItem)))
		if err != nil {
			return false
		}
		if entry == nil {
			err = errors.Errorf("mvcc: change index refers to missing key %q", string(i.(keyItem)))
			return false
		}
		entries = append(entries, *entry)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// changedKeys collects the distinct keys of the change records after since. The iterator is closed before
// entries are read, a reader holds one iterator at a time.
func (txn *RoTxn) changedKeys(since uint64) (*btree.BTree, error) {
	iter := txn.Reader.IterCF(engine_util.CfChange)
	defer iter.Close()

	changed := btree.New(32)
	for iter.Seek(append(spacePrefix(txn.SpaceID), codec.EncodeUint64(since+1)...)); iter.Valid(); iter.Next() {
		k := iter.Item().Key()
		if !bytes.HasPrefix(k, txn.prefix) {
			break
		}
		_, userKey, err := decodeChangeKey(txn.prefix, k)
		if err != nil {
			return nil, err
		}
		changed.ReplaceOrInsert(keyItem(userKey))
	}
	return changed, nil
}

type pendingWrite struct {
	key     string
	value   types.Value
	deleted bool
}

// SpaceTxn groups the writes of one push to one space. Entry writes made by mutators are buffered in order and
// read back by later reads of the same transaction; nothing reaches storage until RunCommand writes the result
// of Writes in one batch.
type SpaceTxn struct {
	RoTxn
	clientID string
	// Version is the space version entry writes are tagged with.
	Version uint64

	pending   []pendingWrite
	meta      []storage.Modify
	safePoint int
	err       error
}

var _ mutator.WriteTransaction = (*SpaceTxn)(nil)

// NewSpaceTxn creates a new SpaceTxn for clientID's writes to spaceID.
func NewSpaceTxn(reader storage.StorageReader, spaceID, clientID string) *SpaceTxn {
	return &SpaceTxn{RoTxn: *NewRoTxn(reader, spaceID), clientID: clientID}
}

func (txn *SpaceTxn) SpaceID() string {
	return txn.RoTxn.SpaceID
}

func (txn *SpaceTxn) ClientID() string {
	return txn.clientID
}

func (txn *SpaceTxn) putMeta(key []byte, value uint64) {
	txn.meta = append(txn.meta, storage.Modify{Data: storage.Put{
		Key:   key,
		Value: codec.EncodeUint64(value),
		Cf:    engine_util.CfMeta,
	}})
}

// PutCookie records version as the space's new current version.
func (txn *SpaceTxn) PutCookie(version uint64) {
	txn.putMeta(CookieKey(txn.RoTxn.SpaceID), version)
}

// PutLastMutationID records id as the last consumed mutation of clientID.
func (txn *SpaceTxn) PutLastMutationID(clientID string, id uint64) {
	txn.putMeta(LastMutationIDKey(txn.RoTxn.SpaceID, clientID), id)
}

// PutSchemaVersion marks the storage with the current schema version.
func (txn *SpaceTxn) PutSchemaVersion() {
	txn.meta = append(txn.meta, schemaWrite())
}

func (txn *SpaceTxn) lookup(key string) (pendingWrite, bool) {
	for i := len(txn.pending) - 1; i >= 0; i-- {
		if txn.pending[i].key == key {
			return txn.pending[i], true
		}
	}
	return pendingWrite{}, false
}

func (txn *SpaceTxn) fail(err error) error {
	if txn.err == nil {
		txn.err = err
	}
	return err
}

// Err returns the first storage error seen by a read through txn. A push must not commit once it is set.
func (txn *SpaceTxn) Err() error {
	return txn.err
}

func (txn *SpaceTxn) Get(key string) (types.Value, bool, error) {
	if w, ok := txn.lookup(key); ok {
		if w.deleted {
			return types.Value{}, false, nil
		}
		return w.value, true, nil
	}
	entry, err := txn.GetEntry(key)
	if err != nil {
		return types.Value{}, false, txn.fail(err)
	}
	if entry == nil || entry.Deleted {
		return types.Value{}, false, nil
	}
	return entry.Value, true, nil
}

func (txn *SpaceTxn) Has(key string) (bool, error) {
	_, ok, err := txn.Get(key)
	return ok, err
}

func (txn *SpaceTxn) Put(key string, value types.Value) error {
	if value.IsUndefined() {
		return errors.Errorf("cannot put undefined value at %q", key)
	}
	txn.pending = append(txn.pending, pendingWrite{key: key, value: value})
	return nil
}

// Del deletes key and reports whether it existed. Deleting a missing key writes nothing.
func (txn *SpaceTxn) Del(key string) (bool, error) {
	existed, err := txn.Has(key)
	if err != nil || !existed {
		return false, err
	}
	txn.pending = append(txn.pending, pendingWrite{key: key, deleted: true})
	return true, nil
}

func (txn *SpaceTxn) ScanPrefix(prefix string) ([]mutator.KV, error) {
	committed, err := txn.ScanLatest(prefix)
	if err != nil {
		return nil, txn.fail(err)
	}
	merged := make(map[string]pendingWrite, len(committed))
	for _, e := range committed {
		merged[e.Key] = pendingWrite{key: e.Key, value: e.Value, deleted: e.Deleted}
	}
	for _, w := range txn.pending {
		if strings.HasPrefix(w.key, prefix) {
			merged[w.key] = w
		}
	}

	kvs := make([]mutator.KV, 0, len(merged))
	for _, w := range merged {
		if !w.deleted {
			kvs = append(kvs, mutator.KV{Key: w.key, Value: w.value})
		}
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}

// SetSafePoint marks the current entry writes as kept by a later RollbackToSafePoint.
func (txn *SpaceTxn) SetSafePoint() {
	txn.safePoint = len(txn.pending)
}

// RollbackToSafePoint discards every entry write made since the last SetSafePoint.
func (txn *SpaceTxn) RollbackToSafePoint() {
	for i := txn.safePoint; i < len(txn.pending); i++ {
		txn.pending[i] = pendingWrite{}
	}
	txn.pending = txn.pending[:txn.safePoint]
}

// HasWrites reports whether committing txn would change storage.
func (txn *SpaceTxn) HasWrites() bool {
	return len(txn.meta) > 0 || len(txn.pending) > 0
}

// Writes returns all modifications to be applied: the meta records followed by the final state of every
// key written, tagged with Version, and its change index record.
func (txn *SpaceTxn) Writes() []storage.Modify {
	writes := make([]storage.Modify, 0, len(txn.meta)+2*len(txn.pending))
	writes = append(writes, txn.meta...)

	final := make(map[string]pendingWrite, len(txn.pending))
	for _, w := range txn.pending {
		final[w.key] = w
	}
	keys := make([]string, 0, len(final))
	for k := range final {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		w := final[k]
		flag := flagPut
		if w.deleted {
			flag = flagTombstone
		}
		writes = append(writes,
			storage.Modify{Data: storage.Put{
				Key:   EntryKey(txn.RoTxn.SpaceID, k, txn.Version),
				Value: encodeEntryValue(w.value, w.deleted),
				Cf:    engine_util.CfEntry,
			}},
			storage.Modify{Data: storage.Put{
				Key:   ChangeKey(txn.RoTxn.SpaceID, txn.Version, k),
				Value: []byte{flag},
				Cf:    engine_util.CfChange,
			}})
	}
	return writes
}
