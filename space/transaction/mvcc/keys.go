package mvcc

import (
	"bytes"
	"encoding/binary"

	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/util/codec"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/pingcap/errors"
)

// Key layout
//
// All keys belonging to a space start with the memcomparable encoding of the space id, which is prefix free,
// so a scan over one space never sees another.
//
//   entry  CF: space | EncodeKey(key, version)        -> flag byte + compact JSON
//   change CF: space | BigEndian(version) | key        -> flag byte
//   meta   CF: 'c' | space                             -> BigEndian(cookie)
//              'm' | space | client                    -> BigEndian(last mutation id)
//              "schema_version"                        -> BigEndian(SchemaVersion)
//
// Versions in the entry CF are stored inverted, so the first entry found for a key is its latest.

const (
	cookieTag = 'c'
	ledgerTag = 'm'
)

var schemaVersionKey = []byte("schema_version")

func spacePrefix(spaceID string) []byte {
	return codec.EncodeBytes([]byte(spaceID))
}

// CookieKey is the meta key holding the space's current version. It doubles as the latch serializing
// writers of the space.
func CookieKey(spaceID string) []byte {
	return append([]byte{cookieTag}, spacePrefix(spaceID)...)
}

// LastMutationIDKey is the meta key holding the client's last mutation id within the space.
func LastMutationIDKey(spaceID, clientID string) []byte {
	key := append([]byte{ledgerTag}, spacePrefix(spaceID)...)
	return append(key, codec.EncodeBytes([]byte(clientID))...)
}

// EntryKey encodes key at version within the space.
func EntryKey(spaceID, key string, version uint64) []byte {
	return append(spacePrefix(spaceID), codec.EncodeKey([]byte(key), version)...)
}

// ChangeKey encodes the change index record of key being written at version.
func ChangeKey(spaceID string, version uint64, key string) []byte {
	k := append(spacePrefix(spaceID), codec.EncodeUint64(version)...)
	return append(k, codec.EncodeBytes([]byte(key))...)
}

func decodeEntryKey(prefix, k []byte) (string, uint64, error) {
	if !bytes.HasPrefix(k, prefix) {
		return "", 0, errors.Errorf("mvcc: entry key %q outside space", k)
	}
	userKey, version, err := codec.DecodeKey(k[len(prefix):])
	if err != nil {
		return "", 0, err
	}
	return string(userKey), version, nil
}

func decodeChangeKey(prefix, k []byte) (uint64, string, error) {
	if !bytes.HasPrefix(k, prefix) || len(k) < len(prefix)+8 {
		return 0, "", errors.Errorf("mvcc: malformed change key %q", k)
	}
	rest := k[len(prefix):]
	version := binary.BigEndian.Uint64(rest[:8])
	left, userKey, err := codec.DecodeBytes(rest[8:])
	if err != nil {
		return 0, "", err
	}
	if len(left) != 0 {
		return 0, "", errors.Errorf("mvcc: trailing bytes in change key %q", k)
	}
	return version, string(userKey), nil
}

// LatchKeyFor returns the latch which must be held to apply m, or nil when m needs none.
func LatchKeyFor(m storage.Modify) ([]byte, error) {
	key := m.Key()
	switch m.Cf() {
	case engine_util.CfMeta:
		if bytes.Equal(key, schemaVersionKey) {
			return nil, nil
		}
		return key, nil
	case engine_util.CfEntry, engine_util.CfChange:
		_, spaceID, err := codec.DecodeBytes(key)
		if err != nil {
			return nil, err
		}
		return CookieKey(string(spaceID)), nil
	}
	return nil, errors.Errorf("mvcc: unknown CF %s", m.Cf())
}
