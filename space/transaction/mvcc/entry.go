package mvcc

import (
	"fmt"

	"github.com/pingcap-incubator/tinysync/space/types"
)

const (
	flagPut       byte = 0
	flagTombstone byte = 1
)

// Entry is the state of one key as written at Version.
type Entry struct {
	Key     string
	Value   types.Value
	Deleted bool
	Version uint64
}

func encodeEntryValue(value types.Value, deleted bool) []byte {
	if deleted {
		return []byte{flagTombstone}
	}
	return append([]byte{flagPut}, value.Bytes()...)
}

func decodeEntryValue(b []byte) (types.Value, bool, error) {
	if len(b) == 0 {
		return types.Value{}, false, fmt.Errorf("mvcc/entry: empty entry value")
	}
	switch b[0] {
	case flagTombstone:
		return types.Value{}, true, nil
	case flagPut:
		v, err := types.NewValue(b[1:])
		return v, false, err
	}
	return types.Value{}, false, fmt.Errorf("mvcc/entry: unknown flag %d", b[0])
}
