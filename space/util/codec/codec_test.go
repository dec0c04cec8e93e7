package codec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBytes(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 247}, EncodeBytes(nil))
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0, 250}, EncodeBytes([]byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247},
		EncodeBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	left, data, err := DecodeBytes(EncodeBytes([]byte("shape-123456789")))
	require.Nil(t, err)
	assert.Empty(t, left)
	assert.Equal(t, []byte("shape-123456789"), data)
}

func TestEncodeKeyOrder(t *testing.T) {
	keys := [][]byte{
		EncodeKey([]byte("b"), 1),
		EncodeKey([]byte("a"), 1),
		EncodeKey([]byte("a"), 7),
		EncodeKey([]byte("ab"), 3),
		EncodeKey([]byte("a"), 2),
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	type kv struct {
		key     string
		version uint64
	}
	var got []kv
	for _, k := range keys {
		userKey, version, err := DecodeKey(k)
		require.Nil(t, err)
		got = append(got, kv{string(userKey), version})
	}
	assert.Equal(t, []kv{{"a", 7}, {"a", 2}, {"a", 1}, {"ab", 3}, {"b", 1}}, got)
}

func TestDecodeKeyErrors(t *testing.T) {
	_, _, err := DecodeKey([]byte{1, 2})
	assert.NotNil(t, err)

	// A valid encoded key without the version suffix.
	_, _, err = DecodeKey(EncodeBytes([]byte("k")))
	assert.NotNil(t, err)
}

func TestUint64(t *testing.T) {
	v, err := DecodeUint64(EncodeUint64(42))
	require.Nil(t, err)
	assert.Equal(t, uint64(42), v)
	assert.True(t, bytes.Compare(EncodeUint64(9), EncodeUint64(10)) < 0)

	_, err = DecodeUint64([]byte{1})
	assert.NotNil(t, err)
}
