package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)

	// VersionSize is the number of bytes a version occupies at the end of an encoded key.
	VersionSize = 8
)

var pads = make([]byte, encGroupSize)

// EncodeKey encodes a user key and appends an encoded version to it. Keys and versions are encoded so that
// versioned keys are sorted first by key (ascending), then by version (descending). The encoding is based on
// https://github.com/facebook/mysql-5.6/wiki/MyRocks-record-format#memcomparable-format.
func EncodeKey(key []byte, version uint64) []byte {
	encodedKey := EncodeBytes(key)
	return AppendVersion(encodedKey, version)
}

// EncodeBytes guarantees the encoded value is in ascending order for comparison,
// encoding with the following rule:
//  [group1][marker1]...[groupN][markerN]
//  group is 8 bytes slice which is padding with 0.
//  marker is `0xFF - padding 0 count`
// For example:
//   [] -> [0, 0, 0, 0, 0, 0, 0, 0, 247]
//   [1, 2, 3] -> [1, 2, 3, 0, 0, 0, 0, 0, 250]
//   [1, 2, 3, 0] -> [1, 2, 3, 0, 0, 0, 0, 0, 251]
//   [1, 2, 3, 4, 5, 6, 7, 8] -> [1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247]
func EncodeBytes(data []byte) []byte {
	// Room for the groups plus one trailing version.
	dLen := len(data)
	result := make([]byte, 0, (dLen/encGroupSize+1)*(encGroupSize+1)+VersionSize)
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			result = append(result, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, pads[:padCount]...)
		}

		marker := encMarker - byte(padCount)
		result = append(result, marker)
	}
	return result
}

// AppendVersion appends the version to an encoded key. The version is inverted so that when sorted,
// versions of the same key are in descending order.
func AppendVersion(encodedKey []byte, version uint64) []byte {
	newKey := append(encodedKey, make([]byte, VersionSize)...)
	binary.BigEndian.PutUint64(newKey[len(newKey)-VersionSize:], ^version)
	return newKey
}

// DecodeKey splits a key produced by EncodeKey into the user key and the version.
func DecodeKey(key []byte) ([]byte, uint64, error) {
	left, userKey, err := DecodeBytes(key)
	if err != nil {
		return nil, 0, err
	}
	if len(left) != VersionSize {
		return nil, 0, errors.Errorf("codec: expected %d version bytes, found %d", VersionSize, len(left))
	}
	return userKey, ^binary.BigEndian.Uint64(left), nil
}

// EncodeUint64 encodes v in 8 big endian bytes so that encoded values sort like the integers.
func EncodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// DecodeUint64 is the inverse of EncodeUint64.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.Errorf("codec: value is incorrect length, expected 8, found %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// DecodeBytes decodes bytes which is encoded by EncodeBytes before,
// returns the leftover bytes and decoded value if no error.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}

		groupBytes := b[:encGroupSize+1]

		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]

		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", groupBytes)
		}

		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]

		if padCount != 0 {
			// Check validity of padding bytes.
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", groupBytes)
				}
			}
			break
		}
	}
	return b, data, nil
}
