package types

import (
	"bytes"
	"encoding/json"

	"github.com/pingcap/errors"
)

// Kind is the JSON type of a Value.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "undefined"
}

// Value is an arbitrary JSON document held in compact form. The protocol never looks inside values;
// mutators Decode them into their own argument types.
//
// The zero Value is undefined (absent), which is different from JSON null.
type Value struct {
	raw  []byte
	kind Kind
}

// NewValue validates and compacts raw JSON.
func NewValue(raw []byte) (Value, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Value{}, errors.Annotate(err, "invalid JSON value")
	}
	compact := buf.Bytes()
	if len(compact) == 0 {
		return Value{}, errors.New("invalid JSON value: empty")
	}
	return Value{raw: compact, kind: kindOf(compact[0])}, nil
}

// MustValue is NewValue for literals known to be valid.
func MustValue(raw string) Value {
	v, err := NewValue([]byte(raw))
	if err != nil {
		panic(err)
	}
	return v
}

// ValueOf marshals v.
func ValueOf(v interface{}) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Value{}, errors.WithStack(err)
	}
	return NewValue(raw)
}

func kindOf(first byte) Kind {
	switch first {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '[':
		return KindArray
	case '{':
		return KindObject
	}
	return KindNumber
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsUndefined() bool {
	return v.kind == KindUndefined
}

// Bytes returns the compact JSON encoding, or nil for an undefined value.
func (v Value) Bytes() []byte {
	return v.raw
}

func (v Value) String() string {
	if v.IsUndefined() {
		return "undefined"
	}
	return string(v.raw)
}

// Decode unmarshals the value into out.
func (v Value) Decode(out interface{}) error {
	if v.IsUndefined() {
		return errors.New("decode undefined value")
	}
	return errors.WithStack(json.Unmarshal(v.raw, out))
}

// Equal compares the compact encodings.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && bytes.Equal(v.raw, other.raw)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsUndefined() {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := NewValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
