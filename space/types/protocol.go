package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mutation is one client generated change. IDs are assigned by the client, start at 1 and increase by one
// per mutation.
type Mutation struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Args Value  `json:"args"`
}

type PushRequest struct {
	ClientID  string     `json:"clientID"`
	Mutations []Mutation `json:"mutations"`
}

type PullRequest struct {
	ClientID string `json:"clientID"`
	// Cookie is the version the client last synced to. Nil means the client has nothing.
	Cookie *uint64 `json:"cookie"`
}

const (
	OpPut = "put"
	OpDel = "del"
)

// PatchOperation is a put or a del. Value is only set for puts.
type PatchOperation struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value *Value `json:"value,omitempty"`
}

func PutOp(key string, value Value) PatchOperation {
	return PatchOperation{Op: OpPut, Key: key, Value: &value}
}

func DelOp(key string) PatchOperation {
	return PatchOperation{Op: OpDel, Key: key}
}

type PullResponse struct {
	LastMutationID uint64           `json:"lastMutationID"`
	Cookie         uint64           `json:"cookie"`
	Patch          []PatchOperation `json:"patch"`
}

// ValidationError reports a malformed request. Nothing has been read or written when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (r *PushRequest) Validate() error {
	if r.ClientID == "" {
		return invalid("clientID", "must not be empty")
	}
	for i, m := range r.Mutations {
		field := fmt.Sprintf("mutations[%d]", i)
		if m.ID == 0 {
			return invalid(field+".id", "must be greater than 0")
		}
		if m.Name == "" {
			return invalid(field+".name", "must not be empty")
		}
		if m.Args.IsUndefined() {
			return invalid(field+".args", "is required")
		}
	}
	return nil
}

func (r *PullRequest) Validate() error {
	if r.ClientID == "" {
		return invalid("clientID", "must not be empty")
	}
	return nil
}

// ParsePushRequest decodes and validates a push body.
func ParsePushRequest(body []byte) (*PushRequest, error) {
	req := new(PushRequest)
	if err := decodeStrict(body, req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// ParsePullRequest decodes and validates a pull body.
func ParsePullRequest(body []byte) (*PullRequest, error) {
	req := new(PullRequest)
	if err := decodeStrict(body, req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeStrict decodes a single JSON object; type mismatches (e.g. a negative or fractional id) are
// validation errors.
func decodeStrict(body []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(out); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if dec.More() {
		return &ValidationError{Reason: "trailing data after request body"}
	}
	return nil
}
