package transaction

// This file contains utility code for testing commands.

import (
	"context"
	"testing"

	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/mutator/shapes"
	"github.com/pingcap-incubator/tinysync/space/server"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/transaction/commands"
	"github.com/pingcap-incubator/tinysync/space/transaction/mvcc"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpace = "space-1"

// testBuilder is a helper type for running command tests.
type testBuilder struct {
	t      *testing.T
	server *server.Server
	// mem will always be the backing store for server.
	mem *storage.MemStorage
	// Keep track of mutation ids per client.
	nextID map[string]uint64
}

func testRegistry() *mutator.Registry {
	r := mutator.NewRegistry()
	// put writes {"key": ..., "value": ...}.
	r.MustRegister("put", func(tx mutator.WriteTransaction, args types.Value) error {
		var a struct {
			Key   string      `json:"key"`
			Value types.Value `json:"value"`
		}
		if err := args.Decode(&a); err != nil {
			return err
		}
		return tx.Put(a.Key, a.Value)
	})
	r.MustRegister("del", func(tx mutator.WriteTransaction, args types.Value) error {
		var key string
		if err := args.Decode(&key); err != nil {
			return err
		}
		_, err := tx.Del(key)
		return err
	})
	// putThenFail leaves a write behind before failing.
	r.MustRegister("putThenFail", func(tx mutator.WriteTransaction, args types.Value) error {
		var key string
		if err := args.Decode(&key); err != nil {
			return err
		}
		if err := tx.Put(key, types.MustValue(`"partial"`)); err != nil {
			return err
		}
		return errors.New("mutator failed on purpose")
	})
	r.MustRegister("putThenPanic", func(tx mutator.WriteTransaction, args types.Value) error {
		var key string
		if err := args.Decode(&key); err != nil {
			return err
		}
		if err := tx.Put(key, types.MustValue(`"partial"`)); err != nil {
			return err
		}
		panic("mutator panicked on purpose")
	})
	r.MustRegister("incr", func(tx mutator.WriteTransaction, args types.Value) error {
		var key string
		if err := args.Decode(&key); err != nil {
			return err
		}
		var n int
		v, ok, err := tx.Get(key)
		if err != nil {
			return err
		}
		if ok {
			if err := v.Decode(&n); err != nil {
				return err
			}
		}
		next, err := types.ValueOf(n + 1)
		if err != nil {
			return err
		}
		return tx.Put(key, next)
	})
	if err := shapes.Register(r); err != nil {
		panic(err)
	}
	return r
}

func newBuilder(t *testing.T) testBuilder {
	mem := storage.NewMemStorage()
	server := server.NewServer(mem, testRegistry())
	server.Latches.Validation = func(txn *mvcc.SpaceTxn, keys [][]byte) {
		keyMap := make(map[string]struct{})
		for _, k := range keys {
			keyMap[string(k)] = struct{}{}
		}
		for _, wr := range txn.Writes() {
			key, err := mvcc.LatchKeyFor(wr)
			if err != nil {
				t.Errorf("Failed latching validation: %v", err)
				continue
			}
			if key == nil {
				continue
			}
			if _, ok := keyMap[string(key)]; !ok {
				t.Errorf("Failed latching validation: tried to write a key which was not latched in %v", wr.Data)
			}
		}
	}
	return testBuilder{t, server, mem, make(map[string]uint64)}
}

// mutation builds a mutation with the client's next id.
func (builder *testBuilder) mutation(clientID, name, args string) types.Mutation {
	builder.nextID[clientID]++
	return types.Mutation{ID: builder.nextID[clientID], Name: name, Args: types.MustValue(args)}
}

func mutation(id uint64, name, args string) types.Mutation {
	return types.Mutation{ID: id, Name: name, Args: types.MustValue(args)}
}

func (builder *testBuilder) push(clientID string, muts ...types.Mutation) *commands.PushResult {
	result, err := builder.server.Push(context.Background(), testSpace, &types.PushRequest{ClientID: clientID, Mutations: muts})
	require.Nil(builder.t, err)
	return result
}

func (builder *testBuilder) pull(clientID string, cookie *uint64) *types.PullResponse {
	resp, err := builder.server.Pull(context.Background(), testSpace, &types.PullRequest{ClientID: clientID, Cookie: cookie})
	require.Nil(builder.t, err)
	return resp
}

func (builder *testBuilder) pullSince(clientID string, cookie uint64) *types.PullResponse {
	return builder.pull(clientID, &cookie)
}

// assertState asserts the space's version and the client's last mutation id.
func (builder *testBuilder) assertState(clientID string, cookie, lastMutationID uint64) {
	resp := builder.pullSince(clientID, cookie)
	assert.Equal(builder.t, cookie, resp.Cookie)
	assert.Equal(builder.t, lastMutationID, resp.LastMutationID)
	assert.Empty(builder.t, resp.Patch)
}

// assertValue asserts the current value of key, as seen by a full pull.
func (builder *testBuilder) assertValue(key string, value string) {
	for _, op := range builder.pull("observer", nil).Patch {
		if op.Key == key && op.Op == types.OpPut {
			if value == "" {
				builder.t.Errorf("key %q should be absent, found %v", key, op.Value)
				return
			}
			assert.Equal(builder.t, value, op.Value.String())
			return
		}
	}
	if value != "" {
		builder.t.Errorf("key %q not found", key)
	}
}

// assertLen asserts the size of one of the column families.
func (builder *testBuilder) assertLen(cf string, size int) {
	assert.Equal(builder.t, size, builder.mem.Len(cf))
}

// assertLens asserts the size of each column family.
func (builder *testBuilder) assertLens(entry int, change int, meta int) {
	builder.assertLen(engine_util.CfEntry, entry)
	builder.assertLen(engine_util.CfChange, change)
	builder.assertLen(engine_util.CfMeta, meta)
}

// replica is a client side copy of a space, built by applying patches.
type replica map[string]string

func (r replica) apply(patch []types.PatchOperation) {
	for _, op := range patch {
		switch op.Op {
		case types.OpPut:
			r[op.Key] = op.Value.String()
		case types.OpDel:
			delete(r, op.Key)
		}
	}
}
