package latches

import (
	"context"
	"sync"

	"github.com/pingcap-incubator/tinysync/space/transaction/mvcc"
)

// Latching provides atomicity of TinySync pushes. A push reads a client's last mutation id and the space's
// version, runs mutators against the space and then writes all of it back. If two pushes to the same space race,
// both could read the same version and one would overwrite the other's work. By latching the keys each command
// might write, we ensure that pushes to one space are applied one at a time while pushes to different spaces run
// in parallel.
//
// A latch is a per-key lock. Only one goroutine can hold a latch at a time and all keys that a command might
// write must be locked at once.
//
// Latching is implemented using a single map which maps keys to a Go WaitGroup. Access to this map is guarded by
// a mutex to ensure that latching is atomic and consistent.

type Latches struct {
	// Before modifying any property of a key, the goroutine must have the latch for that key. `Latches` maps each
	// latched key to a WaitGroup. Goroutines who find a key locked should wait on that WaitGroup.
	latchMap map[string]*sync.WaitGroup
	// Mutex to guard latchMap. A goroutine must hold this mutex while it makes any change to latchMap.
	latchGuard sync.Mutex
	// An optional validation function, only used for testing.
	Validation func(txn *mvcc.SpaceTxn, keys [][]byte)
}

// NewLatches creates a new Latches object for managing a database's latches. There should only be one such
// object, shared between all goroutines.
func NewLatches() *Latches {
	l := new(Latches)
	l.latchMap = make(map[string]*sync.WaitGroup)
	return l
}

// AcquireLatches tries to lock all latches specified by keys. If this succeeds, nil is returned. If any of the
// keys are locked, then AcquireLatches returns a WaitGroup which the caller can use to be woken when the lock is
// free.
func (l *Latches) AcquireLatches(keysToLatch [][]byte) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	for _, key := range keysToLatch {
		if latchWg, ok := l.latchMap[string(key)]; ok {
			return latchWg
		}
	}

	wg := new(sync.WaitGroup)
	wg.Add(1)
	for _, key := range keysToLatch {
		l.latchMap[string(key)] = wg
	}

	return nil
}

// ReleaseLatches releases the latches for all keys in keysToUnlatch and wakes any goroutine blocked on them.
// All keys in keysToUnlatch must have been locked together in one call to AcquireLatches.
func (l *Latches) ReleaseLatches(keysToUnlatch [][]byte) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	var released *sync.WaitGroup
	for _, key := range keysToUnlatch {
		wg, ok := l.latchMap[string(key)]
		if !ok {
			continue
		}
		if released == nil {
			wg.Done()
			released = wg
		}
		delete(l.latchMap, string(key))
	}
}

// WaitForLatches locks all keys in keysToLatch, waiting for holders to release them. It gives up when ctx is
// done, in which case no latch is held.
func (l *Latches) WaitForLatches(ctx context.Context, keysToLatch [][]byte) error {
	for {
		wg := l.AcquireLatches(keysToLatch)
		if wg == nil {
			return nil
		}
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Validate calls the function in Validation, if it exists.
func (l *Latches) Validate(txn *mvcc.SpaceTxn, latched [][]byte) {
	if l.Validation != nil {
		l.Validation(txn, latched)
	}
}
