package mutator

import (
	"sort"

	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/pingcap/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// KV is one key/value pair returned by a scan.
type KV struct {
	Key   string
	Value types.Value
}

// WriteTransaction is the view of a space a mutator runs against. Reads see the space as of the start of the
// push plus every write made earlier in the same push. Writes are buffered and only become visible to pulls
// when the whole push commits.
type WriteTransaction interface {
	SpaceID() string
	ClientID() string
	Get(key string) (types.Value, bool, error)
	Has(key string) (bool, error)
	Put(key string, value types.Value) error
	// Del deletes key and reports whether it existed.
	Del(key string) (bool, error)
	// ScanPrefix returns the live entries whose key starts with prefix, in key order.
	ScanPrefix(prefix string) ([]KV, error)
}

// Mutator applies one mutation's business logic. Returning an error discards every write the mutator made.
type Mutator func(tx WriteTransaction, args types.Value) error

// Registry maps mutator names to mutators. It is safe for concurrent use; mutators are normally registered
// once at startup.
type Registry struct {
	mutators *xsync.MapOf[string, Mutator]
}

func NewRegistry() *Registry {
	return &Registry{mutators: xsync.NewMapOf[string, Mutator]()}
}

// Register adds a mutator. Registering the same name twice is an error.
func (r *Registry) Register(name string, fn Mutator) error {
	if name == "" {
		return errors.New("mutator name must not be empty")
	}
	if fn == nil {
		return errors.Errorf("mutator %s is nil", name)
	}
	if _, loaded := r.mutators.LoadOrStore(name, fn); loaded {
		return errors.Errorf("mutator %s is already registered", name)
	}
	return nil
}

func (r *Registry) MustRegister(name string, fn Mutator) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Mutator, bool) {
	return r.mutators.Load(name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.mutators.Range(func(name string, _ Mutator) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Call runs fn, turning a panic inside it into an error.
func Call(fn Mutator, tx WriteTransaction, args types.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("mutator panicked: %v", r)
		}
	}()
	return fn(tx, args)
}
