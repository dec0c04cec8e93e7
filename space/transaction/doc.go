package transaction

// The transaction package implements TinySync's synchronization protocol on top of the key/value store (defined by
// Storage in space/storage). It takes push and pull requests from space/server and turns them into reads and writes
// of the underlying store, making sure that processing of one request does not interfere with another.
//
// A *space* is an isolated keyspace shared by many clients. Every space has a version (the "cookie") which grows by
// one with every push that consumed at least one mutation. Every client of a space has a last mutation id (LMID) which
// grows by one with every mutation consumed from that client. Mutations arrive in pushes; a mutation whose id is not
// LMID+1 is either a retry of something already consumed (skipped) or arrived too early (the rest of the push is
// dropped, the client will send it again).
//
// Within this package, `commands` contains code to lower push and pull requests to mvcc transactions. `mvcc` contains
// code for interacting with the underlying storage (Storage).
//
// Each command is represented by a type which implements the `Command` interface and is defined in `commands`. See the
// `Command` docs for details on how a command is executed. The HTTP layer handles each request on its own goroutine and
// we execute the command to completion on that goroutine, relying on latches for safety.
//
// *Latches* are stored outside the underlying storage. A push latches the cookie key of its space and the LMID key of
// its client, so two pushes to one space never read the same version. Pulls take no latches: they read a storage
// snapshot. See the latches package for details.
//
// ## Encoding
//
// All data ever written is kept. Every write of a key is stored in the `entry` CF under the key encoded with the space
// version it was written at (see space/util/codec), with the newest version first, so reading the current value of a
// key is a single seek. A deleted key is a tombstone entry.
//
// The `change` CF indexes the same writes by version: one record per (version, key). A pull scans it from the client's
// cookie onwards to find the keys changed since, then reads the latest entry of each.
//
// Cookies, LMIDs and the storage schema version live in the `meta` CF. See mvcc/keys.go for the exact layout.
