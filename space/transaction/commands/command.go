package commands

import (
	"context"

	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/transaction/latches"
	"github.com/pingcap-incubator/tinysync/space/transaction/mvcc"
)

// Command is an abstraction which covers the process from receiving a request to returning a response.
type Command interface {
	SpaceID() string
	// ClientID is the client whose mutations a writing command applies.
	ClientID() string
	// WillWrite returns a list of all keys that might be written by this command. Return nil if the command is
	// readonly.
	WillWrite() [][]byte
	// Read executes a readonly command. Only called if WillWrite returns nil.
	Read(txn *mvcc.RoTxn) (interface{}, error)
	// PrepareWrites is for building writes in a space transaction. Returning without modifying txn means that
	// nothing will be written.
	PrepareWrites(txn *mvcc.SpaceTxn) (interface{}, error)
}

// RunCommand runs a command inside a single storage transaction. Readonly commands read a snapshot. Writing commands
// hold the latches for every key they might write from before reading until their writes are applied, so the
// values they read cannot change underneath them. Either all writes of a command are applied or none are.
func RunCommand(ctx context.Context, cmd Command, storage storage.Storage, latches *latches.Latches) (interface{}, error) {
	keysToWrite := cmd.WillWrite()
	if keysToWrite == nil {
		reader, err := storage.Reader(ctx)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		if _, err := mvcc.CheckSchema(reader); err != nil {
			return nil, err
		}
		return cmd.Read(mvcc.NewRoTxn(reader, cmd.SpaceID()))
	}

	if err := latches.WaitForLatches(ctx, keysToWrite); err != nil {
		return nil, err
	}
	defer latches.ReleaseLatches(keysToWrite)

	reader, err := storage.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	bootstrapped, err := mvcc.CheckSchema(reader)
	if err != nil {
		return nil, err
	}

	txn := mvcc.NewSpaceTxn(reader, cmd.SpaceID(), cmd.ClientID())
	resp, err := cmd.PrepareWrites(txn)
	if err != nil {
		return nil, err
	}
	if !txn.HasWrites() {
		return resp, nil
	}
	if !bootstrapped {
		txn.PutSchemaVersion()
	}

	latches.Validate(txn, keysToWrite)

	// Building the transaction succeeded, write all writes to backing storage.
	if err := storage.Write(ctx, txn.Writes()); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadOnly is a helper type for commands which will never write anything to the database. It provides some default
// function implementations.
type ReadOnly struct{}

func (ro ReadOnly) WillWrite() [][]byte {
	return nil
}

func (ro ReadOnly) PrepareWrites(txn *mvcc.SpaceTxn) (interface{}, error) {
	return nil, nil
}

// CommandBase provides some default function implementations for the Command interface.
type CommandBase struct {
	spaceID  string
	clientID string
}

func (base CommandBase) SpaceID() string {
	return base.spaceID
}

func (base CommandBase) ClientID() string {
	return base.clientID
}

func (base CommandBase) Read(txn *mvcc.RoTxn) (interface{}, error) {
	return nil, nil
}
