package commands

import (
	"github.com/pingcap-incubator/tinysync/log"
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/transaction/mvcc"
	"github.com/pingcap-incubator/tinysync/space/types"
)

// PushResult describes what a push did with each mutation it was given.
type PushResult struct {
	// PrevVersion is the space version the push started from.
	PrevVersion uint64
	// Version is the space version after the push. It equals PrevVersion when nothing was consumed.
	Version uint64
	// LastMutationID is the client's last mutation id after the push.
	LastMutationID uint64

	Applied   int
	Failed    int
	Unknown   int
	Duplicate int
	// Future counts the mutations dropped because an earlier one in the batch was ahead of the client's ledger.
	Future int
}

// Consumed is the number of mutations which advanced the client's last mutation id.
func (r *PushResult) Consumed() int {
	return r.Applied + r.Failed + r.Unknown
}

// Committed reports whether the push wrote anything.
func (r *PushResult) Committed() bool {
	return r.Consumed() > 0
}

type Push struct {
	CommandBase
	request  *types.PushRequest
	registry *mutator.Registry
	logger   *log.Logger
}

func NewPush(spaceID string, request *types.PushRequest, registry *mutator.Registry, logger *log.Logger) Push {
	if logger == nil {
		logger = log.GlobalLogger()
	}
	return Push{
		CommandBase: CommandBase{
			spaceID:  spaceID,
			clientID: request.ClientID,
		},
		request:  request,
		registry: registry,
		logger:   logger,
	}
}

// WillWrite latches the space version, serializing pushes to the space, and the client's ledger.
func (p *Push) WillWrite() [][]byte {
	return [][]byte{
		mvcc.CookieKey(p.spaceID),
		mvcc.LastMutationIDKey(p.spaceID, p.clientID),
	}
}

func (p *Push) PrepareWrites(txn *mvcc.SpaceTxn) (interface{}, error) {
	prevVersion, err := txn.GetCookie()
	if err != nil {
		return nil, err
	}
	lastMutationID, err := txn.GetLastMutationID(p.clientID)
	if err != nil {
		return nil, err
	}
	txn.Version = prevVersion + 1

	result := &PushResult{
		PrevVersion:    prevVersion,
		Version:        prevVersion,
		LastMutationID: lastMutationID,
	}
	p.logger.Debugf("prevVersion: %d, lastMutationID: %d", prevVersion, lastMutationID)

	for i, m := range p.request.Mutations {
		expected := lastMutationID + 1
		if m.ID < expected {
			p.logger.Debugf("Mutation %d has already been processed, skipping", m.ID)
			result.Duplicate++
			continue
		}
		if m.ID > expected {
			p.logger.Warningf("Mutation %d is from the future, expected %d, aborting processing", m.ID, expected)
			result.Future = len(p.request.Mutations) - i
			break
		}

		fn, ok := p.registry.Lookup(m.Name)
		if !ok {
			p.logger.Errorf("Unknown mutator %q in mutation %d, skipping", m.Name, m.ID)
			result.Unknown++
		} else {
			txn.SetSafePoint()
			err := mutator.Call(fn, txn, m.Args)
			if txnErr := txn.Err(); txnErr != nil {
				return nil, txnErr
			}
			if err != nil {
				p.logger.Errorf("Error executing mutator %s (mutation %d): %v", m.Name, m.ID, err)
				txn.RollbackToSafePoint()
				result.Failed++
			} else {
				result.Applied++
			}
		}
		lastMutationID = expected
	}

	if !result.Committed() {
		p.logger.Debugf("No mutations consumed, nothing to commit")
		return result, nil
	}

	txn.PutLastMutationID(p.clientID, lastMutationID)
	txn.PutCookie(txn.Version)
	result.Version = txn.Version
	result.LastMutationID = lastMutationID
	p.logger.Debugf("Committing version %d with lastMutationID %d", result.Version, lastMutationID)
	return result, nil
}
