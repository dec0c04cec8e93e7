package commands

import (
	"github.com/pingcap-incubator/tinysync/space/transaction/mvcc"
	"github.com/pingcap-incubator/tinysync/space/types"
)

type Pull struct {
	ReadOnly
	CommandBase
	request *types.PullRequest
}

func NewPull(spaceID string, request *types.PullRequest) Pull {
	return Pull{
		CommandBase: CommandBase{
			spaceID:  spaceID,
			clientID: request.ClientID,
		},
		request: request,
	}
}

func (p *Pull) Read(txn *mvcc.RoTxn) (interface{}, error) {
	var since uint64
	if p.request.Cookie != nil {
		since = *p.request.Cookie
	}

	entries, err := txn.ChangedEntries(since)
	if err != nil {
		return nil, err
	}
	cookie, err := txn.GetCookie()
	if err != nil {
		return nil, err
	}
	lastMutationID, err := txn.GetLastMutationID(p.clientID)
	if err != nil {
		return nil, err
	}

	patch := make([]types.PatchOperation, 0, len(entries))
	for _, e := range entries {
		if e.Deleted {
			patch = append(patch, types.DelOp(e.Key))
		} else {
			patch = append(patch, types.PutOp(e.Key, e.Value))
		}
	}
	return &types.PullResponse{
		LastMutationID: lastMutationID,
		Cookie:         cookie,
		Patch:          patch,
	}, nil
}
