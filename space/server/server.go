package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pingcap-incubator/tinysync/log"
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/transaction/commands"
	"github.com/pingcap-incubator/tinysync/space/transaction/latches"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

var ErrServerStopped = errors.New("server is stopped")

// Server is a TinySync server, it 'faces outwards', receiving pushes and pulls from clients and running them as
// transactions against its storage.
type Server struct {
	storage  storage.Storage
	registry *mutator.Registry

	Latches *latches.Latches

	stopped atomic.Bool
}

func NewServer(storage storage.Storage, registry *mutator.Registry) *Server {
	return &Server{
		storage:  storage,
		registry: registry,
		Latches:  latches.NewLatches(),
	}
}

func (server *Server) Registry() *mutator.Registry {
	return server.registry
}

// Stop makes the server refuse new requests. Requests already running are not interrupted.
func (server *Server) Stop() {
	server.stopped.Store(true)
}

func (server *Server) Stopped() bool {
	return server.stopped.Load()
}

func validateSpace(spaceID string) error {
	if spaceID == "" {
		return &types.ValidationError{Field: "spaceID", Reason: "must not be empty"}
	}
	return nil
}

func requestLogger(spaceID, clientID string) *log.Logger {
	return log.With("req", ulid.Make().String()).With("spaceID", spaceID).With("clientID", clientID)
}

// Push applies the mutations of req to the space. Mutations already applied are skipped and the batch stops at the
// first mutation which is ahead of the client's last mutation id.
func (server *Server) Push(ctx context.Context, spaceID string, req *types.PushRequest) (*commands.PushResult, error) {
	start := time.Now()
	defer func() { pushDuration.Observe(time.Since(start).Seconds()) }()

	if server.Stopped() {
		pushCounter.WithLabelValues(resultStopped).Inc()
		return nil, ErrServerStopped
	}
	if req == nil {
		pushCounter.WithLabelValues(resultInvalid).Inc()
		return nil, &types.ValidationError{Field: "body", Reason: "missing push request"}
	}
	if err := validateSpace(spaceID); err != nil {
		pushCounter.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}
	if err := req.Validate(); err != nil {
		pushCounter.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}

	logger := requestLogger(spaceID, req.ClientID)
	logger.Infof("Processing push of %d mutations", len(req.Mutations))

	cmd := commands.NewPush(spaceID, req, server.registry, logger)
	resp, err := commands.RunCommand(ctx, &cmd, server.storage, server.Latches)
	if err != nil {
		pushCounter.WithLabelValues(resultError).Inc()
		logger.Errorf("Push failed: %v", err)
		return nil, err
	}
	result := resp.(*commands.PushResult)

	pushCounter.WithLabelValues(resultOK).Inc()
	mutationCounter.WithLabelValues("applied").Add(float64(result.Applied))
	mutationCounter.WithLabelValues("failed").Add(float64(result.Failed))
	mutationCounter.WithLabelValues("unknown").Add(float64(result.Unknown))
	mutationCounter.WithLabelValues("duplicate").Add(float64(result.Duplicate))
	mutationCounter.WithLabelValues("future").Add(float64(result.Future))
	logger.Infof("Push done: version %d -> %d, lastMutationID %d", result.PrevVersion, result.Version, result.LastMutationID)
	return result, nil
}

// PushBody parses a raw push request and applies it.
func (server *Server) PushBody(ctx context.Context, spaceID string, body []byte) (*commands.PushResult, error) {
	req, err := types.ParsePushRequest(body)
	if err != nil {
		pushCounter.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}
	return server.Push(ctx, spaceID, req)
}

// Pull returns the changes to the space since the cookie of req, along with the space's current version and the
// client's last mutation id.
func (server *Server) Pull(ctx context.Context, spaceID string, req *types.PullRequest) (*types.PullResponse, error) {
	start := time.Now()
	defer func() { pullDuration.Observe(time.Since(start).Seconds()) }()

	if server.Stopped() {
		pullCounter.WithLabelValues(resultStopped).Inc()
		return nil, ErrServerStopped
	}
	if req == nil {
		pullCounter.WithLabelValues(resultInvalid).Inc()
		return nil, &types.ValidationError{Field: "body", Reason: "missing pull request"}
	}
	if err := validateSpace(spaceID); err != nil {
		pullCounter.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}
	if err := req.Validate(); err != nil {
		pullCounter.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}

	logger := requestLogger(spaceID, req.ClientID)
	if req.Cookie == nil {
		logger.Debugf("Processing pull from scratch")
	} else {
		logger.Debugf("Processing pull since %d", *req.Cookie)
	}

	cmd := commands.NewPull(spaceID, req)
	resp, err := commands.RunCommand(ctx, &cmd, server.storage, server.Latches)
	if err != nil {
		pullCounter.WithLabelValues(resultError).Inc()
		logger.Errorf("Pull failed: %v", err)
		return nil, err
	}
	pull := resp.(*types.PullResponse)

	pullCounter.WithLabelValues(resultOK).Inc()
	patchSizeHistogram.Observe(float64(len(pull.Patch)))
	logger.Debugf("Pull done: cookie %d, lastMutationID %d, %d patch operations", pull.Cookie, pull.LastMutationID, len(pull.Patch))
	return pull, nil
}

// PullBody parses a raw pull request and returns the response as compact JSON.
func (server *Server) PullBody(ctx context.Context, spaceID string, body []byte) ([]byte, error) {
	req, err := types.ParsePullRequest(body)
	if err != nil {
		pullCounter.WithLabelValues(resultInvalid).Inc()
		return nil, err
	}
	resp, err := server.Pull(ctx, spaceID, req)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(resp)
	return out, errors.WithStack(err)
}
