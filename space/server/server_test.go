package server

import (
	"context"
	"testing"

	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/mutator/shapes"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	r := mutator.NewRegistry()
	require.Nil(t, shapes.Register(r))
	return NewServer(storage.NewMemStorage(), r)
}

func TestPushPullBody(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.PushBody(ctx, "drawing", []byte(`{
		"clientID": "c1",
		"mutations": [
			{"id": 1, "name": "createShape", "args": {"id": "s1", "shape": {"type": "rect", "x": 1, "y": 2, "width": 3, "height": 4, "rotate": 0, "fill": "red"}}},
			{"id": 2, "name": "setCursor", "args": {"x": 5, "y": 6}}
		]
	}`))
	require.Nil(t, err)
	assert.Equal(t, 2, result.Applied)

	body, err := s.PullBody(ctx, "drawing", []byte(`{"clientID": "c1", "cookie": null}`))
	require.Nil(t, err)
	assert.Equal(t,
		`{"lastMutationID":2,"cookie":1,"patch":[`+
			`{"op":"put","key":"cursor-c1","value":{"x":5,"y":6}},`+
			`{"op":"put","key":"shape-s1","value":{"type":"rect","x":1,"y":2,"width":3,"height":4,"rotate":0,"fill":"red"}}]}`,
		string(body))

	result, err = s.PushBody(ctx, "drawing", []byte(`{"clientID":"c1","mutations":[{"id":3,"name":"deleteShape","args":"s1"}]}`))
	require.Nil(t, err)
	assert.Equal(t, uint64(2), result.Version)

	body, err = s.PullBody(ctx, "drawing", []byte(`{"clientID":"c1","cookie":1}`))
	require.Nil(t, err)
	assert.Equal(t, `{"lastMutationID":3,"cookie":2,"patch":[{"op":"del","key":"shape-s1"}]}`, string(body))
}

func TestBodyValidation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, body := range []string{
		``,
		`[]`,
		`{"clientID":1}`,
		`{"clientID":"c1","mutations":[{"id":-1,"name":"x","args":1}]}`,
		`{"clientID":"c1","mutations":[{"id":1.5,"name":"x","args":1}]}`,
		`{"clientID":"c1","mutations":[{"id":1,"name":"x"}]}`,
		`{"clientID":"c1","mutations":[]} {}`,
	} {
		_, err := s.PushBody(ctx, "drawing", []byte(body))
		_, ok := err.(*types.ValidationError)
		assert.True(t, ok, "push %s: %v", body, err)
	}
	for _, body := range []string{
		`{}`,
		`{"clientID":"c1","cookie":"abc"}`,
		`{"clientID":"c1","cookie":-3}`,
	} {
		_, err := s.PullBody(ctx, "drawing", []byte(body))
		_, ok := err.(*types.ValidationError)
		assert.True(t, ok, "pull %s: %v", body, err)
	}
}

func TestStop(t *testing.T) {
	s := newTestServer(t)
	assert.False(t, s.Stopped())
	s.Stop()
	assert.True(t, s.Stopped())

	_, err := s.PullBody(context.Background(), "drawing", []byte(`{"clientID":"c1","cookie":null}`))
	assert.Equal(t, ErrServerStopped, err)
	_, err = s.Pull(context.Background(), "drawing", &types.PullRequest{ClientID: "c1"})
	assert.Equal(t, ErrServerStopped, err)
}

func TestMutationMetrics(t *testing.T) {
	s := newTestServer(t)
	applied := testutil.ToFloat64(mutationCounter.WithLabelValues("applied"))
	unknown := testutil.ToFloat64(mutationCounter.WithLabelValues("unknown"))
	future := testutil.ToFloat64(mutationCounter.WithLabelValues("future"))
	ok := testutil.ToFloat64(pushCounter.WithLabelValues(resultOK))

	_, err := s.Push(context.Background(), "drawing", &types.PushRequest{
		ClientID: "c1",
		Mutations: []types.Mutation{
			{ID: 1, Name: "setCursor", Args: types.MustValue(`{"x":0,"y":0}`)},
			{ID: 2, Name: "bogus", Args: types.MustValue(`null`)},
			{ID: 4, Name: "setCursor", Args: types.MustValue(`{"x":1,"y":1}`)},
		},
	})
	require.Nil(t, err)

	assert.Equal(t, applied+1, testutil.ToFloat64(mutationCounter.WithLabelValues("applied")))
	assert.Equal(t, unknown+1, testutil.ToFloat64(mutationCounter.WithLabelValues("unknown")))
	assert.Equal(t, future+1, testutil.ToFloat64(mutationCounter.WithLabelValues("future")))
	assert.Equal(t, ok+1, testutil.ToFloat64(pushCounter.WithLabelValues(resultOK)))
}
