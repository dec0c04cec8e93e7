package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/pingcap-incubator/tinysync/space/api"
	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/mutator/shapes"
	"github.com/pingcap-incubator/tinysync/space/server"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) string {
	r := mutator.NewRegistry()
	require.Nil(t, shapes.Register(r))
	handler, err := api.NewHandler(server.NewServer(storage.NewMemStorage(), r), config.NewTestConfig())
	require.Nil(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func executeCommand(root *cobra.Command, args ...string) ([]byte, error) {
	buf := new(bytes.Buffer)
	root.SetOutput(buf)
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return buf.Bytes(), err
}

func TestPushPull(t *testing.T) {
	url := newTestServer(t)
	common := []string{"-u", url, "-s", "room", "-c", "cli"}

	out, err := executeCommand(NewRootCommand(), append([]string{"push", "setCursor", `{"x":1,"y":2}`}, common...)...)
	require.Nil(t, err, string(out))
	assert.Contains(t, string(out), "pushed mutation 1 as client cli")

	out, err = executeCommand(NewRootCommand(), append([]string{"push", "setCursor", `{"x":3,"y":4}`}, common...)...)
	require.Nil(t, err, string(out))
	assert.Contains(t, string(out), "pushed mutation 2")

	out, err = executeCommand(NewRootCommand(), append([]string{"pull"}, common...)...)
	require.Nil(t, err, string(out))
	var resp types.PullResponse
	require.Nil(t, json.Unmarshal(out, &resp))
	assert.Equal(t, uint64(2), resp.LastMutationID)
	assert.Equal(t, uint64(2), resp.Cookie)
	require.Len(t, resp.Patch, 1)
	assert.Equal(t, `{"x":3,"y":4}`, resp.Patch[0].Value.String())

	out, err = executeCommand(NewRootCommand(), append([]string{"pull", "2"}, common...)...)
	require.Nil(t, err, string(out))
	require.Nil(t, json.Unmarshal(out, &resp))
	assert.Empty(t, resp.Patch)
}

func TestBadInput(t *testing.T) {
	url := newTestServer(t)
	_, err := executeCommand(NewRootCommand(), "push", "setCursor", "{not json", "-u", url)
	assert.NotNil(t, err)
	_, err = executeCommand(NewRootCommand(), "pull", "minus-one", "-u", url)
	assert.NotNil(t, err)
	_, err = executeCommand(NewRootCommand(), "push", "-u", url)
	assert.NotNil(t, err)
}

func TestPing(t *testing.T) {
	url := newTestServer(t)
	_, err := executeCommand(NewRootCommand(), "ping", "-u", url)
	assert.Nil(t, err)
	out, err := executeCommand(NewRootCommand(), "status", "-u", url)
	assert.Nil(t, err)
	assert.Contains(t, string(out), "setCursor")
}
