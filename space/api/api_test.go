package api

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/mutator/shapes"
	"github.com/pingcap-incubator/tinysync/space/server"
	"github.com/pingcap-incubator/tinysync/space/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*httptest.Server, *server.Server) {
	r := mutator.NewRegistry()
	require.Nil(t, shapes.Register(r))
	svr := server.NewServer(storage.NewMemStorage(), r)
	conf := config.NewTestConfig()
	conf.MaxRequestBody = "1KB"
	handler, err := NewHandler(svr, conf)
	require.Nil(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, svr
}

func post(t *testing.T, url, body string) (int, string) {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.Nil(t, err)
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	require.Nil(t, err)
	return resp.StatusCode, string(data)
}

func TestPushPull(t *testing.T) {
	ts, _ := newTestAPI(t)
	url := ts.URL + "/api/v1/spaces/room-1"

	status, body := post(t, url+"/push", `{"clientID":"c1","mutations":[{"id":1,"name":"setCursor","args":{"x":1,"y":2}}]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", body)

	status, body = post(t, url+"/pull", `{"clientID":"c1","cookie":null}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"lastMutationID":1,"cookie":1,"patch":[{"op":"put","key":"cursor-c1","value":{"x":1,"y":2}}]}`, body)

	status, body = post(t, url+"/pull", `{"clientID":"c1","cookie":1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `{"lastMutationID":1,"cookie":1,"patch":[]}`, body)
}

func TestErrors(t *testing.T) {
	ts, svr := newTestAPI(t)
	url := ts.URL + "/api/v1/spaces/room-1"

	status, _ := post(t, url+"/push", `{"clientID":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = post(t, url+"/pull", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	big := `{"clientID":"c1","cookie":null,"pad":"` + strings.Repeat("x", 2048) + `"}`
	status, _ = post(t, url+"/pull", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)

	svr.Stop()
	status, _ = post(t, url+"/pull", `{"clientID":"c1","cookie":null}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestStatus(t *testing.T) {
	ts, _ := newTestAPI(t)
	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.Nil(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, config.EngineMemory, status.Engine)
	assert.Contains(t, status.Mutators, "createShape")
	assert.False(t, status.Stopped)
}

func TestPingAndMetrics(t *testing.T) {
	ts, _ := newTestAPI(t)
	resp, err := http.Get(ts.URL + "/ping")
	require.Nil(t, err)
	data, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(data))

	post(t, ts.URL+"/api/v1/spaces/room-1/pull", `{"clientID":"c1","cookie":null}`)
	resp, err = http.Get(ts.URL + "/metrics")
	require.Nil(t, err)
	data, _ = ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, bytes.Contains(data, []byte("tinysync_server_pull_total")))
}
