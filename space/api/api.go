package api

import (
	"io"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinysync/log"
	"github.com/pingcap-incubator/tinysync/space/config"
	"github.com/pingcap-incubator/tinysync/space/server"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
)

const apiPrefix = "/api/v1"

// Version is the server version reported by the status endpoint. It is set at link time.
var Version = "None"

// NewHandler creates the HTTP handler serving the push and pull endpoints of svr.
func NewHandler(svr *server.Server, conf *config.Config) (http.Handler, error) {
	maxBody, err := conf.MaxRequestBodyBytes()
	if err != nil {
		return nil, err
	}
	rd := render.New(render.Options{})

	router := mux.NewRouter()
	apiRouter := router.PathPrefix(apiPrefix).Subrouter()

	spaceHandler := newSpaceHandler(svr, rd, maxBody)
	apiRouter.HandleFunc("/spaces/{space_id}/push", spaceHandler.Push).Methods("POST")
	apiRouter.HandleFunc("/spaces/{space_id}/pull", spaceHandler.Pull).Methods("POST")

	statusHandler := newStatusHandler(svr, rd, conf.Engine)
	apiRouter.HandleFunc("/status", statusHandler.Get).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		rd.Text(w, http.StatusOK, "pong")
	}).Methods("GET")
	return router, nil
}

type spaceHandler struct {
	svr     *server.Server
	rd      *render.Render
	maxBody int64
}

func newSpaceHandler(svr *server.Server, rd *render.Render, maxBody int64) *spaceHandler {
	return &spaceHandler{
		svr:     svr,
		rd:      rd,
		maxBody: maxBody,
	}
}

// readBody reads the request body, writing an error response and returning false if it cannot.
func (h *spaceHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := ioutil.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	r.Body.Close()
	if err != nil {
		h.rd.JSON(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if int64(len(data)) > h.maxBody {
		h.rd.JSON(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return data, true
}

func (h *spaceHandler) Push(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if _, err := h.svr.PushBody(r.Context(), mux.Vars(r)["space_id"], body); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *spaceHandler) Pull(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.svr.PullBody(r.Context(), mux.Vars(r)["space_id"], body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		log.Warnf("Failed to write pull response: %v", err)
	}
}

func (h *spaceHandler) writeError(w http.ResponseWriter, err error) {
	switch cause := errors.Cause(err).(type) {
	case *types.ValidationError:
		h.rd.JSON(w, http.StatusBadRequest, cause.Error())
	default:
		if cause == server.ErrServerStopped {
			h.rd.JSON(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.rd.JSON(w, http.StatusInternalServerError, err.Error())
	}
}

// Status is the body of the status endpoint.
type Status struct {
	Version  string   `json:"version"`
	Engine   string   `json:"engine"`
	Mutators []string `json:"mutators"`
	Stopped  bool     `json:"stopped"`
}

type statusHandler struct {
	svr    *server.Server
	rd     *render.Render
	engine string
}

func newStatusHandler(svr *server.Server, rd *render.Render, engine string) *statusHandler {
	return &statusHandler{
		svr:    svr,
		rd:     rd,
		engine: engine,
	}
}

func (h *statusHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.rd.JSON(w, http.StatusOK, &Status{
		Version:  Version,
		Engine:   h.engine,
		Mutators: h.svr.Registry().Names(),
		Stopped:  h.svr.Stopped(),
	})
}
