package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/collector"
	"github.com/xdg/telecommand/internal/supervisor"
)

const maxIngestBody = 1 << 20

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type workerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type workerStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	State   string `json:"state"`
}

type ingestResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

type principalsResponse struct {
	Principals []collector.Principal `json:"principals"`
}

// flexBool accepts true/false and the 0/1 integers older workers send.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return errors.New("success must be a boolean or 0/1")
	}
	return nil
}

// ingestRecord is the POST /api/log body. It is the audit forwarder's wire
// format; user_id is accepted as an alias for principal_id.
type ingestRecord struct {
	ID            string    `json:"id"`
	Event         string    `json:"event"`
	PrincipalID   int64     `json:"principal_id"`
	UserID        int64     `json:"user_id"`
	PrincipalName string    `json:"principal_name"`
	Command       string    `json:"command"`
	Output        string    `json:"output"`
	Success       flexBool  `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleWorkerStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	res := s.worker.Status()
	writeJSON(w, http.StatusOK, workerStatusResponse{
		Success: res.Success,
		Message: res.Message,
		Running: res.State == supervisor.StateRunning,
		PID:     res.PID,
		State:   string(res.State),
	})
}

// handleWorkerAction reports the operation's outcome in the body; the
// status code is 200 whenever the request itself was valid.
func (s *Server) handleWorkerAction(op func(Controller) supervisor.Result) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		res := op(s.worker)
		if res.Err != nil {
			clog.Warn("console: %s: %v", r.URL.Path, res.Err)
		}
		writeJSON(w, http.StatusOK, workerResponse{Success: res.Success, Message: res.Message})
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.collectorAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid collector token")
		return
	}

	var rec ingestRecord
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err := dec.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rec.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	if rec.PrincipalID == 0 {
		rec.PrincipalID = rec.UserID
	}

	id, err := s.logs.Insert(r.Context(), collector.Log{
		EntryID:       rec.ID,
		Event:         rec.Event,
		PrincipalID:   rec.PrincipalID,
		PrincipalName: rec.PrincipalName,
		Command:       rec.Command,
		Output:        rec.Output,
		Success:       bool(rec.Success),
		ExecutedAt:    rec.Timestamp,
	})
	if err != nil {
		clog.Error("console: storing log: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store log")
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{Status: "success", ID: id})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	res, err := s.logs.List(r.Context(), page)
	if err != nil {
		clog.Error("console: listing logs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log id")
		return
	}

	l, err := s.logs.Get(r.Context(), id)
	if errors.Is(err, collector.ErrNotFound) {
		writeError(w, http.StatusNotFound, "log not found")
		return
	}
	if err != nil {
		clog.Error("console: reading log %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st, err := s.logs.Stats(r.Context())
	if err != nil {
		clog.Error("console: stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePrincipals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ps, err := s.logs.Principals(r.Context())
	if err != nil {
		clog.Error("console: principals: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list principals")
		return
	}
	writeJSON(w, http.StatusOK, principalsResponse{Principals: ps})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
