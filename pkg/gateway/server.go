package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashrelay/hashrelay/internal/core/domain"
	"github.com/hashrelay/hashrelay/internal/core/ports"
	"github.com/hashrelay/hashrelay/internal/core/services"
)

// Server exposes the relay over HTTP. Submissions are accepted asynchronously:
// the POST handler returns as soon as the dispatcher has queued the request,
// and callers follow progress through the snapshot and SSE endpoints.
type Server struct {
	logger         *slog.Logger
	dispatcher     *services.Dispatcher
	coordinator    ports.Coordinator
	eventBus       *services.EventBus
	traces         ports.TraceStore
	agents         ports.AgentProvisioner // nil when container provisioning is unavailable
	coordinatorURL string
}

func NewServer(
	logger *slog.Logger,
	dispatcher *services.Dispatcher,
	coordinator ports.Coordinator,
	eventBus *services.EventBus,
	traces ports.TraceStore,
	agents ports.AgentProvisioner,
	coordinatorURL string,
) *Server {
	return &Server{
		logger:         logger,
		dispatcher:     dispatcher,
		coordinator:    coordinator,
		eventBus:       eventBus,
		traces:         traces,
		agents:         agents,
		coordinatorURL: coordinatorURL,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", s.handleHealth)

	// Submissions API
	mux.HandleFunc("POST /v1/submissions", s.handleCreateSubmission)
	mux.HandleFunc("GET /v1/submissions/{id}", s.handleGetSubmission)
	mux.HandleFunc("GET /v1/submissions/{id}/events", s.handleSubmissionSSE)

	// Direct coordinator passthrough
	mux.HandleFunc("GET /v1/tasks/{id}/status", s.handleTaskStatus)
	mux.HandleFunc("POST /v1/tasks/{id}/stop", s.handleStopTask)
	mux.HandleFunc("GET /v1/wordlists", s.handleListWordlists)

	// Agents API
	mux.HandleFunc("POST /v1/agents", s.handleEnrollAgent)
	mux.HandleFunc("GET /v1/agents", s.handleListAgents)
	mux.HandleFunc("DELETE /v1/agents/{id}", s.handleRemoveAgent)

	// Tracing API
	mux.HandleFunc("GET /v1/traces", s.handleListTraces)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSubmissionRequest struct {
	RequesterID string `json:"requester_id"`
	Algorithm   string `json:"algorithm"`
	Hash        string `json:"hash"`
	Wordlist    string `json:"wordlist,omitempty"`
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.RequesterID = strings.TrimSpace(req.RequesterID)
	req.Algorithm = strings.ToLower(strings.TrimSpace(req.Algorithm))
	req.Hash = strings.TrimSpace(req.Hash)
	if req.RequesterID == "" || req.Algorithm == "" || req.Hash == "" {
		writeError(w, http.StatusBadRequest, "requester_id, algorithm and hash are required")
		return
	}
	if err := ValidateSubmission(req.Algorithm, req.Hash); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.dispatcher.Submit(domain.SubmissionRequest{
		RequesterID: req.RequesterID,
		Algorithm:   req.Algorithm,
		Hash:        req.Hash,
		Wordlist:    req.Wordlist,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"submission_id": id,
		"status":        domain.SubmissionQueued,
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id := domain.SubmissionID(r.PathValue("id"))
	sub, err := s.dispatcher.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrSubmissionNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	status, err := s.coordinator.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"status":  status,
	})
}

func (s *Server) handleStopTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := s.coordinator.StopTask(r.Context(), taskID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.logger.Info("task stop requested", "task_id", taskID)
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"stopped": true,
	})
}

func (s *Server) handleListWordlists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.coordinator.ListWordlists(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wordlists": lists,
		"count":     len(lists),
	})
}

type enrollAgentRequest struct {
	Provision bool `json:"provision,omitempty"`
}

func (s *Server) handleEnrollAgent(w http.ResponseWriter, r *http.Request) {
	var req enrollAgentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	voucher, err := s.coordinator.CreateVoucher(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := map[string]any{
		"voucher":      voucher,
		"instructions": enrollInstructions(s.coordinatorURL, voucher),
	}

	if req.Provision {
		if s.agents == nil {
			resp["provisioned"] = false
			resp["provision_error"] = "container provisioning is not available, enroll the agent manually"
		} else {
			agent, err := s.agents.Provision(r.Context(), s.coordinatorURL, voucher)
			if err != nil {
				s.logger.Error("agent provisioning failed", "error", err)
				resp["provisioned"] = false
				resp["provision_error"] = err.Error()
			} else {
				resp["provisioned"] = true
				resp["agent"] = agent
			}
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		writeJSON(w, http.StatusOK, map[string]any{"agents": []domain.Agent{}, "count": 0})
		return
	}
	agents, err := s.agents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleRemoveAgent(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		writeError(w, http.StatusNotFound, "container provisioning is not available")
		return
	}
	id := r.PathValue("id")
	if err := s.agents.Remove(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent_id": id, "removed": true})
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
			if limit > 500 {
				limit = 500
			}
		}
	}
	traces, err := s.traces.ListCallTraces(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"traces": traces,
		"count":  len(traces),
	})
}

// enrollInstructions tells an operator how to attach a cracking agent by hand
// when automatic container provisioning is off or failed.
func enrollInstructions(serverURL, voucher string) string {
	return fmt.Sprintf(
		"Run the Hashtopolis agent pointed at %s and register it with voucher %s.",
		serverURL, voucher,
	)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
