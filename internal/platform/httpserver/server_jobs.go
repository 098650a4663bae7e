package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	jobmonitorerrors "ygbackend/contexts/internal-ops/job-monitor-service/domain/errors"
	jobmonitorhttp "ygbackend/contexts/internal-ops/job-monitor-service/transport/http"
)

// registerJobRoutes is mounted under /v1/admin/jobs behind requireAdmin.
func (s *Server) registerJobRoutes(r chi.Router) {
	r.Get("/queues", s.handleListQueueHealth)
	r.Post("/queues/snapshots", s.handleRecordQueueSnapshot)
	r.Get("/queues/{queue}", s.handleGetQueue)
	r.Post("/queues/{queue}/scaling", s.handleRecommendScaling)
	r.Get("/queues/{queue}/timeout", s.handleGetQueueTimeout)
	r.Get("/runs", s.handleListJobRuns)
	r.Post("/runs", s.handleRecordJobRun)
	r.Get("/workers", s.handleListWorkers)
	r.Post("/workers/heartbeat", s.handleWorkerHeartbeat)
	r.Get("/policies", s.handleListQueuePolicies)
	r.Get("/policies/{queue}", s.handleGetQueuePolicy)
	r.Put("/policies/{queue}", s.handleUpsertQueuePolicy)
}

func (s *Server) handleListQueueHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.ListQueueHealthHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordQueueSnapshot(w http.ResponseWriter, r *http.Request) {
	var req jobmonitorhttp.RecordSnapshotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.JobMonitor.Handler.RecordSnapshotHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.GetQueueHandler(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecommendScaling(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.RecommendScalingHandler(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetQueueTimeout(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.GetTimeoutHandler(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	query := r.URL.Query()
	resp, err := s.modules.JobMonitor.Handler.ListJobRunsHandler(r.Context(), jobmonitorhttp.ListJobRunsRequest{
		Queue:  query.Get("queue"),
		Status: query.Get("status"),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordJobRun(w http.ResponseWriter, r *http.Request) {
	var req jobmonitorhttp.RecordJobRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.JobMonitor.Handler.RecordJobRunHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.ListWorkersHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req jobmonitorhttp.HeartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.JobMonitor.Handler.HeartbeatHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListQueuePolicies(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.ListPoliciesHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetQueuePolicy(w http.ResponseWriter, r *http.Request) {
	resp, err := s.modules.JobMonitor.Handler.GetPolicyHandler(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsertQueuePolicy(w http.ResponseWriter, r *http.Request) {
	var req jobmonitorhttp.QueuePolicyDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.modules.JobMonitor.Handler.UpsertPolicyHandler(r.Context(), chi.URLParam(r, "queue"), req)
	if err != nil {
		s.writeDomainError(w, r, err, jobMonitorErrorStatus)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func jobMonitorErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, jobmonitorerrors.ErrInvalidSnapshot):
		return http.StatusBadRequest, "invalid_snapshot", true
	case errors.Is(err, jobmonitorerrors.ErrInvalidPolicy):
		return http.StatusBadRequest, "invalid_policy", true
	case errors.Is(err, jobmonitorerrors.ErrInvalidJobRun):
		return http.StatusBadRequest, "invalid_job_run", true
	case errors.Is(err, jobmonitorerrors.ErrInvalidHeartbeat):
		return http.StatusBadRequest, "invalid_heartbeat", true
	case errors.Is(err, jobmonitorerrors.ErrQueueNotFound):
		return http.StatusNotFound, "queue_not_found", true
	case errors.Is(err, jobmonitorerrors.ErrWorkerNotFound):
		return http.StatusNotFound, "worker_not_found", true
	default:
		return 0, "", false
	}
}
