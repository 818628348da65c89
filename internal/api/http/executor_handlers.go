package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

type createExecutorRequest struct {
	ExecutorID         string                       `json:"executorId"`
	Name               string                       `json:"name"`
	Address            string                       `json:"address"`
	Port               int                          `json:"port"`
	BasePath           string                       `json:"basePath"`
	ServiceDefinitions []executor.ServiceDefinition `json:"serviceDefinitions"`
}

func (s *Server) createExecutor(w http.ResponseWriter, r *http.Request) {
	var req createExecutorRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	model := &executor.Executor{
		ExecutorID:         req.ExecutorID,
		Name:               req.Name,
		Address:            req.Address,
		Port:               req.Port,
		BasePath:           req.BasePath,
		ServiceDefinitions: req.ServiceDefinitions,
	}
	if err := s.executorSvc.Create(contextFromRequest(r), model); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, model)
}

func (s *Server) listExecutors(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 100, 500)
	execs, err := s.executorSvc.List(contextFromRequest(r), limit, offset)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	if execs == nil {
		execs = []*executor.Executor{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"executors": execs})
}

func (s *Server) getExecutor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executorId")
	exec, err := s.executorSvc.Get(contextFromRequest(r), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

func (s *Server) deleteExecutor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executorId")
	if err := s.executorSvc.Delete(contextFromRequest(r), id); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) releaseExecutor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executorId")
	if err := s.executorSvc.Release(contextFromRequest(r), id); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"executorId": id, "locked": false})
}
