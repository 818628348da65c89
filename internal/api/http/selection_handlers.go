package httpapi

import (
	"net/http"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

type selectionRequest struct {
	ServiceDefinition string   `json:"serviceDefinition"`
	MinVersion        *int     `json:"minVersion"`
	MaxVersion        *int     `json:"maxVersion"`
	Exclusions        []string `json:"exclusions"`
}

func (s *Server) selectExecutor(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	q := executor.Query{
		ServiceDefinition: req.ServiceDefinition,
		MinVersion:        req.MinVersion,
		MaxVersion:        req.MaxVersion,
	}
	chosen, err := s.selector.Select(contextFromRequest(r), q, req.Exclusions)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	if chosen == nil {
		respondError(w, http.StatusNotFound, "NO_CANDIDATE", "no executor available for "+req.ServiceDefinition)
		return
	}
	respondJSON(w, http.StatusOK, chosen)
}
