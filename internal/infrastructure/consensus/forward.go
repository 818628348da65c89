package consensus

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	applyPath   = "/v1/raft/apply"
	tokenHeader = "X-Raft-Token"
)

// ErrNoLeader means no leader could take the command right now.
var ErrNoLeader = errors.New("raft leader unavailable")

type applyResponse struct {
	Result   bool   `json:"result"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
	LeaderID string `json:"leaderId,omitempty"`
}

// Handler serves claim commands forwarded by followers. Only the leader
// applies them; other nodes answer 409 NOT_LEADER.
func (n *Node) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(applyPath, n.serveApply)
	return r
}

func (n *Node) serveApply(w http.ResponseWriter, r *http.Request) {
	if n.rpcToken != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(tokenHeader)), []byte(n.rpcToken)) != 1 {
		respondJSON(w, http.StatusUnauthorized, applyResponse{Error: "UNAUTHORIZED", Message: "invalid raft token"})
		return
	}
	var cmd command
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		respondJSON(w, http.StatusBadRequest, applyResponse{Error: "INVALID_PARAM", Message: err.Error()})
		return
	}
	if err := cmd.validate(); err != nil {
		respondJSON(w, http.StatusBadRequest, applyResponse{Error: "INVALID_PARAM", Message: err.Error()})
		return
	}
	if !n.IsLeader() {
		respondJSON(w, http.StatusConflict, applyResponse{Error: "NOT_LEADER", LeaderID: n.LeaderID()})
		return
	}
	resp, err := n.apply(r.Context(), cmd)
	if err != nil {
		if isLeadershipErr(err) {
			respondJSON(w, http.StatusConflict, applyResponse{Error: "NOT_LEADER", Message: err.Error(), LeaderID: n.LeaderID()})
			return
		}
		respondJSON(w, http.StatusInternalServerError, applyResponse{Error: "APPLY_FAILED", Message: err.Error()})
		return
	}
	ok, _ := resp.(bool)
	respondJSON(w, http.StatusOK, applyResponse{Result: ok})
}

// forward sends cmd to the leader's Handler. It does not retry: a leader
// change surfaces as ErrNoLeader and the caller moves on.
func (n *Node) forward(ctx context.Context, cmd command) (bool, error) {
	leaderID := n.LeaderID()
	if leaderID == "" || leaderID == n.id {
		return false, ErrNoLeader
	}
	base, ok := n.rpcPeers[leaderID]
	if !ok || strings.TrimSpace(base) == "" {
		return false, fmt.Errorf("%w: no rpc address for leader %s", ErrNoLeader, leaderID)
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, n.applyTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+applyPath, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.rpcToken != "" {
		req.Header.Set(tokenHeader, n.rpcToken)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("forward to leader %s: %w", leaderID, err)
	}
	defer resp.Body.Close()

	var out applyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("forward to leader %s: decode response: %w", leaderID, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return out.Result, nil
	case http.StatusConflict:
		return false, fmt.Errorf("%w: %s is no longer leader", ErrNoLeader, leaderID)
	default:
		return false, fmt.Errorf("forward to leader %s: %d %s: %s", leaderID, resp.StatusCode, out.Error, out.Message)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
