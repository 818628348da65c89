package consensus

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/raft"
)

type op string

const (
	opClaim   op = "claim"
	opRelease op = "release"
)

type command struct {
	Op         op            `json:"op"`
	ExecutorID string        `json:"executor_id"`
	Owner      string        `json:"owner"`
	TTL        time.Duration `json:"ttl,omitempty"`
}

func (c command) validate() error {
	if c.Op != opClaim && c.Op != opRelease {
		return fmt.Errorf("unknown op: %s", c.Op)
	}
	if c.ExecutorID == "" || c.Owner == "" {
		return fmt.Errorf("executor_id and owner are required")
	}
	return nil
}

// Claim is one replicated claim entry. A zero ExpiresAt never expires.
type Claim struct {
	Owner     string    `json:"owner"`
	ClaimedAt time.Time `json:"claimed_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (c Claim) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ClaimTable is the deterministic state machine behind the raft log.
type ClaimTable struct {
	mu     sync.RWMutex
	claims map[string]Claim
}

func NewClaimTable() *ClaimTable {
	return &ClaimTable{claims: make(map[string]Claim)}
}

// Claim records owner for executorID unless a claim is still live at the
// given time. at must come from the log entry so every replica agrees.
func (t *ClaimTable) Claim(executorID, owner string, at time.Time, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.claims[executorID]; ok && !c.expired(at) {
		return false
	}
	entry := Claim{Owner: owner, ClaimedAt: at}
	if ttl > 0 && !at.IsZero() {
		entry.ExpiresAt = at.Add(ttl)
	}
	t.claims[executorID] = entry
	return true
}

// Release drops the claim when owner holds it.
func (t *ClaimTable) Release(executorID, owner string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.claims[executorID]
	if !ok || c.Owner != owner {
		return false
	}
	delete(t.claims, executorID)
	return true
}

// Has reports whether a live claim exists at now.
func (t *ClaimTable) Has(executorID string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.claims[executorID]
	return ok && !c.expired(now)
}

func (t *ClaimTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.claims)
}

func (t *ClaimTable) Marshal() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return json.Marshal(t.claims)
}

func (t *ClaimTable) Unmarshal(data []byte) error {
	claims := make(map[string]Claim)
	if err := json.Unmarshal(data, &claims); err != nil {
		return err
	}
	t.mu.Lock()
	t.claims = claims
	t.mu.Unlock()
	return nil
}

// fsm wires raft log entries into the claim table.
type fsm struct {
	table *ClaimTable
}

func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	switch cmd.Op {
	case opClaim:
		return f.table.Claim(cmd.ExecutorID, cmd.Owner, log.AppendedAt, cmd.TTL)
	case opRelease:
		return f.table.Release(cmd.ExecutorID, cmd.Owner)
	default:
		return fmt.Errorf("unknown op: %s", cmd.Op)
	}
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	data, err := f.table.Marshal()
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{data: data}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return f.table.Unmarshal(data)
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
