package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// Config defines one Raft node of the claim cluster.
type Config struct {
	NodeID    string
	RaftAddr  string
	DataDir   string
	Bootstrap bool
	// Peers maps the other voters' node ids to raft addresses. Used only
	// when bootstrapping a fresh cluster.
	Peers map[string]string

	// RPCPeers maps node ids, this one included, to the base URL serving
	// Handler. Followers forward claim commands there.
	RPCPeers map[string]string
	RPCToken string

	// ClaimTTL expires claims that were never released. Zero disables expiry.
	ClaimTTL time.Duration

	SnapshotRetain int
	ApplyTimeout   time.Duration
	// Zero keeps the raft defaults.
	HeartbeatTimeout time.Duration
}

func (c Config) normalized() (Config, error) {
	c.NodeID = strings.TrimSpace(c.NodeID)
	c.RaftAddr = strings.TrimSpace(c.RaftAddr)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.NodeID == "" {
		return c, errors.New("node_id is required")
	}
	if c.RaftAddr == "" {
		return c, errors.New("raft_addr is required")
	}
	if c.SnapshotRetain <= 0 {
		c.SnapshotRetain = 2
	}
	if c.ApplyTimeout <= 0 {
		c.ApplyTimeout = 5 * time.Second
	}
	return c, nil
}

func (c Config) bootstrapConfiguration(local raft.ServerAddress) raft.Configuration {
	servers := []raft.Server{{ID: raft.ServerID(c.NodeID), Address: local}}
	ids := make([]string, 0, len(c.Peers))
	for id := range c.Peers {
		if id != c.NodeID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		servers = append(servers, raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(c.Peers[id])})
	}
	return raft.Configuration{Servers: servers}
}

func (c Config) raftConfig() *raft.Config {
	rc := raft.DefaultConfig()
	rc.LocalID = raft.ServerID(c.NodeID)
	if c.HeartbeatTimeout > 0 {
		rc.HeartbeatTimeout = c.HeartbeatTimeout
		rc.ElectionTimeout = c.HeartbeatTimeout
		rc.LeaderLeaseTimeout = c.HeartbeatTimeout
	}
	return rc
}

// Node replicates executor claims through Raft and implements the
// selector's claim registry. Followers forward commands to the leader.
type Node struct {
	id           string
	applyTimeout time.Duration
	claimTTL     time.Duration

	raft      *raft.Raft
	transport raft.Transport
	table     *ClaimTable

	rpcPeers   map[string]string
	rpcToken   string
	httpClient *http.Client
}

// NewNode creates a node persisted with bolt log stores and a TCP transport.
func NewNode(cfg Config) (*Node, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		return nil, errors.New("data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.bolt"))
	if err != nil {
		return nil, err
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.bolt"))
	if err != nil {
		return nil, err
	}
	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, cfg.SnapshotRetain, os.Stderr)
	if err != nil {
		return nil, err
	}
	transport, err := raft.NewTCPTransport(cfg.RaftAddr, nil, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, err
	}
	return newNode(cfg, logStore, stableStore, snapshotStore, transport)
}

// NewInmemNode creates a node that keeps its log in memory. Useful for a
// single-process deployment and for tests.
func NewInmemNode(cfg Config) (*Node, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	store := raft.NewInmemStore()
	_, transport := raft.NewInmemTransport(raft.ServerAddress(cfg.RaftAddr))
	return newNode(cfg, store, store, raft.NewInmemSnapshotStore(), transport)
}

func newNode(cfg Config, logs raft.LogStore, stable raft.StableStore, snaps raft.SnapshotStore, transport raft.Transport) (*Node, error) {
	table := NewClaimTable()
	r, err := raft.NewRaft(cfg.raftConfig(), &fsm{table: table}, logs, stable, snaps, transport)
	if err != nil {
		return nil, err
	}

	n := &Node{
		id:           cfg.NodeID,
		applyTimeout: cfg.ApplyTimeout,
		claimTTL:     cfg.ClaimTTL,
		raft:         r,
		transport:    transport,
		table:        table,
		rpcPeers:     cfg.RPCPeers,
		rpcToken:     cfg.RPCToken,
		httpClient:   &http.Client{},
	}

	if cfg.Bootstrap {
		hasState, err := raft.HasExistingState(logs, stable, snaps)
		if err != nil {
			return nil, err
		}
		if !hasState {
			future := r.BootstrapCluster(cfg.bootstrapConfiguration(transport.LocalAddr()))
			if err := future.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
				return nil, err
			}
		}
	}

	return n, nil
}

// TryClaim replicates a claim. It returns false when a live claim exists.
func (n *Node) TryClaim(ctx context.Context, executorID string) (bool, error) {
	return n.submit(ctx, command{Op: opClaim, ExecutorID: executorID, Owner: n.id, TTL: n.claimTTL})
}

func (n *Node) Release(ctx context.Context, executorID string) error {
	_, err := n.submit(ctx, command{Op: opRelease, ExecutorID: executorID, Owner: n.id})
	return err
}

// IsClaimed reads the local replica, which may lag the leader.
func (n *Node) IsClaimed(_ context.Context, executorID string) (bool, error) {
	return n.table.Has(executorID, time.Now()), nil
}

// submit applies cmd on the leader, locally when this node leads.
func (n *Node) submit(ctx context.Context, cmd command) (bool, error) {
	if n.IsLeader() {
		resp, err := n.apply(ctx, cmd)
		if err == nil {
			ok, _ := resp.(bool)
			return ok, nil
		}
		if !isLeadershipErr(err) {
			return false, err
		}
	}
	return n.forward(ctx, cmd)
}

func (n *Node) apply(ctx context.Context, cmd command) (interface{}, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	timeout := n.applyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, err
	}
	if applyErr, ok := future.Response().(error); ok && applyErr != nil {
		return nil, applyErr
	}
	return future.Response(), nil
}

// WaitForLeader waits until any leader is elected.
func (n *Node) WaitForLeader(ctx context.Context, pollInterval time.Duration) (string, error) {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		leader := strings.TrimSpace(string(n.raft.Leader()))
		if leader != "" {
			return leader, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (n *Node) IsLeader() bool { return n.raft.State() == raft.Leader }

// LeaderID returns the current leader's node id, empty when unknown.
func (n *Node) LeaderID() string {
	_, id := n.raft.LeaderWithID()
	return string(id)
}

func isLeadershipErr(err error) bool {
	return errors.Is(err, raft.ErrNotLeader) ||
		errors.Is(err, raft.ErrLeadershipLost) ||
		errors.Is(err, raft.ErrLeadershipTransferInProgress)
}

// Shutdown stops Raft and closes the transport.
func (n *Node) Shutdown() error {
	var shutdownErr error
	if n.raft != nil {
		if err := n.raft.Shutdown().Error(); err != nil {
			shutdownErr = err
		}
	}
	if c, ok := n.transport.(io.Closer); ok {
		if err := c.Close(); err != nil && shutdownErr == nil {
			shutdownErr = fmt.Errorf("close transport: %w", err)
		}
	}
	return shutdownErr
}
