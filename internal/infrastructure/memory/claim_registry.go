package memory

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ClaimRegistry keeps in-flight claims per executor id in a sharded concurrent map.
type ClaimRegistry struct {
	claims cmap.ConcurrentMap[string, time.Time]
}

func NewClaimRegistry() *ClaimRegistry {
	return &ClaimRegistry{claims: cmap.New[time.Time]()}
}

func (r *ClaimRegistry) TryClaim(_ context.Context, executorID string) (bool, error) {
	return r.claims.SetIfAbsent(executorID, time.Now().UTC()), nil
}

func (r *ClaimRegistry) Release(_ context.Context, executorID string) error {
	r.claims.Remove(executorID)
	return nil
}

func (r *ClaimRegistry) IsClaimed(_ context.Context, executorID string) (bool, error) {
	return r.claims.Has(executorID), nil
}

// Count returns the number of claims currently held.
func (r *ClaimRegistry) Count() int {
	return r.claims.Count()
}
