package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultClaimTTL = 30 * time.Second

// releaseScript deletes the claim only when this registry still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ClaimRegistry shares in-flight executor claims between selector replicas.
// Claims expire after ttl so a crashed replica can't wedge an executor.
type ClaimRegistry struct {
	client goredis.UniversalClient
	prefix string
	owner  string
	ttl    time.Duration
}

func NewClaimRegistry(client goredis.UniversalClient, prefix string, ttl time.Duration) *ClaimRegistry {
	if prefix == "" {
		prefix = "choreographer:claim:"
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &ClaimRegistry{
		client: client,
		prefix: prefix,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// NewClient builds a client from a redis:// URL.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func (r *ClaimRegistry) TryClaim(ctx context.Context, executorID string) (bool, error) {
	return r.client.SetNX(ctx, r.key(executorID), r.owner, r.ttl).Result()
}

func (r *ClaimRegistry) Release(ctx context.Context, executorID string) error {
	return releaseScript.Run(ctx, r.client, []string{r.key(executorID)}, r.owner).Err()
}

func (r *ClaimRegistry) IsClaimed(ctx context.Context, executorID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(executorID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ClaimRegistry) key(executorID string) string {
	return r.prefix + executorID
}
