package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/adminwatch/internal/config"
)

const keyAdminAction = "adminwatch:ratelimit:action:%s"

// Tokens are stored in thousandths so the refill survives Lua's integer replies.
// Returns {allowed, remaining_milli, retry_after_ms}.
const actionBucketScript = `
local rate_milli = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now_ms = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "milli", "at")
local milli = tonumber(state[1]) or capacity
local at = tonumber(state[2]) or now_ms
if now_ms > at then
  milli = math.min(capacity, milli + math.floor((now_ms - at) * rate_milli / 1000))
end

local allowed = 0
local retry_ms = 0
if milli >= 1000 then
  allowed = 1
  milli = milli - 1000
else
  retry_ms = math.ceil((1000 - milli) * 1000 / rate_milli)
end

redis.call("HSET", KEYS[1], "milli", milli, "at", now_ms)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, milli, retry_ms}
`

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// ActionLimiter throttles privileged admin actions per actor with a redis token
// bucket shared by every API process. A nil limiter allows everything.
type ActionLimiter struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
}

func NewActionLimiter(cfg config.Config, client *redis.Client) *ActionLimiter {
	if client == nil || !cfg.RateLimit.Enabled() {
		return nil
	}
	return &ActionLimiter{
		client: client,
		script: redis.NewScript(actionBucketScript),
		rate:   cfg.RateLimit.ActionRate,
		burst:  cfg.RateLimit.ActionBurst,
	}
}

func (l *ActionLimiter) Allow(ctx context.Context, actorID snowflake.ID) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}

	rateMilli := int64(math.Max(1, math.Round(l.rate*1000)))
	capacity := int64(l.burst) * 1000
	reply, err := l.script.Run(ctx, l.client,
		[]string{fmt.Sprintf(keyAdminAction, actorID.String())},
		rateMilli, capacity, l.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("action limiter: %w", err)
	}
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("action limiter: unexpected reply length %d", len(reply))
	}

	return Decision{
		Allowed:    reply[0] == 1,
		Remaining:  int(reply[1] / 1000),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// idleTTL keeps a bucket around for twice the time it needs to refill.
func (l *ActionLimiter) idleTTL() time.Duration {
	seconds := math.Ceil(float64(l.burst) / l.rate * 2)
	return time.Duration(math.Max(seconds, 1)) * time.Second
}
