package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts attempts in fixed Redis windows.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts = 5
	loginAttemptTTL  = 10 * time.Minute
	loginBanTTL      = 1 * time.Hour
	EmailCooldown    = 60 * time.Second
)

type window struct {
	prefix string
	max    int64
	ttl    time.Duration
}

var (
	verifyWindow        = window{prefix: "verify_attempts:", max: 5, ttl: 10 * time.Minute}
	resetEmailWindow    = window{prefix: "reset_attempts:", max: 5, ttl: 15 * time.Minute}
	resetIPWindow       = window{prefix: "reset_attempts_ip:", max: 5, ttl: 15 * time.Minute}
	registerIPWindow    = window{prefix: "register_attempts_ip:", max: 10, ttl: 30 * time.Minute}
	registerEmailWindow = window{prefix: "register_attempts_email:", max: 3, ttl: 30 * time.Minute}
)

func (r *RateLimiter) loginAttemptKey(ip string) string {
	return "login_attempts:" + ip
}

func (r *RateLimiter) loginBanKey(ip string) string {
	return "login_ban:" + ip
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	exists, _ := r.Redis.Exists(ctx, r.loginBanKey(ip)).Result()
	return exists == 1
}

// RegisterLoginFailure bans the IP for an hour once it reaches the limit.
func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	key := r.loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, r.loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.Redis.Del(ctx, r.loginAttemptKey(ip))
}

func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, email string) (bool, time.Duration, error) {
	return r.hit(ctx, verifyWindow.key(email))
}

func (r *RateLimiter) ResetVerify(ctx context.Context, email string) {
	r.Redis.Del(ctx, verifyWindow.prefix+strings.ToLower(email))
}

func (r *RateLimiter) RegisterResetAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.hit(ctx, resetEmailWindow.key(email), resetIPWindow.key(ip))
}

func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.hit(ctx, registerIPWindow.key(ip), registerEmailWindow.key(email))
}

func (r *RateLimiter) CooldownTTL(ctx context.Context, key string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetCooldown(ctx context.Context, key string, ttl time.Duration) {
	r.Redis.Set(ctx, key, "1", ttl)
}

type windowKey struct {
	window
	name string
}

func (w window) key(subject string) windowKey {
	if subject == "" {
		return windowKey{window: w}
	}
	return windowKey{window: w, name: w.prefix + strings.ToLower(subject)}
}

// hit increments every key and reports whether any reached its limit,
// along with the longest remaining window.
func (r *RateLimiter) hit(ctx context.Context, keys ...windowKey) (bool, time.Duration, error) {
	locked := false
	var ttlMax time.Duration

	for _, k := range keys {
		if k.name == "" {
			continue
		}
		attempts, err := r.Redis.Incr(ctx, k.name).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, k.name, k.ttl)
		}
		if attempts >= k.max {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, k.name).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}

	return locked, ttlMax, nil
}
