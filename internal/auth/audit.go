package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	AuditSignup       = "signup"
	AuditVerifyEmail  = "verify_email"
	AuditLogin        = "login"
	AuditLoginFailed  = "login_failed"
	AuditRefresh      = "refresh"
	AuditPasswordSet  = "password_reset"
	AuditOAuthLogin   = "oauth_login"
	AuditLogout       = "logout"
	defaultAuditLimit = 200
)

type AuditEvent struct {
	EventType string                 `json:"eventType"`
	UserID    string                 `json:"userId,omitempty"`
	IP        string                 `json:"ip"`
	UserAgent string                 `json:"userAgent"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// AuditLogger appends events to a capped Redis list per user.
type AuditLogger struct {
	Redis  *redis.Client
	MaxLen int64
}

func auditKey(userID string) string {
	if userID == "" {
		return "audit"
	}
	return "audit:" + userID
}

func (a *AuditLogger) Log(ctx context.Context, e AuditEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	maxLen := a.MaxLen
	if maxLen <= 0 {
		maxLen = defaultAuditLimit
	}

	key := auditKey(e.UserID)
	pipe := a.Redis.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxLen, -1)

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n events for the user, newest last.
func (a *AuditLogger) Recent(ctx context.Context, userID string, n int64) ([]AuditEvent, error) {
	raw, err := a.Redis.LRange(ctx, auditKey(userID), -n, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]AuditEvent, 0, len(raw))
	for _, item := range raw {
		var e AuditEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
