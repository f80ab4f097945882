package server

import (
	"log"
	"net/http"

	"meetmax/internal/auth"
)

func (s *Server) audit(r *http.Request, eventType, userID string, meta map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	if loc := deriveLocation(r); loc != "" {
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["location"] = loc
	}
	err := s.Audit.Log(r.Context(), auth.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
		Meta:      meta,
	})
	if err != nil {
		log.Printf("audit: log %s failed: %v", eventType, err)
	}
}
