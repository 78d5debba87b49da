package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/khanghh/plantgate/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	EventTypeTokenIssued    = "token_issued"
	EventTypeTokenRefreshed = "token_refreshed"
	EventTypeLoginFailure   = "login_failure"
	EventTypeRefreshFailure = "refresh_failure"
)

type TokenRecord struct {
	UserID    uint
	Email     string
	Refresh   bool
	Success   bool
	IP        string
	UserAgent string
	Reason    string
}

func eventType(record TokenRecord) string {
	switch {
	case record.Refresh && record.Success:
		return EventTypeTokenRefreshed
	case record.Refresh:
		return EventTypeRefreshFailure
	case record.Success:
		return EventTypeTokenIssued
	default:
		return EventTypeLoginFailure
	}
}

// RecordToken stores the outcome of a token request. It is a no-op until
// Initialize is called.
func RecordToken(ctx context.Context, record TokenRecord) {
	if auditRepo == nil {
		return
	}
	event := &model.AuditEvent{
		UserID:    record.UserID,
		Email:     record.Email,
		EventType: eventType(record),
		IP:        record.IP,
		UserAgent: record.UserAgent,
		Reason:    record.Reason,
	}
	if err := auditRepo.RecordEvent(ctx, event); err != nil {
		slog.Error("Failed to record audit event", "eventType", event.EventType, "email", record.Email, "error", err)
	}
}
