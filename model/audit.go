package model

import "time"

type AuditEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"index;not null"`         // internal user id, 0 when the subject is unknown
	Email     string    `gorm:"size:256;not null;index"` // snapshot of the subject at event time
	EventType string    `gorm:"size:64;not null;index"`  // token_issued, token_refreshed, login_failure...
	Reason    string    `gorm:"size:512"`                // failure reason or context
	IP        string    `gorm:"size:45;not null"`        // IPv4/IPv6
	UserAgent string    `gorm:"size:512;not null"`       // user agent string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
