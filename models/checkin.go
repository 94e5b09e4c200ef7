package models

import (
	"fmt"
	"time"
)

// Check-in methods
const (
	CheckInMethodScan   = "scan"
	CheckInMethodManual = "manual"
)

// CheckIn is the durable record of a principal's confirmed attendance.
// Exactly one of ExternalUserID / CompanionID is set; PrincipalKey is the
// denormalized form carrying the (event, principal) unique constraint so
// two near-simultaneous scans can only ever insert one row.
type CheckIn struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	EventID        string  `json:"event_id" gorm:"not null;uniqueIndex:idx_event_principal"`
	PrincipalKey   string  `json:"-" gorm:"not null;uniqueIndex:idx_event_principal"`
	ExternalUserID *string `json:"external_user_id,omitempty" gorm:"index"`
	CompanionID    *string `json:"companion_id,omitempty" gorm:"index"`

	Method      string    `json:"method" gorm:"type:varchar(8);default:'scan'"`
	CheckedInAt time.Time `json:"checked_in_at" gorm:"autoCreateTime"`
}

// UserPrincipalKey returns the PrincipalKey value for an account holder.
func UserPrincipalKey(userID string) string {
	return fmt.Sprintf("u:%s", userID)
}

// CompanionPrincipalKey returns the PrincipalKey value for a companion.
func CompanionPrincipalKey(companionID string) string {
	return fmt.Sprintf("c:%s", companionID)
}
