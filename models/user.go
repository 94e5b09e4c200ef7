package models

import (
	"time"

	"gorm.io/gorm"
)

// EventUser is a local snapshot of user data needed for bookings and
// achievement evaluation (the signup_date border criterion reads
// SignedUpAt). Owned solely by this service; populated by the sync worker
// from the profile service.
type EventUser struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	ExternalUserID string     `json:"external_user_id" gorm:"uniqueIndex;not null"` // profile service UUID
	Username       string     `json:"username" gorm:"index;not null"`
	Email          string     `json:"email,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	SignedUpAt     time.Time  `json:"signed_up_at"` // account creation at the profile service
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	IsBanned       bool       `json:"is_banned" gorm:"default:false"` // local booking ban

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
