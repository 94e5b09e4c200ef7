package models

import (
	"time"

	"gorm.io/gorm"
)

// Event statuses
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCompleted = "completed"
)

// Event is a capacity-limited race event. Capacity accounting lives on the
// denormalized Reserved counter (see services.CapacityService): when the
// event defines distance tiers, each tier carries its own counter and the
// event-level counter is unused for bookings against a tier.
type Event struct {
	ID          string `json:"id" gorm:"primaryKey"`
	OrganizerID string `json:"organizer_id" gorm:"index;not null"`
	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"index"` // e.g. "trail", "road", "ultra", "fun_run"
	Region      string `json:"region" gorm:"index"`
	IsMountain  bool   `json:"is_mountain" gorm:"default:false"`

	Capacity int     `json:"capacity" gorm:"default:0"` // 0 = unlimited
	Reserved int     `json:"reserved" gorm:"default:0"`
	Price    float64 `json:"price" gorm:"default:0"`

	Status       string     `json:"status" gorm:"type:varchar(16);default:'draft'"`
	StartTime    time.Time  `json:"start_time" gorm:"not null"`
	EndTime      time.Time  `json:"end_time"`
	MainPhotoURL string     `json:"main_photo_url"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Tiers []DistanceTier `json:"tiers,omitempty" gorm:"foreignKey:EventID"`

	// Calculated, not stored
	AvailableSlots int64 `json:"available_slots,omitempty" gorm:"-"`

	Timestamps
}

// DistanceTier subdivides an event's capacity (e.g. 5K vs 21K) with its
// own price and its own reserved counter.
type DistanceTier struct {
	ID       string  `json:"id" gorm:"primaryKey"`
	EventID  string  `json:"event_id" gorm:"index;not null"`
	Name     string  `json:"name" gorm:"not null"`
	Capacity int     `json:"capacity" gorm:"default:0"` // 0 = unlimited
	Reserved int     `json:"reserved" gorm:"default:0"`
	Price    float64 `json:"price" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
