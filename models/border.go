package models

import (
	"time"
)

// Border criteria types
const (
	BorderCriteriaEventCount     = "event_count"
	BorderCriteriaEventTypeCount = "event_type_count"
	BorderCriteriaAllActivities  = "all_activities"
	BorderCriteriaMountainRegion = "mountain_region"
	BorderCriteriaSignupDate     = "signup_date"
	BorderCriteriaOrganizerCount = "organizer_event_count"
)

// BorderCriteria is the payload interpreted per CriteriaType. Only the
// fields relevant to the type are read.
type BorderCriteria struct {
	Count          int    `json:"count,omitempty"`            // event_count, event_type_count, mountain_region, organizer_event_count
	Region         string `json:"region,omitempty"`           // mountain_region: geographic grouping tag
	OrganizerID    string `json:"organizer_id,omitempty"`     // organizer_event_count
	MinAccountDays int    `json:"min_account_days,omitempty"` // signup_date
}

// Border is a profile frame awarded automatically from participation
// history.
type Border struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"not null"`
	ImageURL     string         `json:"image_url" gorm:"type:text"`
	Tier         string         `json:"tier" gorm:"type:varchar(16);default:'common'"` // common, rare, epic, legendary
	CriteriaType string         `json:"criteria_type" gorm:"type:varchar(32);index;not null"`
	Criteria     BorderCriteria `json:"criteria" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserBorder: awarded instance, unique per (user, border). IsActive marks
// the single border the user displays; selection is a plain toggle, not
// part of the award invariants.
type UserBorder struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ExternalUserID string    `json:"external_user_id" gorm:"not null;uniqueIndex:idx_user_border"`
	BorderID       string    `json:"border_id" gorm:"not null;uniqueIndex:idx_user_border"`
	IsActive       bool      `json:"is_active" gorm:"default:false"`
	AwardedAt      time.Time `json:"awarded_at" gorm:"autoCreateTime"`

	Border Border `json:"border,omitempty" gorm:"foreignKey:BorderID"`
}
