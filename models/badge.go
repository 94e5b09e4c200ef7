package models

import (
	"time"
)

// Badge rarities
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Badge is an achievement artifact. System badges carry a CriteriaKey and
// are evaluated automatically after every check-in; organizer badges are
// pinned to a specific event (EventID set, CriteriaKey empty) and never
// auto-evaluated.
type Badge struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	EventID     *string `json:"event_id,omitempty" gorm:"index"` // nil for system badges
	Title       string  `json:"title" gorm:"not null"`
	Description string  `json:"description"`
	IconURL     string  `json:"icon_url" gorm:"type:text"`
	Category    string  `json:"category"`
	Rarity      string  `json:"rarity" gorm:"type:varchar(16);default:'common'"`
	CriteriaKey string  `json:"criteria_key,omitempty" gorm:"index"` // e.g. "first_checkin"

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserBadge: awarded instance. The composite unique index makes awarding
// idempotent under concurrent evaluations.
type UserBadge struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	ExternalUserID string    `json:"external_user_id" gorm:"not null;uniqueIndex:idx_user_badge"`
	BadgeID        string    `json:"badge_id" gorm:"not null;uniqueIndex:idx_user_badge"`
	AwardedAt      time.Time `json:"awarded_at" gorm:"autoCreateTime"`

	Badge Badge `json:"badge,omitempty" gorm:"foreignKey:BadgeID"`
}

// Seed system badges (loaded on startup if missing)
var SystemBadges = []Badge{
	{
		Title:       "First Finish",
		Description: "Checked in to your first event",
		Rarity:      RarityCommon,
		CriteriaKey: "first_checkin",
	},
	{
		Title:       "Regular",
		Description: "Checked in to 5 events",
		Rarity:      RarityRare,
		CriteriaKey: "checkins_5",
	},
	{
		Title:       "Veteran",
		Description: "Checked in to 10 events",
		Rarity:      RarityEpic,
		CriteriaKey: "checkins_10",
	},
	{
		Title:       "Trail Blazer",
		Description: "Finished 3 trail events",
		Rarity:      RarityRare,
		Category:    "trail",
		CriteriaKey: "trail_3",
	},
	{
		Title:       "Road Warrior",
		Description: "Finished 3 road events",
		Rarity:      RarityRare,
		Category:    "road",
		CriteriaKey: "road_3",
	},
}
