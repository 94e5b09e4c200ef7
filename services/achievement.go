package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"race-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserHistory is a point-in-time view of everything the criteria read.
// Evaluation is a pure function of this snapshot — no side counters — so
// re-running after any check-in is always safe.
type UserHistory struct {
	ExternalUserID  string
	CheckIns        []models.CheckIn
	Events          map[string]models.Event // events checked in to, by id
	CategoryCounts  map[string]int          // attended events per category
	KnownCategories []string                // every category any published event has
	User            *models.EventUser       // profile mirror, nil if not synced yet
}

// AttendedCount returns how many distinct events the user checked in to.
func (h *UserHistory) AttendedCount() int { return len(h.CheckIns) }

// badgePredicates maps a system badge's criteria_key to its predicate.
var badgePredicates = map[string]func(h *UserHistory) bool{
	"first_checkin": func(h *UserHistory) bool { return h.AttendedCount() >= 1 },
	"checkins_5":    func(h *UserHistory) bool { return h.AttendedCount() >= 5 },
	"checkins_10":   func(h *UserHistory) bool { return h.AttendedCount() >= 10 },
	"trail_3":       func(h *UserHistory) bool { return h.CategoryCounts["trail"] >= 3 },
	"road_3":        func(h *UserHistory) bool { return h.CategoryCounts["road"] >= 3 },
}

// Award describes a freshly inserted achievement, for notification.
type Award struct {
	ExternalUserID string `json:"external_user_id"`
	Kind           string `json:"kind"` // "badge" | "border"
	ArtifactID     string `json:"artifact_id"`
	Title          string `json:"title"`
}

// AchievementService evaluates badge/border criteria against a user's
// accumulated history after each check-in and persists awards exactly
// once. Duplicate evaluations resolve through the (user, artifact) unique
// indexes as silent no-ops.
type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// EnsureSystemBadges seeds the criteria-driven badges on startup.
func (s *AchievementService) EnsureSystemBadges() error {
	for _, b := range models.SystemBadges {
		badge := b
		badge.ID = uuid.NewString()
		if err := s.DB.Where("criteria_key = ?", b.CriteriaKey).
			FirstOrCreate(&badge).Error; err != nil {
			return fmt.Errorf("failed to seed badge %q: %w", b.CriteriaKey, err)
		}
	}
	return nil
}

// LoadHistory assembles the evaluation snapshot for one user.
func (s *AchievementService) LoadHistory(externalUserID string) (*UserHistory, error) {
	h := &UserHistory{
		ExternalUserID: externalUserID,
		Events:         map[string]models.Event{},
		CategoryCounts: map[string]int{},
	}

	if err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("checked_in_at ASC").
		Find(&h.CheckIns).Error; err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}

	if len(h.CheckIns) > 0 {
		ids := make([]string, 0, len(h.CheckIns))
		for _, ci := range h.CheckIns {
			ids = append(ids, ci.EventID)
		}
		var events []models.Event
		if err := s.DB.Where("id IN ?", ids).Find(&events).Error; err != nil {
			return nil, fmt.Errorf("failed to load attended events: %w", err)
		}
		for _, ev := range events {
			h.Events[ev.ID] = ev
			if ev.Category != "" {
				h.CategoryCounts[ev.Category]++
			}
		}
	}

	if err := s.DB.Model(&models.Event{}).
		Where("status <> ?", models.EventStatusDraft).
		Where("category <> ''").
		Distinct().
		Pluck("category", &h.KnownCategories).Error; err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	var user models.EventUser
	if err := s.DB.First(&user, "external_user_id = ?", externalUserID).Error; err == nil {
		h.User = &user
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return h, nil
}

// EvaluateUser re-runs every system badge and border criterion for one
// user and returns only the artifacts inserted by this call.
func (s *AchievementService) EvaluateUser(externalUserID string) ([]Award, error) {
	h, err := s.LoadHistory(externalUserID)
	if err != nil {
		return nil, err
	}

	var awards []Award

	var badges []models.Badge
	if err := s.DB.Where("criteria_key <> ''").Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("failed to load system badges: %w", err)
	}
	for _, b := range badges {
		pred, ok := badgePredicates[b.CriteriaKey]
		if !ok {
			log.Printf("⚠️ [ACHIEVEMENT] no predicate for badge criteria %q, skipping", b.CriteriaKey)
			continue
		}
		if !pred(h) {
			continue
		}
		inserted, err := s.awardBadge(externalUserID, b.ID)
		if err != nil {
			return nil, err
		}
		if inserted {
			awards = append(awards, Award{
				ExternalUserID: externalUserID, Kind: "badge",
				ArtifactID: b.ID, Title: b.Title,
			})
		}
	}

	var borders []models.Border
	if err := s.DB.Find(&borders).Error; err != nil {
		return nil, fmt.Errorf("failed to load borders: %w", err)
	}
	for _, b := range borders {
		if !s.meetsBorderCriteria(h, &b) {
			continue
		}
		inserted, err := s.awardBorder(externalUserID, b.ID)
		if err != nil {
			return nil, err
		}
		if inserted {
			awards = append(awards, Award{
				ExternalUserID: externalUserID, Kind: "border",
				ArtifactID: b.ID, Title: b.Name,
			})
		}
	}

	return awards, nil
}

func (s *AchievementService) meetsBorderCriteria(h *UserHistory, b *models.Border) bool {
	c := b.Criteria
	switch b.CriteriaType {
	case models.BorderCriteriaEventCount:
		return c.Count > 0 && h.AttendedCount() >= c.Count

	case models.BorderCriteriaEventTypeCount:
		return c.Count > 0 && len(h.CategoryCounts) >= c.Count

	case models.BorderCriteriaAllActivities:
		if len(h.KnownCategories) == 0 {
			return false
		}
		for _, cat := range h.KnownCategories {
			if h.CategoryCounts[cat] == 0 {
				return false
			}
		}
		return true

	case models.BorderCriteriaMountainRegion:
		want := c.Count
		if want <= 0 {
			want = 1
		}
		n := 0
		for _, ev := range h.Events {
			if ev.IsMountain && (c.Region == "" || ev.Region == c.Region) {
				n++
			}
		}
		return n >= want

	case models.BorderCriteriaOrganizerCount:
		if c.OrganizerID == "" || c.Count <= 0 {
			return false
		}
		n := 0
		for _, ci := range h.CheckIns {
			if ev, ok := h.Events[ci.EventID]; ok && ev.OrganizerID == c.OrganizerID {
				n++
			}
		}
		return n >= c.Count

	case models.BorderCriteriaSignupDate:
		if h.User == nil || c.MinAccountDays <= 0 {
			return false
		}
		return time.Since(h.User.SignedUpAt) >= time.Duration(c.MinAccountDays)*24*time.Hour
	}

	log.Printf("⚠️ [ACHIEVEMENT] unknown border criteria type %q", b.CriteriaType)
	return false
}

// awardBadge inserts the (user, badge) pair if absent. A duplicate-key
// conflict from a racing evaluation is a silent no-op.
func (s *AchievementService) awardBadge(externalUserID, badgeID string) (bool, error) {
	ub := models.UserBadge{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		BadgeID:        badgeID,
	}
	var n int64
	s.DB.Model(&models.UserBadge{}).
		Where("external_user_id = ? AND badge_id = ?", externalUserID, badgeID).
		Count(&n)
	if n > 0 {
		return false, nil
	}
	if err := s.DB.Create(&ub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	log.Printf("🎖️ Badge awarded: %s → %s", badgeID, externalUserID)
	return true, nil
}

func (s *AchievementService) awardBorder(externalUserID, borderID string) (bool, error) {
	ub := models.UserBorder{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		BorderID:       borderID,
	}
	var n int64
	s.DB.Model(&models.UserBorder{}).
		Where("external_user_id = ? AND border_id = ?", externalUserID, borderID).
		Count(&n)
	if n > 0 {
		return false, nil
	}
	if err := s.DB.Create(&ub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("failed to award border: %w", err)
	}
	log.Printf("🖼️ Border awarded: %s → %s", borderID, externalUserID)
	return true, nil
}

// SetActiveBorder marks one awarded border as the user's displayed frame
// and clears any previous selection.
func (s *AchievementService) SetActiveBorder(externalUserID, borderID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserBorder{}).
			Where("external_user_id = ? AND border_id = ?", externalUserID, borderID).
			Update("is_active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.UserBorder{}).
			Where("external_user_id = ? AND border_id <> ?", externalUserID, borderID).
			Update("is_active", false).Error
	})
}

// --- Fiber endpoints ---

func (s *AchievementService) GetMyBadgesEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var userBadges []models.UserBadge
	if err := s.DB.Preload("Badge").
		Where("external_user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&userBadges).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to get badges"})
	}
	return c.JSON(userBadges)
}

func (s *AchievementService) GetMyBordersEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var userBorders []models.UserBorder
	if err := s.DB.Preload("Border").
		Where("external_user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&userBorders).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to get borders"})
	}
	return c.JSON(userBorders)
}

func (s *AchievementService) ActivateBorderEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := s.SetActiveBorder(userID, c.Params("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "border not awarded to user"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to activate border"})
	}
	return c.JSON(fiber.Map{"message": "border activated"})
}
