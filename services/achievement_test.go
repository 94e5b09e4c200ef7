package services

import (
	"testing"
	"time"

	"race-registration-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedBorder(t *testing.T, db *gorm.DB, name, criteriaType string, criteria models.BorderCriteria) *models.Border {
	t.Helper()

	b := &models.Border{
		ID:           uuid.NewString(),
		Name:         name,
		CriteriaType: criteriaType,
		Criteria:     criteria,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func seedUser(t *testing.T, db *gorm.DB, externalID string, signedUp time.Time) {
	t.Helper()

	require.NoError(t, db.Create(&models.EventUser{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
		SignedUpAt:     signedUp,
	}).Error)
}

func awardTitles(awards []Award) []string {
	titles := make([]string, 0, len(awards))
	for _, a := range awards {
		titles = append(titles, a.Title)
	}
	return titles
}

func TestEnsureSystemBadgesIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)

	require.NoError(t, svc.EnsureSystemBadges())
	require.NoError(t, svc.EnsureSystemBadges())

	var n int64
	db.Model(&models.Badge{}).Count(&n)
	assert.EqualValues(t, len(models.SystemBadges), n)
}

func TestFirstCheckinBadge(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	require.NoError(t, svc.EnsureSystemBadges())

	ev := seedEvent(t, db, withCategory("trail"))
	seedCheckin(t, db, ev.ID, "runner-1")

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	assert.Contains(t, awardTitles(awards), "First Finish")
}

// Attending a fourth distinct activity type crosses an event_type_count
// threshold of 4; re-running the evaluation must not award again.
func TestEventTypeCountBorderAwardedExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)

	border := seedBorder(t, db, "All-Rounder", models.BorderCriteriaEventTypeCount,
		models.BorderCriteria{Count: 4})

	for _, cat := range []string{"trail", "road", "night", "relay"} {
		ev := seedEvent(t, db, withCategory(cat))
		seedCheckin(t, db, ev.ID, "runner-1")
	}

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "border", awards[0].Kind)
	assert.Equal(t, border.ID, awards[0].ArtifactID)

	// same history, second pass: nothing new
	again, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	assert.Empty(t, again)

	var rows int64
	db.Model(&models.UserBorder{}).
		Where("external_user_id = ? AND border_id = ?", "runner-1", border.ID).
		Count(&rows)
	assert.EqualValues(t, 1, rows)
}

func TestEventTypeCountBorderBelowThreshold(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedBorder(t, db, "All-Rounder", models.BorderCriteriaEventTypeCount,
		models.BorderCriteria{Count: 4})

	for _, cat := range []string{"trail", "road", "night"} {
		ev := seedEvent(t, db, withCategory(cat))
		seedCheckin(t, db, ev.ID, "runner-1")
	}

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestEventCountBorder(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedBorder(t, db, "Regular", models.BorderCriteriaEventCount,
		models.BorderCriteria{Count: 3})

	for i := 0; i < 3; i++ {
		ev := seedEvent(t, db)
		seedCheckin(t, db, ev.ID, "runner-1")
	}

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Regular", awards[0].Title)
}

func TestMountainRegionBorder(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedBorder(t, db, "Highlander", models.BorderCriteriaMountainRegion,
		models.BorderCriteria{Region: "alps"})

	// flatland event in the right region does not count
	flat := seedEvent(t, db, withRegion("alps", false))
	seedCheckin(t, db, flat.ID, "runner-1")

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	require.Empty(t, awards)

	peak := seedEvent(t, db, withRegion("alps", true))
	seedCheckin(t, db, peak.ID, "runner-1")

	awards, err = svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Highlander", awards[0].Title)
}

func TestAllActivitiesBorder(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedBorder(t, db, "Completionist", models.BorderCriteriaAllActivities,
		models.BorderCriteria{})

	trail := seedEvent(t, db, withCategory("trail"))
	road := seedEvent(t, db, withCategory("road"))
	seedCheckin(t, db, trail.ID, "runner-1")

	// one of two known categories covered
	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	assert.Empty(t, awards)

	seedCheckin(t, db, road.ID, "runner-1")
	awards, err = svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Completionist", awards[0].Title)
}

func TestOrganizerCountBorder(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	organizer := uuid.NewString()
	seedBorder(t, db, "Loyal Fan", models.BorderCriteriaOrganizerCount,
		models.BorderCriteria{OrganizerID: organizer, Count: 2})

	theirs := seedEvent(t, db, withOrganizer(organizer))
	other := seedEvent(t, db)
	seedCheckin(t, db, theirs.ID, "runner-1")
	seedCheckin(t, db, other.ID, "runner-1")

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	assert.Empty(t, awards, "only the organizer's own events count")

	second := seedEvent(t, db, withOrganizer(organizer))
	seedCheckin(t, db, second.ID, "runner-1")

	awards, err = svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Loyal Fan", awards[0].Title)
}

func TestSignupDateBorder(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedBorder(t, db, "Veteran", models.BorderCriteriaSignupDate,
		models.BorderCriteria{MinAccountDays: 365})

	ev := seedEvent(t, db)
	seedCheckin(t, db, ev.ID, "newbie")
	seedCheckin(t, db, ev.ID, "veteran")
	seedUser(t, db, "newbie", time.Now().AddDate(0, -1, 0))
	seedUser(t, db, "veteran", time.Now().AddDate(-2, 0, 0))

	awards, err := svc.EvaluateUser("newbie")
	require.NoError(t, err)
	assert.Empty(t, awards)

	awards, err = svc.EvaluateUser("veteran")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Veteran", awards[0].Title)
}

func TestSignupDateBorderNeedsProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	seedBorder(t, db, "Veteran", models.BorderCriteriaSignupDate,
		models.BorderCriteria{MinAccountDays: 1})

	ev := seedEvent(t, db)
	seedCheckin(t, db, ev.ID, "unsynced")

	awards, err := svc.EvaluateUser("unsynced")
	require.NoError(t, err)
	assert.Empty(t, awards, "no profile mirror means no signup-age judgment")
}

func TestBadgeThresholdsAccumulate(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)
	require.NoError(t, svc.EnsureSystemBadges())

	for i := 0; i < 4; i++ {
		ev := seedEvent(t, db, withCategory("trail"))
		seedCheckin(t, db, ev.ID, "runner-1")
	}

	awards, err := svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	titles := awardTitles(awards)
	assert.Contains(t, titles, "First Finish")
	assert.Contains(t, titles, "Trail Blazer")
	assert.NotContains(t, titles, "Regular")

	// fifth event crosses checkins_5; only the new badge comes back
	ev := seedEvent(t, db, withCategory("road"))
	seedCheckin(t, db, ev.ID, "runner-1")

	awards, err = svc.EvaluateUser("runner-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Regular"}, awardTitles(awards))
}

func TestSetActiveBorderTogglesSelection(t *testing.T) {
	db := newTestDB(t)
	svc := NewAchievementService(db)

	first := seedBorder(t, db, "One", models.BorderCriteriaEventCount, models.BorderCriteria{Count: 1})
	second := seedBorder(t, db, "Two", models.BorderCriteriaEventCount, models.BorderCriteria{Count: 2})
	for _, b := range []*models.Border{first, second} {
		_, err := svc.awardBorder("runner-1", b.ID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.SetActiveBorder("runner-1", first.ID))
	require.NoError(t, svc.SetActiveBorder("runner-1", second.ID))

	var active []models.UserBorder
	require.NoError(t, db.Where("external_user_id = ? AND is_active = ?", "runner-1", true).
		Find(&active).Error)
	require.Len(t, active, 1, "at most one active border")
	assert.Equal(t, second.ID, active[0].BorderID)

	assert.ErrorIs(t, svc.SetActiveBorder("runner-1", uuid.NewString()), ErrNotFound)
}
