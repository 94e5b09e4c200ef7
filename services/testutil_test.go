package services

import (
	"testing"
	"time"

	"race-registration-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
// MaxOpenConns(1) keeps every query on the same :memory: instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Event{},
		&models.DistanceTier{},
		&models.Booking{},
		&models.Companion{},
		&models.CheckIn{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Border{},
		&models.UserBorder{},
		&models.EventUser{},
	))
	return db
}

func newTestTokens() *TokenService {
	return &TokenService{Namespace: "racehub"}
}

type eventOpt func(*models.Event)

func withCapacity(n int) eventOpt {
	return func(e *models.Event) { e.Capacity = n }
}

func withCategory(c string) eventOpt {
	return func(e *models.Event) { e.Category = c }
}

func withRegion(region string, mountain bool) eventOpt {
	return func(e *models.Event) {
		e.Region = region
		e.IsMountain = mountain
	}
}

func withOrganizer(id string) eventOpt {
	return func(e *models.Event) { e.OrganizerID = id }
}

func withPrice(p float64) eventOpt {
	return func(e *models.Event) { e.Price = p }
}

func seedEvent(t *testing.T, db *gorm.DB, opts ...eventOpt) *models.Event {
	t.Helper()

	ev := &models.Event{
		ID:          uuid.NewString(),
		OrganizerID: uuid.NewString(),
		Name:        "Test Race",
		Status:      models.EventStatusPublished,
		StartTime:   time.Now().Add(24 * time.Hour),
	}
	ev.Slug = "test-race-" + ev.ID[:8]
	for _, opt := range opts {
		opt(ev)
	}
	require.NoError(t, db.Create(ev).Error)
	return ev
}

func seedTier(t *testing.T, db *gorm.DB, eventID, name string, capacity int, price float64) *models.DistanceTier {
	t.Helper()

	tier := &models.DistanceTier{
		ID:       uuid.NewString(),
		EventID:  eventID,
		Name:     name,
		Capacity: capacity,
		Price:    price,
	}
	require.NoError(t, db.Create(tier).Error)
	return tier
}

// seedCheckin inserts an attendance row for a user directly.
func seedCheckin(t *testing.T, db *gorm.DB, eventID, userID string) {
	t.Helper()

	require.NoError(t, db.Create(&models.CheckIn{
		ID:             uuid.NewString(),
		EventID:        eventID,
		PrincipalKey:   models.UserPrincipalKey(userID),
		ExternalUserID: &userID,
		Method:         models.CheckInMethodScan,
	}).Error)
}

func reservedCount(t *testing.T, db *gorm.DB, eventID string) int {
	t.Helper()

	var ev models.Event
	require.NoError(t, db.First(&ev, "id = ?", eventID).Error)
	return ev.Reserved
}

// recordingQueue captures enqueued check-in events for assertions.
type recordingQueue struct {
	events []CheckinEvent
}

func (q *recordingQueue) Enqueue(ev CheckinEvent) bool {
	q.events = append(q.events, ev)
	return true
}
