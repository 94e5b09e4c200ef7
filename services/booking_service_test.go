package services

import (
	"testing"

	"race-registration-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBookingService(db *gorm.DB) *BookingService {
	return NewBookingService(db, NewCapacityService(db), newTestTokens())
}

func TestCreateWalletBookingStartsPendingWithoutToken(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(10))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodWalletA,
		Companions: []CompanionInput{
			{Name: "ada lovelace"},
			{Name: "alan turing"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	assert.Nil(t, booking.ScanToken, "wallet bookings have no token until approval")

	require.Len(t, booking.Companions, 2)
	for _, comp := range booking.Companions {
		assert.Equal(t, models.BookingStatusPending, comp.Status)
		assert.Nil(t, comp.ScanToken)
	}
	assert.Equal(t, "Ada Lovelace", booking.Companions[0].Name)

	// 1 self + 2 companions
	assert.Equal(t, 3, reservedCount(t, db, ev.ID))
}

func TestCreateFreeBookingConfirmsImmediately(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(10))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodFree,
		Companions:     []CompanionInput{{Name: "Grace Hopper"}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, models.PaymentStatusPaid, booking.PaymentStatus)
	require.NotNil(t, booking.ScanToken)
	assert.Equal(t, "racehub:checkin:"+ev.ID+":runner-1", *booking.ScanToken)

	require.Len(t, booking.Companions, 1)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Companions[0].Status)
	assert.NotNil(t, booking.Companions[0].ScanToken)
}

func TestCreateCashBookingIssuesTokenBeforePayment(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(10))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodCash,
		Companions:     []CompanionInput{{Name: "Katherine Johnson"}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	assert.NotNil(t, booking.ScanToken, "cash slot is already held, token issued up front")
	assert.NotNil(t, booking.Companions[0].ScanToken)
}

func TestCreateBookingRejectsUnknownMethod(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db)

	_, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  "iou",
	})
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCreateBookingAllOrNothingOnCapacity(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(2))

	// 3 principals into 2 slots: refused without any partial mutation
	_, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodCash,
		Companions: []CompanionInput{
			{Name: "One"},
			{Name: "Two"},
		},
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	var bookings, companions int64
	db.Model(&models.Booking{}).Count(&bookings)
	db.Model(&models.Companion{}).Count(&companions)
	assert.Zero(t, bookings)
	assert.Zero(t, companions)
	assert.Equal(t, 0, reservedCount(t, db, ev.ID))
}

func TestCreateBookingRejectsSecondActiveBooking(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	payments := NewPaymentService(db, svc.Capacity, svc.Tokens)
	ev := seedEvent(t, db, withCapacity(10))

	first, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodFree,
	})
	require.NoError(t, err)

	// a second active booking would share the same scan token
	_, err = svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, ErrAlreadyBooked)
	assert.Equal(t, 1, reservedCount(t, db, ev.ID), "refused duplicate must not hold a slot")

	// once the old booking is cancelled the user may book again
	_, err = payments.Refund(first.ID)
	require.NoError(t, err)

	_, err = svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodCash,
	})
	require.NoError(t, err)

	// other users are unaffected by the guard
	_, err = svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-2",
		PaymentMethod:  models.PaymentMethodFree,
	})
	require.NoError(t, err)
}

func TestCreateBookingRequiresTierWhenEventHasTiers(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(10))
	tier := seedTier(t, db, ev.ID, "21K", 5, 30)

	_, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodFree,
	})
	assert.ErrorIs(t, err, ErrValidation)

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodFree,
		DistanceTierID: &tier.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, booking.DistanceTierID)

	var reloaded models.DistanceTier
	require.NoError(t, db.First(&reloaded, "id = ?", tier.ID).Error)
	assert.Equal(t, 1, reloaded.Reserved)
}

func TestCreateBookingRejectsForeignTier(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db)
	other := seedEvent(t, db)
	foreign := seedTier(t, db, other.ID, "5K", 5, 10)

	_, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodFree,
		DistanceTierID: &foreign.ID,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOwnerCancelRequiresPaidAndKeepsSlot(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(5))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodWalletA,
	})
	require.NoError(t, err)

	_, err = svc.SetOwnerCancelled(booking.ID, "runner-1", true)
	assert.ErrorIs(t, err, ErrIllegalTransition, "withdrawal before payment is illegal")

	// pay, then withdraw
	payments := NewPaymentService(db, svc.Capacity, svc.Tokens)
	_, err = payments.Verify(booking.ID, DecisionApprove)
	require.NoError(t, err)

	updated, err := svc.SetOwnerCancelled(booking.ID, "runner-1", true)
	require.NoError(t, err)
	assert.True(t, updated.ParticipantCancelled)
	assert.Equal(t, 1, reservedCount(t, db, ev.ID), "owner withdrawal keeps the capacity slot")

	// and it is reversible
	restored, err := svc.SetOwnerCancelled(booking.ID, "runner-1", false)
	require.NoError(t, err)
	assert.False(t, restored.ParticipantCancelled)
}

func TestOwnerCancelUnknownBooking(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)

	_, err := svc.SetOwnerCancelled("nope", "runner-1", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompanionToggleRequiresPaidParent(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	ev := seedEvent(t, db, withCapacity(5))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodWalletB,
		Companions:     []CompanionInput{{Name: "Pal"}},
	})
	require.NoError(t, err)

	_, err = svc.SetCompanionCancelled(booking.Companions[0].ID, true)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

// Scenario: cash booking with 2 companions fills a pool of 3; cancelling a
// companion frees exactly one slot for a newcomer, and the companion can
// no longer be restored once that slot is re-taken.
func TestCompanionCancelFreesSlotRestoreRechecksCapacity(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	payments := NewPaymentService(db, svc.Capacity, svc.Tokens)
	ev := seedEvent(t, db, withCapacity(3))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodCash,
		Companions: []CompanionInput{
			{Name: "One"},
			{Name: "Two"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, reservedCount(t, db, ev.ID))

	// pool is full for anyone else
	_, err = svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-2",
		PaymentMethod:  models.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// reconcile cash, then drop one companion
	_, err = payments.Verify(booking.ID, DecisionApprove)
	require.NoError(t, err)

	comp := booking.Companions[0]
	cancelled, err := svc.SetCompanionCancelled(comp.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, 2, reservedCount(t, db, ev.ID))

	// freed slot goes to the newcomer
	_, err = svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-2",
		PaymentMethod:  models.PaymentMethodCash,
	})
	require.NoError(t, err)

	// restore must re-check capacity inside the transaction and fail
	_, err = svc.SetCompanionCancelled(comp.ID, false)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	var reloaded models.Companion
	require.NoError(t, db.First(&reloaded, "id = ?", comp.ID).Error)
	assert.Equal(t, models.BookingStatusCancelled, reloaded.Status, "failed restore must not flip status")
	assert.Equal(t, 3, reservedCount(t, db, ev.ID))
}

func TestCompanionRestoreSucceedsWhenSlotFree(t *testing.T) {
	db := newTestDB(t)
	svc := newBookingService(db)
	payments := NewPaymentService(db, svc.Capacity, svc.Tokens)
	ev := seedEvent(t, db, withCapacity(3))

	booking, err := svc.CreateBooking(CreateBookingInput{
		EventID:        ev.ID,
		ExternalUserID: "runner-1",
		PaymentMethod:  models.PaymentMethodCash,
		Companions:     []CompanionInput{{Name: "Pal"}},
	})
	require.NoError(t, err)
	_, err = payments.Verify(booking.ID, DecisionApprove)
	require.NoError(t, err)

	comp := booking.Companions[0]
	_, err = svc.SetCompanionCancelled(comp.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, reservedCount(t, db, ev.ID))

	restored, err := svc.SetCompanionCancelled(comp.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, restored.Status)
	assert.Equal(t, 2, reservedCount(t, db, ev.ID))
}
