package services

import (
	"errors"
	"fmt"
	"log"

	"race-registration-system/models"
	"race-registration-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingService owns the booking state machine: creation with companions,
// owner withdrawal, and companion cancel/restore. All multi-row mutations
// run inside a single transaction together with their capacity grants so a
// partially-created multi-person booking can never be observed.
type BookingService struct {
	DB       *gorm.DB
	Capacity *CapacityService
	Tokens   *TokenService
}

func NewBookingService(db *gorm.DB, capacity *CapacityService, tokens *TokenService) *BookingService {
	return &BookingService{DB: db, Capacity: capacity, Tokens: tokens}
}

type CompanionInput struct {
	Name           string  `json:"name"`
	Phone          string  `json:"phone,omitempty"`
	DistanceTierID *string `json:"distance_tier_id,omitempty"`
}

type CreateBookingInput struct {
	EventID        string           `json:"event_id"`
	ExternalUserID string           `json:"-"`
	PaymentMethod  string           `json:"payment_method"`
	DistanceTierID *string          `json:"distance_tier_id,omitempty"`
	Companions     []CompanionInput `json:"companions,omitempty"`
}

// CreateBooking reserves 1 + len(companions) slots and creates the booking
// with its companions in one transaction.
//
// Initial states by payment method:
//   - free:    booking confirmed/paid, companions confirmed, tokens minted
//   - cash:    booking pending/pending, companions pending, tokens minted
//     (the slot is already held; money is reconciled on-site)
//   - wallet:  booking pending/pending, companions pending, no tokens until
//     the organizer approves the payment proof
func (s *BookingService) CreateBooking(in CreateBookingInput) (*models.Booking, error) {
	if !models.ValidPaymentMethod(in.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	var event models.Event
	if err := s.DB.Preload("Tiers").First(&event, "id = ?", in.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if event.Status != models.EventStatusPublished {
		return nil, fmt.Errorf("%w: event is not open for booking", ErrIllegalTransition)
	}

	tiersByID := make(map[string]models.DistanceTier, len(event.Tiers))
	for _, t := range event.Tiers {
		tiersByID[t.ID] = t
	}
	validateTier := func(tierID *string) error {
		if len(event.Tiers) == 0 {
			if tierID != nil {
				return fmt.Errorf("%w: event has no distance tiers", ErrValidation)
			}
			return nil
		}
		if tierID == nil {
			return fmt.Errorf("%w: distance tier is required for this event", ErrValidation)
		}
		if _, ok := tiersByID[*tierID]; !ok {
			return fmt.Errorf("%w: distance tier does not belong to event", ErrValidation)
		}
		return nil
	}
	if err := validateTier(in.DistanceTierID); err != nil {
		return nil, err
	}
	for _, c := range in.Companions {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: companion name is required", ErrValidation)
		}
		if err := validateTier(c.DistanceTierID); err != nil {
			return nil, err
		}
	}

	free := in.PaymentMethod == models.PaymentMethodFree

	booking := models.Booking{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		ExternalUserID: in.ExternalUserID,
		DistanceTierID: in.DistanceTierID,
		PaymentMethod:  in.PaymentMethod,
		Status:         models.BookingStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
	}
	if free {
		booking.Status = models.BookingStatusConfirmed
		booking.PaymentStatus = models.PaymentStatusPaid
	}
	// Cash and free principals are attendance-eligible from creation; the
	// reservation already holds their slots. Wallet tokens wait for approval.
	if in.PaymentMethod == models.PaymentMethodCash || free {
		tok := s.Tokens.MintUser(event.ID, in.ExternalUserID)
		booking.ScanToken = &tok
	}

	companions := make([]models.Companion, 0, len(in.Companions))
	for _, c := range in.Companions {
		comp := models.Companion{
			ID:             uuid.NewString(),
			BookingID:      booking.ID,
			Name:           utils.NormalizeDisplayName(c.Name),
			Phone:          c.Phone,
			DistanceTierID: c.DistanceTierID,
			Status:         models.BookingStatusPending,
		}
		if free {
			comp.Status = models.BookingStatusConfirmed
		}
		if in.PaymentMethod == models.PaymentMethodCash || free {
			tok := s.Tokens.MintCompanion(event.ID, comp.ID)
			comp.ScanToken = &tok
		}
		companions = append(companions, comp)
	}

	// Slots per pool for the whole party, granted atomically below.
	type poolKey struct{ tier string }
	poolCounts := map[poolKey]int{}
	poolTier := map[poolKey]*string{}
	addToPool := func(tierID *string) {
		k := poolKey{}
		if tierID != nil {
			k.tier = *tierID
		}
		poolCounts[k]++
		poolTier[k] = tierID
	}
	addToPool(in.DistanceTierID)
	for _, c := range companions {
		addToPool(c.DistanceTierID)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// One active booking per (event, user): a second one would share
		// the same deterministic scan token.
		var active int64
		if err := tx.Model(&models.Booking{}).
			Where("event_id = ? AND external_user_id = ? AND status <> ?",
				event.ID, in.ExternalUserID, models.BookingStatusCancelled).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrAlreadyBooked
		}

		for k, n := range poolCounts {
			if err := s.Capacity.Reserve(tx, event.ID, poolTier[k], n); err != nil {
				return err
			}
		}
		if err := tx.Create(&booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		if len(companions) > 0 {
			if err := tx.Create(&companions).Error; err != nil {
				return fmt.Errorf("failed to create companions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Companions = companions
	return &booking, nil
}

// SetOwnerCancelled toggles the owner's own attendance intent. Legal only
// once the booking is paid. The owner's capacity slot is NOT released:
// withdrawal is an attendance flag, not a refund, and headcount
// commitments already made stay made.
func (s *BookingService) SetOwnerCancelled(bookingID, externalUserID string, cancelled bool) (*models.Booking, error) {
	var booking models.Booking
	if err := s.DB.First(&booking, "id = ? AND external_user_id = ?", bookingID, externalUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	res := s.DB.Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", bookingID, models.PaymentStatusPaid).
		Update("participant_cancelled", cancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: booking is not paid", ErrIllegalTransition)
	}

	booking.ParticipantCancelled = cancelled
	return &booking, nil
}

// SetCompanionCancelled cancels or restores a companion. Legal only once
// the parent booking is paid. Cancelling releases the companion's slot;
// restoring re-reserves it inside the same transaction that flips the
// status, so a stale capacity read can never over-admit.
func (s *BookingService) SetCompanionCancelled(companionID string, cancelled bool) (*models.Companion, error) {
	var companion models.Companion
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&companion, "id = ?", companionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var booking models.Booking
		if err := tx.First(&booking, "id = ?", companion.BookingID).Error; err != nil {
			return err
		}
		if booking.PaymentStatus != models.PaymentStatusPaid {
			return fmt.Errorf("%w: parent booking is not paid", ErrIllegalTransition)
		}

		if cancelled {
			res := tx.Model(&models.Companion{}).
				Where("id = ? AND status = ?", companionID, models.BookingStatusConfirmed).
				Update("status", models.BookingStatusCancelled)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: companion is not confirmed", ErrIllegalTransition)
			}
			if err := s.Capacity.Release(tx, booking.EventID, companion.DistanceTierID, 1); err != nil {
				return err
			}
			companion.Status = models.BookingStatusCancelled
			return nil
		}

		// Restore: the pool may have filled since the cancellation.
		if err := s.Capacity.Reserve(tx, booking.EventID, companion.DistanceTierID, 1); err != nil {
			return err
		}
		res := tx.Model(&models.Companion{}).
			Where("id = ? AND status = ?", companionID, models.BookingStatusCancelled).
			Update("status", models.BookingStatusConfirmed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: companion is not cancelled", ErrIllegalTransition)
		}
		companion.Status = models.BookingStatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &companion, nil
}

// --- Fiber endpoints ---

func (s *BookingService) CreateBookingEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var in CreateBookingInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	in.EventID = c.Params("id")
	in.ExternalUserID = userID

	booking, err := s.CreateBooking(in)
	if err != nil {
		switch {
		case errors.Is(err, ErrCapacityExceeded):
			return c.Status(409).JSON(fiber.Map{"error": "event is fully booked"})
		case errors.Is(err, ErrAlreadyBooked):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrInvalidPaymentMethod):
			return c.Status(400).JSON(fiber.Map{"error": "invalid payment method"})
		case errors.Is(err, ErrNotFound):
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrValidation), errors.Is(err, ErrIllegalTransition):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("❌ [BOOKING] create failed for user %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create booking"})
	}

	return c.Status(201).JSON(booking)
}

func (s *BookingService) GetBookingEndpoint(c *fiber.Ctx) error {
	var booking models.Booking
	if err := s.DB.Preload("Companions").Preload("Event").
		First(&booking, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "booking not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(booking)
}

func (s *BookingService) GetMyBookingsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var bookings []models.Booking
	if err := s.DB.Preload("Companions").Preload("Event").
		Where("external_user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(bookings)
}

func (s *BookingService) CancelBookingEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}

	booking, err := s.SetOwnerCancelled(c.Params("id"), userID, req.Cancelled)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "booking not found"})
		case errors.Is(err, ErrIllegalTransition):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to update booking"})
	}
	return c.JSON(booking)
}

func (s *BookingService) CancelCompanionEndpoint(c *fiber.Ctx) error {
	var req struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}

	companion, err := s.SetCompanionCancelled(c.Params("id"), req.Cancelled)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "companion not found"})
		case errors.Is(err, ErrCapacityExceeded):
			return c.Status(409).JSON(fiber.Map{"error": "no slots left to restore companion"})
		case errors.Is(err, ErrIllegalTransition):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to update companion"})
	}
	return c.JSON(companion)
}
