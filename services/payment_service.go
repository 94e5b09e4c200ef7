package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"race-registration-system/models"
	"race-registration-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Verification decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// PaymentService applies organizer decisions to pending payments and owns
// proof re-submission and refunds. The pending→paid / pending→rejected
// guards are conditional updates so two organizers racing on the same
// booking resolve to exactly one decision.
type PaymentService struct {
	DB       *gorm.DB
	Capacity *CapacityService
	Tokens   *TokenService
}

func NewPaymentService(db *gorm.DB, capacity *CapacityService, tokens *TokenService) *PaymentService {
	return &PaymentService{DB: db, Capacity: capacity, Tokens: tokens}
}

// Verify applies an organizer decision to a payment-pending booking.
//
// approve: payment_status=paid, status=confirmed; tokens are minted for
// the owner and every companion that is not cancelled (companions flip to
// confirmed). cash behaves identically — "collected on-site, reconciled".
//
// reject: payment_status=rejected, status stays pending, no token, and the
// capacity hold stays: the user may re-submit proof against the same
// booking (SubmitProof returns it to pending).
func (s *PaymentService) Verify(bookingID, decision string) (*models.Booking, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}

	var booking models.Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Companions").First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if decision == DecisionReject {
			res := tx.Model(&models.Booking{}).
				Where("id = ? AND payment_status = ?", bookingID, models.PaymentStatusPending).
				Update("payment_status", models.PaymentStatusRejected)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: payment is not pending", ErrIllegalTransition)
			}
			booking.PaymentStatus = models.PaymentStatusRejected
			return nil
		}

		ownerToken := s.Tokens.MintUser(booking.EventID, booking.ExternalUserID)
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payment_status = ?", bookingID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusPaid,
				"status":         models.BookingStatusConfirmed,
				"scan_token":     ownerToken,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: payment is not pending", ErrIllegalTransition)
		}
		booking.PaymentStatus = models.PaymentStatusPaid
		booking.Status = models.BookingStatusConfirmed
		booking.ScanToken = &ownerToken

		for i := range booking.Companions {
			comp := &booking.Companions[i]
			if comp.Status == models.BookingStatusCancelled {
				continue
			}
			tok := s.Tokens.MintCompanion(booking.EventID, comp.ID)
			if err := tx.Model(&models.Companion{}).
				Where("id = ?", comp.ID).
				Updates(map[string]interface{}{
					"status":     models.BookingStatusConfirmed,
					"scan_token": tok,
				}).Error; err != nil {
				return fmt.Errorf("failed to confirm companion %s: %w", comp.ID, err)
			}
			comp.Status = models.BookingStatusConfirmed
			comp.ScanToken = &tok
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// SubmitProof records a proof-of-payment reference and returns a rejected
// (or still-pending) payment to the evaluable pending state. This is the
// only path back from rejected.
func (s *PaymentService) SubmitProof(bookingID, externalUserID, proofURL string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.DB.First(&booking, "id = ? AND external_user_id = ?", bookingID, externalUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !models.PaymentMethodRequiresVerification(booking.PaymentMethod) {
		return nil, fmt.Errorf("%w: booking does not take payment proof", ErrIllegalTransition)
	}

	res := s.DB.Model(&models.Booking{}).
		Where("id = ? AND payment_status IN ?", bookingID,
			[]string{models.PaymentStatusPending, models.PaymentStatusRejected}).
		Updates(map[string]interface{}{
			"proof_url":      proofURL,
			"payment_status": models.PaymentStatusPending,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: payment already resolved", ErrIllegalTransition)
	}

	booking.ProofURL = proofURL
	booking.PaymentStatus = models.PaymentStatusPending
	return &booking, nil
}

// Refund voids a paid booking: payment_status=refunded, status=cancelled,
// tokens revoked, and the owner's slot plus every non-cancelled
// companion's slot returned to their pools.
func (s *PaymentService) Refund(bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Companions").First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ? AND payment_status = ?", bookingID, models.PaymentStatusPaid).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusRefunded,
				"status":         models.BookingStatusCancelled,
				"scan_token":     nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: only paid bookings can be refunded", ErrIllegalTransition)
		}

		if err := s.Capacity.Release(tx, booking.EventID, booking.DistanceTierID, 1); err != nil {
			return err
		}
		for i := range booking.Companions {
			comp := &booking.Companions[i]
			if comp.Status == models.BookingStatusCancelled {
				continue
			}
			if err := tx.Model(&models.Companion{}).
				Where("id = ?", comp.ID).
				Updates(map[string]interface{}{
					"status":     models.BookingStatusCancelled,
					"scan_token": nil,
				}).Error; err != nil {
				return err
			}
			if err := s.Capacity.Release(tx, booking.EventID, comp.DistanceTierID, 1); err != nil {
				return err
			}
			comp.Status = models.BookingStatusCancelled
			comp.ScanToken = nil
		}

		booking.PaymentStatus = models.PaymentStatusRefunded
		booking.Status = models.BookingStatusCancelled
		booking.ScanToken = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// --- Fiber endpoints ---

func (s *PaymentService) VerifyEndpoint(c *fiber.Ctx) error {
	var req struct {
		Decision string `json:"decision"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}

	booking, err := s.Verify(c.Params("id"), req.Decision)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "booking not found"})
		case errors.Is(err, ErrValidation):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrIllegalTransition):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("❌ [PAYMENT] verify %s failed: %v", c.Params("id"), err)
		return c.Status(500).JSON(fiber.Map{"error": "verification failed"})
	}
	return c.JSON(booking)
}

func (s *PaymentService) SubmitProofEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	bookingID := c.Params("id")

	fileHeader, err := c.FormFile("proof")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "proof file is required"})
	}
	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("proofs/%s%s", uuid.NewString(), ext)

	proofURL, err := utils.StoreUpload(fileHeader, key)
	if err != nil {
		log.Printf("❌ [PAYMENT] proof upload failed for booking %s: %v", bookingID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to store proof"})
	}

	booking, err := s.SubmitProof(bookingID, userID, proofURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "booking not found"})
		case errors.Is(err, ErrIllegalTransition):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to submit proof"})
	}
	return c.JSON(booking)
}

func (s *PaymentService) RefundEndpoint(c *fiber.Ctx) error {
	booking, err := s.Refund(c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "booking not found"})
		case errors.Is(err, ErrIllegalTransition):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": "refund failed"})
	}
	return c.JSON(booking)
}
