package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"race-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Check-in result kinds
const (
	CheckinKindSuccess = "success"
	CheckinKindAlready = "already_checked_in"
	CheckinKindWarning = "warning"
	CheckinKindError   = "error"
)

// CheckinEvent is handed to the background queue after a successful
// check-in of an account-holding participant (companions do not accrue
// personal achievements).
type CheckinEvent struct {
	CheckInID      string
	EventID        string
	ExternalUserID string
}

// CheckinQueue decouples the scan response from achievement evaluation
// and notification. Enqueue must never block the caller; it reports
// whether the event was accepted.
type CheckinQueue interface {
	Enqueue(ev CheckinEvent) bool
}

// CheckinResult is what the scanning operator sees. Kind drives the
// device UI: "try a different code" (error), "proceed anyway?" (warning),
// "already done" (already_checked_in) or plain success.
type CheckinResult struct {
	Kind          string          `json:"kind"`
	Code          string          `json:"code,omitempty"` // invalid_token | not_registered | payment_not_verified
	Message       string          `json:"message"`
	PrincipalName string          `json:"principal_name,omitempty"`
	EventName     string          `json:"event_name,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	CheckIn       *models.CheckIn `json:"check_in,omitempty"`
}

// CheckinService decodes scan tokens, validates them against the event and
// idempotently records attendance. The (event, principal) unique index is
// the backstop for two near-simultaneous scans of the same token.
type CheckinService struct {
	DB     *gorm.DB
	Tokens *TokenService
	Queue  CheckinQueue
}

func NewCheckinService(db *gorm.DB, tokens *TokenService, queue CheckinQueue) *CheckinService {
	return &CheckinService{DB: db, Tokens: tokens, Queue: queue}
}

// resolved principal, loaded at the data-access boundary so the rest of
// the flow only sees typed values
type scanPrincipal struct {
	event         models.Event
	booking       models.Booking
	companion     *models.Companion // nil for the booking owner
	principalKey  string
	principalName string
}

func (s *CheckinService) resolve(claims *TokenClaims, raw string) (*scanPrincipal, *CheckinResult) {
	var p scanPrincipal
	if err := s.DB.First(&p.event, "id = ?", claims.EventID).Error; err != nil {
		return nil, &CheckinResult{
			Kind: CheckinKindError, Code: "not_registered",
			Message: "event not found for this code",
		}
	}

	notRegistered := func(msg string) *CheckinResult {
		return &CheckinResult{
			Kind: CheckinKindError, Code: "not_registered",
			Message: msg, EventName: p.event.Name,
		}
	}

	if claims.CompanionID != "" {
		var comp models.Companion
		if err := s.DB.First(&comp, "id = ?", claims.CompanionID).Error; err != nil {
			return nil, notRegistered("companion is not registered for this event")
		}
		if err := s.DB.First(&p.booking, "id = ?", comp.BookingID).Error; err != nil ||
			p.booking.EventID != claims.EventID {
			return nil, notRegistered("companion is not registered for this event")
		}
		if comp.Status == models.BookingStatusCancelled {
			return nil, notRegistered("companion registration was cancelled")
		}
		if comp.ScanToken == nil || *comp.ScanToken != raw {
			return nil, notRegistered("no scan code has been issued for this companion")
		}
		p.companion = &comp
		p.principalKey = models.CompanionPrincipalKey(comp.ID)
		p.principalName = comp.Name
		return &p, nil
	}

	// Cancelled bookings may coexist with a later live one (refund then
	// re-book); resolve against the live booking only.
	if err := s.DB.First(&p.booking,
		"event_id = ? AND external_user_id = ? AND status <> ?",
		claims.EventID, claims.ExternalUserID, models.BookingStatusCancelled).Error; err != nil {
		var cancelled int64
		s.DB.Model(&models.Booking{}).
			Where("event_id = ? AND external_user_id = ?", claims.EventID, claims.ExternalUserID).
			Count(&cancelled)
		if cancelled > 0 {
			return nil, notRegistered("registration was cancelled")
		}
		return nil, notRegistered("no registration found for this event")
	}
	if p.booking.ParticipantCancelled {
		return nil, notRegistered("participant withdrew from this event")
	}
	if p.booking.ScanToken == nil || *p.booking.ScanToken != raw {
		return nil, notRegistered("no scan code has been issued for this registration")
	}

	p.principalKey = models.UserPrincipalKey(claims.ExternalUserID)
	p.principalName = claims.ExternalUserID
	var user models.EventUser
	if err := s.DB.First(&user, "external_user_id = ?", claims.ExternalUserID).Error; err == nil {
		p.principalName = user.Username
	}
	return &p, nil
}

// Process runs the scan flow: decode, resolve, idempotency check, payment
// gate, insert. A principal whose payment is not yet collected (cash on
// the day) yields a warning the operator must confirm with force=true —
// never a silent pass or a silent failure.
func (s *CheckinService) Process(raw string, force bool, method string) (*CheckinResult, error) {
	claims, err := s.Tokens.Decode(raw)
	if err != nil {
		return &CheckinResult{
			Kind: CheckinKindError, Code: "invalid_token",
			Message: "code not recognized, try a different one",
		}, nil
	}

	p, errRes := s.resolve(claims, raw)
	if errRes != nil {
		return errRes, nil
	}

	var existing models.CheckIn
	if err := s.DB.First(&existing,
		"event_id = ? AND principal_key = ?", p.event.ID, p.principalKey).Error; err == nil {
		return &CheckinResult{
			Kind:          CheckinKindAlready,
			Message:       fmt.Sprintf("%s already checked in at %s", p.principalName, existing.CheckedInAt.Format(time.Kitchen)),
			PrincipalName: p.principalName,
			EventName:     p.event.Name,
			CheckIn:       &existing,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if p.booking.PaymentStatus != models.PaymentStatusPaid && !force {
		return &CheckinResult{
			Kind:          CheckinKindWarning,
			Code:          "payment_not_verified",
			Message:       fmt.Sprintf("payment is %s (%s) — confirm to check in anyway", p.booking.PaymentStatus, p.booking.PaymentMethod),
			PrincipalName: p.principalName,
			EventName:     p.event.Name,
			PaymentStatus: p.booking.PaymentStatus,
			PaymentMethod: p.booking.PaymentMethod,
		}, nil
	}

	record := models.CheckIn{
		ID:           uuid.NewString(),
		EventID:      p.event.ID,
		PrincipalKey: p.principalKey,
		Method:       method,
	}
	if p.companion != nil {
		record.CompanionID = &p.companion.ID
	} else {
		record.ExternalUserID = &p.booking.ExternalUserID
	}

	if err := s.DB.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost the race to a concurrent scan of the same token
			return s.duplicateScanResult(p), nil
		}
		return nil, fmt.Errorf("failed to record check-in: %w", err)
	}

	if p.companion == nil && s.Queue != nil {
		ok := s.Queue.Enqueue(CheckinEvent{
			CheckInID:      record.ID,
			EventID:        p.event.ID,
			ExternalUserID: p.booking.ExternalUserID,
		})
		if !ok {
			log.Printf("⚠️ [CHECKIN] achievement queue full, dropping evaluation for user %s", p.booking.ExternalUserID)
		}
	}

	return &CheckinResult{
		Kind:          CheckinKindSuccess,
		Message:       fmt.Sprintf("%s checked in", p.principalName),
		PrincipalName: p.principalName,
		EventName:     p.event.Name,
		PaymentStatus: p.booking.PaymentStatus,
		CheckIn:       &record,
	}, nil
}

// duplicateScanResult answers a scan whose insert lost to a concurrent
// scan of the same token. The winner's row is attached when readable;
// the already_checked_in verdict stands either way.
func (s *CheckinService) duplicateScanResult(p *scanPrincipal) *CheckinResult {
	res := &CheckinResult{
		Kind:          CheckinKindAlready,
		Message:       fmt.Sprintf("%s already checked in", p.principalName),
		PrincipalName: p.principalName,
		EventName:     p.event.Name,
	}
	var existing models.CheckIn
	if err := s.DB.First(&existing,
		"event_id = ? AND principal_key = ?", p.event.ID, p.principalKey).Error; err == nil {
		res.CheckIn = &existing
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("⚠️ [CHECKIN] failed to load winning check-in for %s: %v", p.principalKey, err)
	}
	return res
}

// --- Fiber endpoints ---

func (s *CheckinService) ScanEndpoint(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
		Force bool   `json:"force"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	return s.respond(c, req.Token, req.Force, models.CheckInMethodScan)
}

// ManualEndpoint lets the organizer check a principal in without a scan
// (damaged code, dead phone). Same validation path, method=manual.
func (s *CheckinService) ManualEndpoint(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
		Force bool   `json:"force"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	return s.respond(c, req.Token, req.Force, models.CheckInMethodManual)
}

func (s *CheckinService) respond(c *fiber.Ctx, token string, force bool, method string) error {
	res, err := s.Process(token, force, method)
	if err != nil {
		log.Printf("❌ [CHECKIN] processing failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "check-in failed"})
	}
	switch res.Code {
	case "invalid_token":
		return c.Status(400).JSON(res)
	case "not_registered":
		return c.Status(404).JSON(res)
	}
	return c.JSON(res)
}

// StreamEventCheckInsSSE streams the live check-in feed of one event for
// the organizer dashboard.
func (s *CheckinService) StreamEventCheckInsSSE(c *fiber.Ctx) error {
	eventID := c.Params("id")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var cursor time.Time

		var latest models.CheckIn
		if err := s.DB.
			Where("event_id = ?", eventID).
			Order("checked_in_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.CheckedInAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for event %s: %v", eventID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var fresh []models.CheckIn
				err := s.DB.
					Where("event_id = ? AND checked_in_at > ?", eventID, cursor).
					Order("checked_in_at ASC").
					Find(&fresh).Error
				if err != nil {
					log.Printf("SSE query error for event %s: %v", eventID, err)
					continue
				}
				if len(fresh) == 0 {
					continue
				}
				cursor = fresh[len(fresh)-1].CheckedInAt

				for _, ci := range fresh {
					payload, _ := json.Marshal(ci)
					fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
