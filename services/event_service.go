package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"race-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// EventService is the thin catalog layer around the booking core: event
// creation, publishing, and the organizer revenue report.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

type TierInput struct {
	Name     string  `json:"name"`
	Capacity int     `json:"capacity"`
	Price    float64 `json:"price"`
}

type CreateEventInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Region      string      `json:"region"`
	IsMountain  bool        `json:"is_mountain"`
	Capacity    int         `json:"capacity"`
	Price       float64     `json:"price"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	Tiers       []TierInput `json:"tiers,omitempty"`
}

func (s *EventService) CreateEvent(organizerID string, in CreateEventInput) (*models.Event, error) {
	if in.Name == "" || in.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: name and start_time are required", ErrValidation)
	}

	event := models.Event{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Region:      in.Region,
		IsMountain:  in.IsMountain,
		Capacity:    in.Capacity,
		Price:       in.Price,
		Status:      models.EventStatusDraft,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	// slug must be unique; suffix with a short id fragment
	event.Slug = fmt.Sprintf("%s-%s", slug.Make(in.Name), event.ID[:8])

	for _, t := range in.Tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: tier name is required", ErrValidation)
		}
		event.Tiers = append(event.Tiers, models.DistanceTier{
			ID:       uuid.NewString(),
			EventID:  event.ID,
			Name:     t.Name,
			Capacity: t.Capacity,
			Price:    t.Price,
		})
	}

	if err := s.DB.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &event, nil
}

// RevenueReport sums (owner + non-cancelled companions) × tier-or-event
// price over bookings whose payment is collected.
type RevenueReport struct {
	EventID      string  `json:"event_id"`
	PaidBookings int     `json:"paid_bookings"`
	Participants int     `json:"participants"`
	Total        float64 `json:"total"`
}

func (s *EventService) Revenue(eventID string) (*RevenueReport, error) {
	var event models.Event
	if err := s.DB.Preload("Tiers").First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	tierPrice := make(map[string]float64, len(event.Tiers))
	for _, t := range event.Tiers {
		tierPrice[t.ID] = t.Price
	}
	priceFor := func(tierID *string) float64 {
		if tierID != nil {
			if p, ok := tierPrice[*tierID]; ok {
				return p
			}
		}
		return event.Price
	}

	var bookings []models.Booking
	if err := s.DB.Preload("Companions").
		Where("event_id = ? AND payment_status = ?", eventID, models.PaymentStatusPaid).
		Find(&bookings).Error; err != nil {
		return nil, err
	}

	report := RevenueReport{EventID: eventID, PaidBookings: len(bookings)}
	for _, b := range bookings {
		report.Participants++
		report.Total += priceFor(b.DistanceTierID)
		for _, comp := range b.Companions {
			if comp.Status == models.BookingStatusCancelled {
				continue
			}
			report.Participants++
			report.Total += priceFor(comp.DistanceTierID)
		}
	}
	return &report, nil
}

// --- Fiber endpoints ---

func (s *EventService) CreateEventEndpoint(c *fiber.Ctx) error {
	organizerID := c.Locals("user_id").(string)

	var in CreateEventInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	event, err := s.CreateEvent(organizerID, in)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("❌ [EVENT] create failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create event"})
	}
	return c.Status(201).JSON(event)
}

func (s *EventService) GetAllEventsEndpoint(c *fiber.Ctx) error {
	var events []models.Event
	if err := s.DB.Preload("Tiers").
		Where("status = ?", models.EventStatusPublished).
		Order("start_time ASC").
		Find(&events).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	for i := range events {
		events[i].AvailableSlots = availableSlots(events[i].Capacity, events[i].Reserved)
	}
	return c.JSON(events)
}

func (s *EventService) GetEventEndpoint(c *fiber.Ctx) error {
	var event models.Event
	if err := s.DB.Preload("Tiers").First(&event, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "event not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	event.AvailableSlots = availableSlots(event.Capacity, event.Reserved)
	return c.JSON(event)
}

func (s *EventService) UpdateEventStatusEndpoint(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	switch req.Status {
	case models.EventStatusDraft, models.EventStatusPublished, models.EventStatusCompleted:
	default:
		return c.Status(400).JSON(fiber.Map{"error": "invalid status"})
	}

	res := s.DB.Model(&models.Event{}).
		Where("id = ?", c.Params("id")).
		Update("status", req.Status)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "event not found"})
	}
	return c.JSON(fiber.Map{"message": "status updated", "status": req.Status})
}

func (s *EventService) RevenueEndpoint(c *fiber.Ctx) error {
	report, err := s.Revenue(c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "event not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "failed to build revenue report"})
	}
	return c.JSON(report)
}

func availableSlots(capacity, reserved int) int64 {
	if capacity <= 0 {
		return -1 // unlimited
	}
	n := capacity - reserved
	if n < 0 {
		n = 0
	}
	return int64(n)
}
