package services

import (
	"fmt"

	"race-registration-system/models"

	"gorm.io/gorm"
)

// CapacityService is the capacity ledger: it grants and releases slots
// against an event's (or a distance tier's) denormalized reserved counter.
// Grants use a single conditional UPDATE so two concurrent reservations
// can never both take the last slot; a plain read-then-write is never used.
type CapacityService struct {
	DB *gorm.DB
}

func NewCapacityService(db *gorm.DB) *CapacityService {
	return &CapacityService{DB: db}
}

// Reserve grants count slots from the pool identified by eventID and, when
// set, tierID. It must be called inside the transaction that creates or
// restores the principals occupying the slots, so a failed grant leaves no
// partial state. Returns ErrCapacityExceeded without mutation when the
// pool cannot hold count more principals. Capacity 0 means unlimited.
func (s *CapacityService) Reserve(tx *gorm.DB, eventID string, tierID *string, count int) error {
	if count <= 0 {
		return nil
	}

	if tierID != nil {
		res := tx.Model(&models.DistanceTier{}).
			Where("id = ? AND event_id = ? AND (capacity = 0 OR reserved + ? <= capacity)", *tierID, eventID, count).
			UpdateColumn("reserved", gorm.Expr("reserved + ?", count))
		if res.Error != nil {
			return fmt.Errorf("failed to reserve tier slots: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.reserveMiss(tx, &models.DistanceTier{}, *tierID)
		}
		return nil
	}

	res := tx.Model(&models.Event{}).
		Where("id = ? AND (capacity = 0 OR reserved + ? <= capacity)", eventID, count).
		UpdateColumn("reserved", gorm.Expr("reserved + ?", count))
	if res.Error != nil {
		return fmt.Errorf("failed to reserve event slots: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.reserveMiss(tx, &models.Event{}, eventID)
	}
	return nil
}

// reserveMiss distinguishes a full pool from a missing one.
func (s *CapacityService) reserveMiss(tx *gorm.DB, model interface{}, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to resolve pool %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrCapacityExceeded
}

// Release returns count slots to the pool. Releasing more than is held
// clamps at zero instead of going negative, so repeated releases are a
// no-op rather than an error.
func (s *CapacityService) Release(tx *gorm.DB, eventID string, tierID *string, count int) error {
	if count <= 0 {
		return nil
	}

	if tierID != nil {
		res := tx.Model(&models.DistanceTier{}).
			Where("id = ? AND reserved >= ?", *tierID, count).
			UpdateColumn("reserved", gorm.Expr("reserved - ?", count))
		if res.Error != nil {
			return fmt.Errorf("failed to release tier slots: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// held fewer than count: clamp
			return tx.Model(&models.DistanceTier{}).
				Where("id = ?", *tierID).
				UpdateColumn("reserved", 0).Error
		}
		return nil
	}

	res := tx.Model(&models.Event{}).
		Where("id = ? AND reserved >= ?", eventID, count).
		UpdateColumn("reserved", gorm.Expr("reserved - ?", count))
	if res.Error != nil {
		return fmt.Errorf("failed to release event slots: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return tx.Model(&models.Event{}).
			Where("id = ?", eventID).
			UpdateColumn("reserved", 0).Error
	}
	return nil
}
