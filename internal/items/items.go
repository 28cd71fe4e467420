package items

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns item records and ownership transfers.
type Service struct {
	db *gorm.DB
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: gormDB}
}

// Create inserts a new listed item owned by ownerID inside tx.
func (s *Service) Create(tx *gorm.DB, ownerID, title, description string) (*types.Item, error) {
	item := &types.Item{
		ItemID:      "ITM_" + uuid.New().String(),
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Listed:      true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := tx.Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// Get fetches an item by its ID.
func (s *Service) Get(itemID string) (*types.Item, error) {
	var item types.Item
	if err := s.db.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketerrors.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch item: %w", err)
	}
	return &item, nil
}

// TransferOwnership moves an item from one user to another and delists it,
// inside the caller's transaction. A transfer from anyone but the current
// owner is a contract violation and aborts the settlement.
func (s *Service) TransferOwnership(tx *gorm.DB, itemID, fromUser, toUser string) error {
	var item types.Item
	if err := tx.Where("item_id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return marketerrors.ErrItemNotFound
		}
		return fmt.Errorf("failed to fetch item: %w", err)
	}

	if item.OwnerID != fromUser {
		return fmt.Errorf("%w: item %s owned by %s, transfer requested from %s",
			marketerrors.ErrInvariantViolation, itemID, item.OwnerID, fromUser)
	}

	item.OwnerID = toUser
	item.Listed = false
	item.UpdatedAt = time.Now()
	if err := tx.Save(&item).Error; err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	return nil
}

// Delist marks an item no longer for sale, inside the caller's transaction.
func (s *Service) Delist(tx *gorm.DB, itemID string) error {
	result := tx.Model(&types.Item{}).
		Where("item_id = ?", itemID).
		Updates(map[string]interface{}{
			"listed":     false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to delist item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return marketerrors.ErrItemNotFound
	}
	return nil
}
