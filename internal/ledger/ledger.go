package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service enforces the balance invariants and records every money movement as
// an immutable ledger transaction. The escrow operations (Hold, Release,
// Capture, Refund) and Payout run against a caller-supplied transaction so a
// bid or settlement state change commits atomically with its balance change.
type Service struct {
	db      *Database
	feeRate float64
}

// NewService creates a new ledger service. feeRate is the platform fee
// fraction deducted from seller payouts.
func NewService(gormDB *gorm.DB, feeRate float64) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		feeRate: feeRate,
	}
}

// Hold moves amount from a user's available balance into escrow and appends a
// pending HOLD transaction. Fails with ErrInsufficientFunds when the user
// cannot cover the amount; no state changes on failure.
func (s *Service) Hold(tx *gorm.DB, userID string, amount float64, reason, auctionID, bidID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: hold of %.2f for user %s", marketerrors.ErrInvalidAmount, amount, userID)
	}

	balance, err := getOrCreateBalance(tx, userID)
	if err != nil {
		return "", err
	}

	if balance.Available < amount {
		return "", fmt.Errorf("%w: available %.2f, hold %.2f", marketerrors.ErrInsufficientFunds, balance.Available, amount)
	}

	balance.Available -= amount
	balance.Pending += amount
	if err := tx.Save(balance).Error; err != nil {
		return "", fmt.Errorf("failed to update balance: %w", err)
	}

	txn := &types.LedgerTransaction{
		TransactionID: "TXN_" + uuid.New().String(),
		UserID:        userID,
		Type:          types.TxnTypeHold,
		Amount:        amount,
		Status:        types.TxnStatusPending,
		Reason:        reason,
		AuctionID:     auctionID,
		BidID:         bidID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := tx.Create(txn).Error; err != nil {
		return "", fmt.Errorf("failed to record hold transaction: %w", err)
	}

	return txn.TransactionID, nil
}

// Release reverses a hold: escrowed funds return to the user's available
// balance. Releasing more than is held is a contract violation, not a user
// error, and aborts the enclosing transaction.
func (s *Service) Release(tx *gorm.DB, userID string, amount float64, reason, auctionID, bidID string) (string, error) {
	return s.unhold(tx, userID, amount, types.TxnTypeRelease, reason, auctionID, bidID)
}

// Refund is a release performed by settlement for a losing or expired bid.
// Same balance movement as Release, recorded under its own transaction type.
func (s *Service) Refund(tx *gorm.DB, userID string, amount float64, reason, auctionID, bidID string) (string, error) {
	return s.unhold(tx, userID, amount, types.TxnTypeRefund, reason, auctionID, bidID)
}

func (s *Service) unhold(tx *gorm.DB, userID string, amount float64, txnType, reason, auctionID, bidID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: release of %.2f for user %s", marketerrors.ErrInvalidAmount, amount, userID)
	}

	balance, err := getOrCreateBalance(tx, userID)
	if err != nil {
		return "", err
	}

	if balance.Pending < amount {
		log.Error().
			Str("service", "ledger").
			Str("user_id", userID).
			Float64("pending", balance.Pending).
			Float64("amount", amount).
			Msg("release exceeds pending balance")
		return "", fmt.Errorf("%w: pending %.2f, release %.2f for user %s",
			marketerrors.ErrInvariantViolation, balance.Pending, amount, userID)
	}

	balance.Pending -= amount
	balance.Available += amount
	if err := tx.Save(balance).Error; err != nil {
		return "", fmt.Errorf("failed to update balance: %w", err)
	}

	if err := cancelPendingHolds(tx, userID, bidID); err != nil {
		return "", err
	}

	txn := &types.LedgerTransaction{
		TransactionID: "TXN_" + uuid.New().String(),
		UserID:        userID,
		Type:          txnType,
		Amount:        amount,
		Status:        types.TxnStatusCompleted,
		Reason:        reason,
		AuctionID:     auctionID,
		BidID:         bidID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := tx.Create(txn).Error; err != nil {
		return "", fmt.Errorf("failed to record %s transaction: %w", txnType, err)
	}

	return txn.TransactionID, nil
}

// Capture settles a hold into a completed spend: escrowed funds leave the
// user permanently. Used for the auction winner.
func (s *Service) Capture(tx *gorm.DB, userID string, amount float64, reason, auctionID, bidID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: capture of %.2f for user %s", marketerrors.ErrInvalidAmount, amount, userID)
	}

	balance, err := getOrCreateBalance(tx, userID)
	if err != nil {
		return "", err
	}

	if balance.Pending < amount {
		log.Error().
			Str("service", "ledger").
			Str("user_id", userID).
			Float64("pending", balance.Pending).
			Float64("amount", amount).
			Msg("capture exceeds pending balance")
		return "", fmt.Errorf("%w: pending %.2f, capture %.2f for user %s",
			marketerrors.ErrInvariantViolation, balance.Pending, amount, userID)
	}

	balance.Pending -= amount
	if err := tx.Save(balance).Error; err != nil {
		return "", fmt.Errorf("failed to update balance: %w", err)
	}

	// The hold that backed this capture is now settled.
	if err := tx.Model(&types.LedgerTransaction{}).
		Where("user_id = ? AND bid_id = ? AND type = ? AND status = ?",
			userID, bidID, types.TxnTypeHold, types.TxnStatusPending).
		Updates(map[string]interface{}{
			"status":     types.TxnStatusCompleted,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return "", fmt.Errorf("failed to settle hold transactions: %w", err)
	}

	txn := &types.LedgerTransaction{
		TransactionID: "TXN_" + uuid.New().String(),
		UserID:        userID,
		Type:          types.TxnTypeCapture,
		Amount:        amount,
		Status:        types.TxnStatusCompleted,
		Reason:        reason,
		AuctionID:     auctionID,
		BidID:         bidID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := tx.Create(txn).Error; err != nil {
		return "", fmt.Errorf("failed to record capture transaction: %w", err)
	}

	return txn.TransactionID, nil
}

// PayoutResult reports the gross, fee and net amounts of a seller payout.
type PayoutResult struct {
	TransactionID string  `json:"transaction_id"`
	GrossAmount   float64 `json:"gross_amount"`
	FeeAmount     float64 `json:"fee_amount"`
	NetAmount     float64 `json:"net_amount"`
}

// Payout credits a seller's available balance with the winning amount net of
// the platform fee. No prior hold is required.
func (s *Service) Payout(tx *gorm.DB, userID string, gross float64, reason, auctionID string) (*PayoutResult, error) {
	if gross <= 0 {
		return nil, fmt.Errorf("%w: payout of %.2f for user %s", marketerrors.ErrInvalidAmount, gross, userID)
	}

	fee := gross * s.feeRate
	net := gross - fee

	balance, err := getOrCreateBalance(tx, userID)
	if err != nil {
		return nil, err
	}

	balance.Available += net
	if err := tx.Save(balance).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	txn := &types.LedgerTransaction{
		TransactionID: "TXN_" + uuid.New().String(),
		UserID:        userID,
		Type:          types.TxnTypePayout,
		Amount:        gross,
		FeeAmount:     fee,
		NetAmount:     net,
		Status:        types.TxnStatusCompleted,
		Reason:        reason,
		AuctionID:     auctionID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to record payout transaction: %w", err)
	}

	return &PayoutResult{
		TransactionID: txn.TransactionID,
		GrossAmount:   gross,
		FeeAmount:     fee,
		NetAmount:     net,
	}, nil
}

// Deposit credits a user's available balance directly. It runs in its own
// transaction since no bid or auction state changes alongside it.
func (s *Service) Deposit(userID string, amount float64) (*types.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit of %.2f", marketerrors.ErrInvalidAmount, amount)
	}

	var txn *types.LedgerTransaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		balance, err := getOrCreateBalance(tx, userID)
		if err != nil {
			return err
		}

		balance.Available += amount
		if err := tx.Save(balance).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		txn = &types.LedgerTransaction{
			TransactionID: "TXN_" + uuid.New().String(),
			UserID:        userID,
			Type:          types.TxnTypeDeposit,
			Amount:        amount,
			Status:        types.TxnStatusCompleted,
			Reason:        "balance deposit",
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// GetBalance returns a user's current position. Users with no ledger activity
// read as zero balances.
func (s *Service) GetBalance(userID string) (*types.Balance, error) {
	return s.db.GetBalance(userID)
}

// GetBalanceTx reads a balance inside the caller's transaction, without
// creating a row for unseen users.
func (s *Service) GetBalanceTx(tx *gorm.DB, userID string) (*types.Balance, error) {
	var balance types.Balance
	if err := tx.Where("user_id = ?", userID).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.Balance{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return &balance, nil
}

// Summary aggregates a user's lifetime figures from the transaction log on
// demand; nothing is cached.
func (s *Service) Summary(userID string) (*Summary, error) {
	return s.db.GetSummary(userID)
}

func getOrCreateBalance(tx *gorm.DB, userID string) (*types.Balance, error) {
	var balance types.Balance
	err := tx.Where("user_id = ?", userID).First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}

	balance = types.Balance{
		UserID:    userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := tx.Create(&balance).Error; err != nil {
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}
	return &balance, nil
}

func cancelPendingHolds(tx *gorm.DB, userID, bidID string) error {
	if err := tx.Model(&types.LedgerTransaction{}).
		Where("user_id = ? AND bid_id = ? AND type = ? AND status = ?",
			userID, bidID, types.TxnTypeHold, types.TxnStatusPending).
		Updates(map[string]interface{}{
			"status":     types.TxnStatusCancelled,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to cancel hold transactions: %w", err)
	}
	return nil
}
