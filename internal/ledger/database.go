package ledger

import (
	"errors"
	"fmt"

	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Transaction runs fn inside a single storage transaction, rolling back
// wholesale on error or panic.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) GetBalance(userID string) (*types.Balance, error) {
	var balance types.Balance
	if err := d.db.Where("user_id = ?", userID).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.Balance{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return &balance, nil
}

func (d *Database) GetTransaction(transactionID string) (*types.LedgerTransaction, error) {
	var txn types.LedgerTransaction
	if err := d.db.Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return &txn, nil
}

func (d *Database) GetUserTransactions(userID string) ([]types.LedgerTransaction, error) {
	var txns []types.LedgerTransaction
	if err := d.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return txns, nil
}

// Summary holds lifetime aggregates computed from the transaction log.
type Summary struct {
	UserID         string  `json:"user_id"`
	LifetimeEarned float64 `json:"lifetime_earned"`
	LifetimeSpent  float64 `json:"lifetime_spent"`
	TotalFeesPaid  float64 `json:"total_fees_paid"`
}

// GetSummary derives lifetime earned and spent figures from completed ledger
// transactions. The transaction log is the single source of truth, so these
// are computed per request rather than maintained as counters.
func (d *Database) GetSummary(userID string) (*Summary, error) {
	type result struct {
		Earned float64
		Spent  float64
		Fees   float64
	}
	var r result

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN type = ? THEN net_amount ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS spent,
			COALESCE(SUM(CASE WHEN type = ? THEN fee_amount ELSE 0 END), 0) AS fees
		FROM ledger_transactions
		WHERE user_id = ? AND status = ? AND deleted_at IS NULL`

	if err := d.db.Raw(query,
		types.TxnTypePayout, types.TxnTypeCapture, types.TxnTypePayout,
		userID, types.TxnStatusCompleted,
	).Scan(&r).Error; err != nil {
		return nil, fmt.Errorf("failed to compute ledger summary: %w", err)
	}

	return &Summary{
		UserID:         userID,
		LifetimeEarned: r.Earned,
		LifetimeSpent:  r.Spent,
		TotalFeesPaid:  r.Fees,
	}, nil
}
