package ledger

import (
	"testing"

	"github.com/0xtpsn/ethermon-market-api/internal/database"
	"github.com/0xtpsn/ethermon-market-api/internal/marketerrors"
	"github.com/0xtpsn/ethermon-market-api/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gormDB, err := database.NewTestDatabase()
	require.NoError(t, err)
	return NewService(gormDB, 0.025), gormDB
}

func TestDeposit(t *testing.T) {
	service, _ := newTestService(t)

	txn, err := service.Deposit("user1", 500)
	require.NoError(t, err)
	require.Equal(t, types.TxnTypeDeposit, txn.Type)
	require.Equal(t, types.TxnStatusCompleted, txn.Status)

	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 500.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)
}

func TestDeposit_InvalidAmount(t *testing.T) {
	service, _ := newTestService(t)

	tests := []struct {
		name   string
		amount float64
	}{
		{name: "zero", amount: 0},
		{name: "negative", amount: -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Deposit("user1", tt.amount)
			require.ErrorIs(t, err, marketerrors.ErrInvalidAmount)
		})
	}
}

func TestHold(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)

	txnID, err := service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)
	require.NotEmpty(t, txnID)

	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 60.0, balance.Available)
	require.Equal(t, 40.0, balance.Pending)

	txn, err := service.db.GetTransaction(txnID)
	require.NoError(t, err)
	require.Equal(t, types.TxnTypeHold, txn.Type)
	require.Equal(t, types.TxnStatusPending, txn.Status)
	require.Equal(t, "AUC_1", txn.AuctionID)
	require.Equal(t, "BID_1", txn.BidID)
}

func TestHold_InsufficientFunds(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 30)
	require.NoError(t, err)

	_, err = service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.ErrorIs(t, err, marketerrors.ErrInsufficientFunds)

	// No state changes on failure.
	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 30.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)
}

func TestHold_UnknownUser(t *testing.T) {
	service, gormDB := newTestService(t)

	// Users with no ledger history have a zero balance, so any hold fails.
	_, err := service.Hold(gormDB, "stranger", 10, "bid placed", "AUC_1", "BID_1")
	require.ErrorIs(t, err, marketerrors.ErrInsufficientFunds)
}

func TestRelease(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)
	holdID, err := service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)

	_, err = service.Release(gormDB, "user1", 40, "bid replaced", "AUC_1", "BID_1")
	require.NoError(t, err)

	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 100.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)

	// The backing hold is cancelled, not completed.
	hold, err := service.db.GetTransaction(holdID)
	require.NoError(t, err)
	require.Equal(t, types.TxnStatusCancelled, hold.Status)
}

func TestRelease_ExceedsPending(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)
	_, err = service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)

	_, err = service.Release(gormDB, "user1", 50, "bid replaced", "AUC_1", "BID_1")
	require.ErrorIs(t, err, marketerrors.ErrInvariantViolation)
}

func TestCapture(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)
	holdID, err := service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)

	captureID, err := service.Capture(gormDB, "user1", 40, "auction won", "AUC_1", "BID_1")
	require.NoError(t, err)

	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 60.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)

	hold, err := service.db.GetTransaction(holdID)
	require.NoError(t, err)
	require.Equal(t, types.TxnStatusCompleted, hold.Status)

	capture, err := service.db.GetTransaction(captureID)
	require.NoError(t, err)
	require.Equal(t, types.TxnTypeCapture, capture.Type)
	require.Equal(t, types.TxnStatusCompleted, capture.Status)
}

func TestCapture_ExceedsPending(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)
	_, err = service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)

	_, err = service.Capture(gormDB, "user1", 60, "auction won", "AUC_1", "BID_1")
	require.ErrorIs(t, err, marketerrors.ErrInvariantViolation)
}

func TestRefund(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)
	_, err = service.Hold(gormDB, "user1", 40, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)

	refundID, err := service.Refund(gormDB, "user1", 40, "auction ended, bid refunded", "AUC_1", "BID_1")
	require.NoError(t, err)

	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 100.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)

	refund, err := service.db.GetTransaction(refundID)
	require.NoError(t, err)
	require.Equal(t, types.TxnTypeRefund, refund.Type)
}

func TestPayout(t *testing.T) {
	service, gormDB := newTestService(t)

	result, err := service.Payout(gormDB, "seller1", 200, "auction sold", "AUC_1")
	require.NoError(t, err)
	require.Equal(t, 200.0, result.GrossAmount)
	require.Equal(t, 5.0, result.FeeAmount)
	require.Equal(t, 195.0, result.NetAmount)

	balance, err := service.GetBalance("seller1")
	require.NoError(t, err)
	require.Equal(t, 195.0, balance.Available)

	txn, err := service.db.GetTransaction(result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, types.TxnTypePayout, txn.Type)
	require.Equal(t, 200.0, txn.Amount)
	require.Equal(t, 5.0, txn.FeeAmount)
	require.Equal(t, 195.0, txn.NetAmount)
}

func TestSummary(t *testing.T) {
	service, gormDB := newTestService(t)

	_, err := service.Deposit("user1", 500)
	require.NoError(t, err)
	_, err = service.Hold(gormDB, "user1", 100, "bid placed", "AUC_1", "BID_1")
	require.NoError(t, err)
	_, err = service.Capture(gormDB, "user1", 100, "auction won", "AUC_1", "BID_1")
	require.NoError(t, err)
	_, err = service.Payout(gormDB, "user1", 80, "auction sold", "AUC_2")
	require.NoError(t, err)

	summary, err := service.Summary("user1")
	require.NoError(t, err)
	require.Equal(t, "user1", summary.UserID)
	require.Equal(t, 78.0, summary.LifetimeEarned)
	require.Equal(t, 100.0, summary.LifetimeSpent)
	require.Equal(t, 2.0, summary.TotalFeesPaid)
}

func TestSummary_NoActivity(t *testing.T) {
	service, _ := newTestService(t)

	summary, err := service.Summary("nobody")
	require.NoError(t, err)
	require.Equal(t, 0.0, summary.LifetimeEarned)
	require.Equal(t, 0.0, summary.LifetimeSpent)
}

func TestTransactionRollback(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Deposit("user1", 100)
	require.NoError(t, err)

	// A failing operation inside a transaction must leave no trace.
	err = service.db.Transaction(func(tx *gorm.DB) error {
		if _, err := service.Hold(tx, "user1", 60, "bid placed", "AUC_1", "BID_1"); err != nil {
			return err
		}
		_, err := service.Hold(tx, "user1", 60, "bid placed", "AUC_1", "BID_2")
		return err
	})
	require.ErrorIs(t, err, marketerrors.ErrInsufficientFunds)

	balance, err := service.GetBalance("user1")
	require.NoError(t, err)
	require.Equal(t, 100.0, balance.Available)
	require.Equal(t, 0.0, balance.Pending)
}
