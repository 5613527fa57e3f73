package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refundNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestApplyRefundAccumulates(t *testing.T) {
	txn := &Transaction{
		Amount:         decimal.NewFromInt(100),
		RefundedAmount: decimal.Zero,
		Status:         StatusSuccess,
	}

	txn.ApplyRefund(decimal.NewFromInt(40), refundNow)
	assert.Equal(t, StatusSuccess, txn.Status)
	assert.True(t, txn.RefundedAmount.Equal(decimal.NewFromInt(40)))
	assert.True(t, txn.IsRefundable())
	assert.True(t, txn.RemainingRefundable().Equal(decimal.NewFromInt(60)))

	txn.ApplyRefund(decimal.NewFromInt(60), refundNow)
	assert.Equal(t, StatusRefunded, txn.Status)
	assert.True(t, txn.RefundedAmount.Equal(txn.Amount))
	assert.False(t, txn.IsRefundable())
	assert.True(t, txn.RemainingRefundable().IsZero())
}

func TestIsRefundableOnlyForSuccessful(t *testing.T) {
	for _, status := range []TransactionStatus{
		StatusPending, StatusProcessing, StatusFailed, StatusCancelled, StatusRefunded,
	} {
		txn := &Transaction{Amount: decimal.NewFromInt(50), Status: status}
		assert.False(t, txn.IsRefundable(), "status %s", status)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	txn := &Transaction{Status: StatusProcessing}
	txn.MarkPaid("000", "Transaction Paid", nil, refundNow)
	require.NotNil(t, txn.PaidAt)
	first := *txn.PaidAt

	txn.MarkPaid("000", "Transaction Paid", nil, refundNow.Add(time.Hour))
	assert.Equal(t, first, *txn.PaidAt)
	assert.Equal(t, StatusSuccess, txn.Status)
}

func TestMarkProcessingStoresGatewayHandles(t *testing.T) {
	txn := &Transaction{Status: StatusPending}
	txn.MarkProcessing("TOKEN1", "REF1", "https://secure.3gdirectpay.com/payv2.php?ID=TOKEN1", refundNow)

	assert.Equal(t, StatusProcessing, txn.Status)
	assert.Equal(t, "TOKEN1", txn.Token)
	assert.Equal(t, "REF1", txn.GatewayTransactionID)
	assert.Contains(t, txn.PaymentURL, "TOKEN1")
}
