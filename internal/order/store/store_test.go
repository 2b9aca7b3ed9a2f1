package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/autogenerations/printsync/internal/etsy"
	"github.com/autogenerations/printsync/internal/order/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Address{},
		&domain.Buyer{},
		&domain.Seller{},
		&domain.Receipt{},
		&domain.Transaction{},
		&domain.ReceiptShipment{},
	))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{DB: openTestDB(t), Log: zap.NewNop(), GenID: node})
}

func addressRecord() etsy.AddressRecord {
	return etsy.AddressRecord{
		Zip:        "90210",
		City:       "Beverly Hills",
		State:      "CA",
		Country:    "US",
		FirstLine:  "1 Main St",
		SecondLine: "Apt 2",
	}
}

func receiptRecord(id int64) etsy.ReceiptRecord {
	return etsy.ReceiptRecord{
		ReceiptID:    id,
		Status:       "paid",
		BuyerUserID:  42,
		BuyerEmail:   "buyer@example.com",
		BuyerName:    "Jane Buyer",
		SellerUserID: 7,
		SellerEmail:  "seller@example.com",
		CurrencyCode: "USD",
		CreatedAt:    time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
		Address:      addressRecord(),
	}
}

func TestEnsureAddressStructuralIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.EnsureAddress(ctx, addressRecord())
	require.NoError(t, err)

	// Same tuple resolves to the same row.
	again, err := s.EnsureAddress(ctx, addressRecord())
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Any differing field is a different address.
	moved := addressRecord()
	moved.FirstLine = "2 Main St"
	other, err := s.EnsureAddress(ctx, moved)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	// An empty second line must not widen the match onto a populated one.
	noApt := addressRecord()
	noApt.SecondLine = ""
	bare, err := s.EnsureAddress(ctx, noApt)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, bare.ID)

	var count int64
	require.NoError(t, s.DB().Model(&domain.Address{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestEnsureBuyerCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := receiptRecord(3001)
	buyer, err := s.EnsureBuyer(ctx, rec)
	require.NoError(t, err)

	rec.BuyerEmail = "new@example.com"
	updated, err := s.EnsureBuyer(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, updated.ID)
	assert.Equal(t, "new@example.com", updated.Email)

	var count int64
	require.NoError(t, s.DB().Model(&domain.Buyer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertReceiptIdempotentAndLifecyclePreserving(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := receiptRecord(3001)
	address, err := s.EnsureAddress(ctx, rec.Address)
	require.NoError(t, err)
	buyer, err := s.EnsureBuyer(ctx, rec)
	require.NoError(t, err)
	seller, err := s.EnsureSeller(ctx, rec)
	require.NoError(t, err)

	receipt, created, err := s.UpsertReceipt(ctx, rec, address.ID, buyer.ID, seller.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.ReconcileStatusIncomplete, receipt.ReconcileStatus)
	assert.True(t, receipt.NeedsFulfillment)

	// Simulate a completed submission, then re-ingest the same payload.
	receipt.NeedsFulfillment = false
	receipt.ReconcileStatus = domain.ReconcileStatusError
	require.NoError(t, s.SaveReceipt(ctx, receipt))

	rec.MessageFromBuyer = "updated message"
	again, created, err := s.UpsertReceipt(ctx, rec, address.ID, buyer.ID, seller.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, receipt.ID, again.ID)
	assert.Equal(t, "updated message", again.MessageFromBuyer)
	// Wire-derived fields refresh; local lifecycle columns stay put.
	assert.False(t, again.NeedsFulfillment)
	assert.Equal(t, domain.ReconcileStatusError, again.ReconcileStatus)

	var count int64
	require.NoError(t, s.DB().Model(&domain.Receipt{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertTransactionIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := receiptRecord(3001)
	address, err := s.EnsureAddress(ctx, rec.Address)
	require.NoError(t, err)
	buyer, err := s.EnsureBuyer(ctx, rec)
	require.NoError(t, err)
	seller, err := s.EnsureSeller(ctx, rec)
	require.NoError(t, err)
	receipt, _, err := s.UpsertReceipt(ctx, rec, address.ID, buyer.ID, seller.ID)
	require.NoError(t, err)

	txRec := etsy.TransactionRecord{TransactionID: 9001, SKU: "SKU-SUNSET", Quantity: 2}
	tx, err := s.UpsertTransaction(ctx, txRec, receipt.ID, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentStatusNeedsFulfillment, tx.FulfillmentStatus)

	txRec.Quantity = 3
	again, err := s.UpsertTransaction(ctx, txRec, receipt.ID, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
	assert.Equal(t, 3, again.Quantity)

	var count int64
	require.NoError(t, s.DB().Model(&domain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertShipmentKeyedByShippingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	receiptRef := snowflake.ID(1)

	rec := etsy.ShipmentRecord{ReceiptShippingID: 88, CarrierName: "usps", TrackingCode: "TRK1"}
	first, err := s.UpsertShipment(ctx, rec, receiptRef)
	require.NoError(t, err)

	rec.TrackingCode = "TRK2"
	again, err := s.UpsertShipment(ctx, rec, receiptRef)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "TRK2", again.TrackingCode)

	count, err := s.CountShipments(ctx, receiptRef)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRecordPostedShipmentCountsTowardGate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	receiptRef := snowflake.ID(2)

	count, err := s.CountShipments(ctx, receiptRef)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = s.RecordPostedShipment(ctx, receiptRef, "fedex", "TRK9", "shipped")
	require.NoError(t, err)

	count, err = s.CountShipments(ctx, receiptRef)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReceiptWorkingSets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed := func(id int64, created time.Time, payment domain.PaymentStatus, reconcile domain.ReconcileStatus, needs bool) {
		rec := receiptRecord(id)
		rec.Status = string(payment)
		rec.CreatedAt = created
		address, err := s.EnsureAddress(ctx, rec.Address)
		require.NoError(t, err)
		buyer, err := s.EnsureBuyer(ctx, rec)
		require.NoError(t, err)
		seller, err := s.EnsureSeller(ctx, rec)
		require.NoError(t, err)
		receipt, _, err := s.UpsertReceipt(ctx, rec, address.ID, buyer.ID, seller.ID)
		require.NoError(t, err)
		receipt.ReconcileStatus = reconcile
		receipt.NeedsFulfillment = needs
		require.NoError(t, s.SaveReceipt(ctx, receipt))
	}

	base := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	seed(1, base, domain.PaymentStatusPaid, domain.ReconcileStatusIncomplete, true)        // submittable
	seed(2, base.Add(time.Hour), domain.PaymentStatusOpen, domain.ReconcileStatusIncomplete, true)  // unpaid
	seed(3, base.Add(2*time.Hour), domain.PaymentStatusPaid, domain.ReconcileStatusComplete, true)  // settled
	seed(4, base.Add(3*time.Hour), domain.PaymentStatusPaid, domain.ReconcileStatusError, true)     // errored, retries
	seed(5, base.Add(4*time.Hour), domain.PaymentStatusPaid, domain.ReconcileStatusIncomplete, false) // in flight

	submittable, err := s.ListSubmittable(ctx)
	require.NoError(t, err)
	ids := receiptIDs(submittable)
	assert.Equal(t, []int64{1, 4}, ids)

	inFlight, err := s.ListInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, receiptIDs(inFlight))

	earliest, err := s.EarliestOpenReceipt(ctx)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.Equal(t, int64(1), earliest.ReceiptID)
}

func receiptIDs(receipts []*domain.Receipt) []int64 {
	ids := make([]int64, 0, len(receipts))
	for _, r := range receipts {
		ids = append(ids, r.ReceiptID)
	}
	return ids
}
