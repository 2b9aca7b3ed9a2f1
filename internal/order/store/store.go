// Package store persists the marketplace-side order graph with the
// get-or-create-or-update discipline that keeps re-runs of the batch loops
// from duplicating rows.
package store

import (
	"context"

	"github.com/autogenerations/printsync/internal/etsy"
	"github.com/autogenerations/printsync/internal/order/domain"
	"github.com/autogenerations/printsync/pkg/db/option"
	"github.com/autogenerations/printsync/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Store struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	receipts     repository.Repository[domain.Receipt]
	transactions repository.Repository[domain.Transaction]
	addresses    repository.Repository[domain.Address]
	buyers       repository.Repository[domain.Buyer]
	sellers      repository.Repository[domain.Seller]
	shipments    repository.Repository[domain.ReceiptShipment]
}

func New(p Params) *Store {
	return newStore(p.DB, p.Log, p.GenID)
}

func newStore(db *gorm.DB, log *zap.Logger, genID *snowflake.Node) *Store {
	return &Store{
		db:    db,
		log:   log.Named("order.store"),
		genID: genID,

		receipts:     repository.ProvideStore[domain.Receipt](db),
		transactions: repository.ProvideStore[domain.Transaction](db),
		addresses:    repository.ProvideStore[domain.Address](db),
		buyers:       repository.ProvideStore[domain.Buyer](db),
		sellers:      repository.ProvideStore[domain.Seller](db),
		shipments:    repository.ProvideStore[domain.ReceiptShipment](db),
	}
}

// WithTrx returns a view of the store bound to tx so one receipt's full
// sub-entity graph commits as a single unit of work.
func (s *Store) WithTrx(tx *gorm.DB) *Store {
	return newStore(tx, s.log, s.genID)
}

// DB exposes the underlying handle for transaction scoping.
func (s *Store) DB() *gorm.DB { return s.db }

// EnsureAddress resolves an address by its structural identity, creating a
// new row only when any field differs. Rows are never mutated.
func (s *Store) EnsureAddress(ctx context.Context, rec etsy.AddressRecord) (*domain.Address, error) {
	// A struct filter would skip empty fields (gorm ignores zero values),
	// silently widening the match, so every tuple element is an explicit
	// condition.
	existing, err := s.addresses.FindOne(ctx, &domain.Address{},
		option.ApplyOperator(option.Condition{Field: "zip", Operator: option.EQ, Value: rec.Zip}),
		option.ApplyOperator(option.Condition{Field: "city", Operator: option.EQ, Value: rec.City}),
		option.ApplyOperator(option.Condition{Field: "state", Operator: option.EQ, Value: rec.State}),
		option.ApplyOperator(option.Condition{Field: "country", Operator: option.EQ, Value: rec.Country}),
		option.ApplyOperator(option.Condition{Field: "first_line", Operator: option.EQ, Value: rec.FirstLine}),
		option.ApplyOperator(option.Condition{Field: "second_line", Operator: option.EQ, Value: rec.SecondLine}),
	)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	address := &domain.Address{
		ID:         s.genID.Generate(),
		Zip:        rec.Zip,
		City:       rec.City,
		State:      rec.State,
		Country:    rec.Country,
		FirstLine:  rec.FirstLine,
		SecondLine: rec.SecondLine,
	}
	if err := repository.CreateChecked(ctx, s.addresses, address); err != nil {
		return nil, err
	}
	return address, nil
}

// EnsureBuyer resolves the buyer by marketplace user ID.
func (s *Store) EnsureBuyer(ctx context.Context, rec etsy.ReceiptRecord) (*domain.Buyer, error) {
	existing, err := s.buyers.FindOne(ctx, &domain.Buyer{BuyerID: rec.BuyerUserID})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		buyer := &domain.Buyer{
			ID:      s.genID.Generate(),
			BuyerID: rec.BuyerUserID,
			Email:   rec.BuyerEmail,
			Name:    rec.BuyerName,
		}
		if err := repository.CreateChecked(ctx, s.buyers, buyer); err != nil {
			return nil, err
		}
		return buyer, nil
	}

	desired := *existing
	desired.Email = rec.BuyerEmail
	desired.Name = rec.BuyerName
	if repository.Changed(existing, &desired) {
		if err := s.buyers.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

// EnsureSeller resolves the seller by marketplace user ID.
func (s *Store) EnsureSeller(ctx context.Context, rec etsy.ReceiptRecord) (*domain.Seller, error) {
	existing, err := s.sellers.FindOne(ctx, &domain.Seller{SellerID: rec.SellerUserID})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		seller := &domain.Seller{
			ID:       s.genID.Generate(),
			SellerID: rec.SellerUserID,
			Email:    rec.SellerEmail,
		}
		if err := repository.CreateChecked(ctx, s.sellers, seller); err != nil {
			return nil, err
		}
		return seller, nil
	}

	desired := *existing
	desired.Email = rec.SellerEmail
	if repository.Changed(existing, &desired) {
		if err := s.sellers.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

// UpsertReceipt materializes a receipt payload. New receipts start
// incomplete and needing fulfillment; re-ingests refresh the wire-derived
// fields but never touch the local lifecycle columns.
func (s *Store) UpsertReceipt(ctx context.Context, rec etsy.ReceiptRecord, addressRef, buyerRef, sellerRef snowflake.ID) (*domain.Receipt, bool, error) {
	existing, err := s.receipts.FindOne(ctx, &domain.Receipt{ReceiptID: rec.ReceiptID})
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		receipt := &domain.Receipt{
			ID:               s.genID.Generate(),
			ReceiptID:        rec.ReceiptID,
			PaymentStatus:    domain.PaymentStatus(rec.Status),
			ReconcileStatus:  domain.ReconcileStatusIncomplete,
			NeedsFulfillment: true,
			AddressID:        addressRef,
			BuyerID:          buyerRef,
			SellerID:         sellerRef,
		}
		applyReceiptRecord(receipt, rec)
		if err := repository.CreateChecked(ctx, s.receipts, receipt); err != nil {
			return nil, false, err
		}
		return receipt, true, nil
	}

	desired := *existing
	desired.PaymentStatus = domain.PaymentStatus(rec.Status)
	desired.AddressID = addressRef
	desired.BuyerID = buyerRef
	desired.SellerID = sellerRef
	applyReceiptRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		if err := s.receipts.Save(ctx, &desired); err != nil {
			return nil, false, err
		}
	}
	return &desired, false, nil
}

func applyReceiptRecord(receipt *domain.Receipt, rec etsy.ReceiptRecord) {
	receipt.MessageFromBuyer = rec.MessageFromBuyer
	receipt.MessageFromSeller = rec.MessageFromSeller
	receipt.IsGift = rec.IsGift
	receipt.GiftMessage = rec.GiftMessage
	receipt.GiftSender = rec.GiftSender
	receipt.GrandTotal = rec.GrandTotal
	receipt.SubTotal = rec.SubTotal
	receipt.TotalPrice = rec.TotalPrice
	receipt.ShippingCost = rec.ShippingCost
	receipt.TaxCost = rec.TaxCost
	receipt.VatCost = rec.VatCost
	receipt.Discount = rec.Discount
	receipt.GiftWrapPrice = rec.GiftWrapPrice
	receipt.CurrencyCode = rec.CurrencyCode
	receipt.MarketCreatedAt = rec.CreatedAt
	receipt.MarketUpdatedAt = rec.UpdatedAt
}

// UpsertTransaction materializes one line item.
func (s *Store) UpsertTransaction(ctx context.Context, rec etsy.TransactionRecord, receiptRef snowflake.ID, listingRef, productRef, profileRef *snowflake.ID) (*domain.Transaction, error) {
	existing, err := s.transactions.FindOne(ctx, &domain.Transaction{TransactionID: rec.TransactionID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		tx := &domain.Transaction{
			ID:                s.genID.Generate(),
			TransactionID:     rec.TransactionID,
			ReceiptRef:        receiptRef,
			FulfillmentStatus: domain.FulfillmentStatusNeedsFulfillment,
		}
		applyTransactionRecord(tx, rec, listingRef, productRef, profileRef)
		if err := repository.CreateChecked(ctx, s.transactions, tx); err != nil {
			return nil, err
		}
		return tx, nil
	}

	desired := *existing
	desired.ReceiptRef = receiptRef
	applyTransactionRecord(&desired, rec, listingRef, productRef, profileRef)
	if repository.Changed(existing, &desired) {
		if err := s.transactions.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func applyTransactionRecord(tx *domain.Transaction, rec etsy.TransactionRecord, listingRef, productRef, profileRef *snowflake.ID) {
	tx.Title = rec.Title
	tx.Description = rec.Description
	tx.SKU = rec.SKU
	tx.Quantity = rec.Quantity
	tx.Price = rec.Price
	tx.ShippingCost = rec.ShippingCost
	tx.CurrencyCode = rec.CurrencyCode
	tx.ListingRef = listingRef
	tx.ProductRef = productRef
	tx.ShippingProfileRef = profileRef
	tx.MinProcessingDays = rec.MinProcessingDays
	tx.MaxProcessingDays = rec.MaxProcessingDays
	tx.ExpectedShipDate = rec.ExpectedShipDate
	tx.BuyerCouponApplied = rec.BuyerCoupon
	tx.PaidAt = rec.PaidAt
	tx.ShippedAt = rec.ShippedAt
}

// UpsertShipment materializes a marketplace shipment confirmation keyed by
// its receipt-shipping ID.
func (s *Store) UpsertShipment(ctx context.Context, rec etsy.ShipmentRecord, receiptRef snowflake.ID) (*domain.ReceiptShipment, error) {
	var existing *domain.ReceiptShipment
	var err error
	if rec.ReceiptShippingID != 0 {
		existing, err = s.shipments.FindOne(ctx, &domain.ReceiptShipment{ShipmentID: &rec.ReceiptShippingID})
		if err != nil {
			return nil, err
		}
	}

	if existing == nil {
		shipment := &domain.ReceiptShipment{
			ID:         s.genID.Generate(),
			ReceiptRef: receiptRef,
		}
		if rec.ReceiptShippingID != 0 {
			id := rec.ReceiptShippingID
			shipment.ShipmentID = &id
		}
		applyShipmentRecord(shipment, rec)
		if err := repository.CreateChecked(ctx, s.shipments, shipment); err != nil {
			return nil, err
		}
		return shipment, nil
	}

	desired := *existing
	desired.ReceiptRef = receiptRef
	applyShipmentRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		if err := s.shipments.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func applyShipmentRecord(shipment *domain.ReceiptShipment, rec etsy.ShipmentRecord) {
	shipment.CarrierName = rec.CarrierName
	shipment.TrackingCode = rec.TrackingCode
	shipment.NotificationDate = rec.NotificationDate
}

// RecordPostedShipment persists the shipment confirmation the poll loop
// just posted back to the marketplace.
func (s *Store) RecordPostedShipment(ctx context.Context, receiptRef snowflake.ID, carrier, trackingCode, note string) (*domain.ReceiptShipment, error) {
	shipment := &domain.ReceiptShipment{
		ID:           s.genID.Generate(),
		ReceiptRef:   receiptRef,
		CarrierName:  carrier,
		TrackingCode: trackingCode,
		BuyerNote:    note,
	}
	if err := repository.CreateChecked(ctx, s.shipments, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// CountShipments reports how many shipment confirmations a receipt carries.
// Zero is the gate for the terminal post-back.
func (s *Store) CountShipments(ctx context.Context, receiptRef snowflake.ID) (int64, error) {
	return s.shipments.Count(ctx, &domain.ReceiptShipment{ReceiptRef: receiptRef})
}

// EarliestOpenReceipt returns the oldest receipt whose reconciliation is not
// yet terminal, or nil when everything is settled.
func (s *Store) EarliestOpenReceipt(ctx context.Context) (*domain.Receipt, error) {
	return s.receipts.FindOne(ctx, &domain.Receipt{},
		option.ApplyOperator(option.Condition{Field: "reconcile_status", Operator: option.NEQ, Value: string(domain.ReconcileStatusComplete)}),
		option.ApplyOperator(option.Condition{Field: "reconcile_status", Operator: option.NEQ, Value: string(domain.ReconcileStatusCanceled)}),
		option.WithOrder("market_created_at asc"),
	)
}

// ListSubmittable returns receipts eligible for partner submission: paid,
// still needing fulfillment, and not terminally reconciled. Errored
// receipts stay eligible so the next pass retries them.
func (s *Store) ListSubmittable(ctx context.Context) ([]*domain.Receipt, error) {
	return s.receipts.Find(ctx,
		&domain.Receipt{NeedsFulfillment: true, PaymentStatus: domain.PaymentStatusPaid},
		option.ApplyOperator(option.Condition{Field: "reconcile_status", Operator: option.NEQ, Value: string(domain.ReconcileStatusComplete)}),
		option.ApplyOperator(option.Condition{Field: "reconcile_status", Operator: option.NEQ, Value: string(domain.ReconcileStatusCanceled)}),
		option.WithOrder("market_created_at asc"),
	)
}

// ListInFlight returns receipts already submitted but not yet terminal,
// the poll loop's working set.
func (s *Store) ListInFlight(ctx context.Context) ([]*domain.Receipt, error) {
	return s.receipts.Find(ctx, &domain.Receipt{},
		option.ApplyOperator(option.Condition{Field: "needs_fulfillment", Operator: option.EQ, Value: false}),
		option.ApplyOperator(option.Condition{Field: "reconcile_status", Operator: option.NEQ, Value: string(domain.ReconcileStatusComplete)}),
		option.ApplyOperator(option.Condition{Field: "reconcile_status", Operator: option.NEQ, Value: string(domain.ReconcileStatusCanceled)}),
		option.WithOrder("market_created_at asc"),
	)
}

// ListTransactions returns the line items of a receipt.
func (s *Store) ListTransactions(ctx context.Context, receiptRef snowflake.ID) ([]*domain.Transaction, error) {
	return s.transactions.Find(ctx, &domain.Transaction{ReceiptRef: receiptRef})
}

// GetAddress returns an address by local ID.
func (s *Store) GetAddress(ctx context.Context, id snowflake.ID) (*domain.Address, error) {
	return s.addresses.FindOne(ctx, &domain.Address{ID: id})
}

// GetBuyer returns a buyer by local ID.
func (s *Store) GetBuyer(ctx context.Context, id snowflake.ID) (*domain.Buyer, error) {
	return s.buyers.FindOne(ctx, &domain.Buyer{ID: id})
}

// GetReceipt returns a receipt by local ID.
func (s *Store) GetReceipt(ctx context.Context, id snowflake.ID) (*domain.Receipt, error) {
	return s.receipts.FindOne(ctx, &domain.Receipt{ID: id})
}

// SaveReceipt persists lifecycle mutations made by the reconcile loops.
func (s *Store) SaveReceipt(ctx context.Context, receipt *domain.Receipt) error {
	return s.receipts.Save(ctx, receipt)
}

// SaveTransaction persists lifecycle mutations made by the reconcile loops.
func (s *Store) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.transactions.Save(ctx, tx)
}
