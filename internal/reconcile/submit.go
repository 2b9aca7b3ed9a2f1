package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/autogenerations/printsync/internal/etsy"
	fulfillmentdomain "github.com/autogenerations/printsync/internal/fulfillment/domain"
	obsmetrics "github.com/autogenerations/printsync/internal/observability/metrics"
	orderdomain "github.com/autogenerations/printsync/internal/order/domain"
	"github.com/autogenerations/printsync/internal/prodigi"
	"github.com/autogenerations/printsync/internal/skumap"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// receiptKeyNamespace seeds the deterministic idempotency key derivation.
// Never change it: the same receipt must always yield the same key, across
// runs and across deployments.
var receiptKeyNamespace = uuid.MustParse("5f2b6c9e-4a1d-4e8f-9c3a-7d5e8b1a2c4d")

// defaultShippingMethod is the partner delivery tier used for all orders.
const defaultShippingMethod = fulfillmentdomain.ShippingBudget

// shippedNote is the buyer-facing note attached to the marketplace shipment
// confirmation.
const shippedNote = "Your order has been shipped. Thank you!"

// IdempotencyKey derives the stable partner dedup token for a receipt.
func IdempotencyKey(receiptID int64) string {
	return uuid.NewSHA1(receiptKeyNamespace, []byte(strconv.FormatInt(receiptID, 10))).String()
}

// SubmitJob converts paid, unfulfilled receipts into partner orders. Each
// receipt is isolated: a failure alerts the operator and the loop moves on.
func (r *Reconciler) SubmitJob(ctx context.Context) error {
	log := r.log.Named("submit")
	recMetrics := obsmetrics.Reconcile()

	receipts, err := r.orders.ListSubmittable(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	for _, receipt := range receipts {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		if err := guard(func() error { return r.submitReceipt(ctx, receipt) }); err != nil {
			jobErr = errors.Join(jobErr, err)
			recMetrics.IncReceiptFailed("submit")
			log.Error("receipt submission failed",
				zap.Int64("receipt_id", receipt.ReceiptID),
				zap.Error(err),
			)
			r.alertError(ctx, "submit", receipt.ReceiptID, err)
			continue
		}
		recMetrics.IncReceiptProcessed("submit")
	}
	return jobErr
}

func (r *Reconciler) submitReceipt(ctx context.Context, receipt *orderdomain.Receipt) error {
	log := r.log.Named("submit").With(zap.Int64("receipt_id", receipt.ReceiptID))

	items, err := r.buildItems(ctx, receipt)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		// Nothing mapped to the partner catalog. Not an error: listing-only
		// receipts simply never submit.
		log.Info("no mapped items, skipping submission")
		return nil
	}

	recipient, err := r.buildRecipient(ctx, receipt)
	if err != nil {
		return err
	}

	outcome, orderRec, err := r.prodigi.CreateOrder(ctx, prodigi.CreateOrderRequest{
		IdempotencyKey:    IdempotencyKey(receipt.ReceiptID),
		MerchantReference: strconv.FormatInt(receipt.ReceiptID, 10),
		ShippingMethod:    defaultShippingMethod,
		Recipient:         recipient,
		Items:             items,
	})
	if err != nil {
		return err
	}

	switch outcome {
	case fulfillmentdomain.OutcomeAlreadyExists:
		existing, err := r.fulfillment.FindByPartnerID(ctx, orderRec.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			// True repeat: the partner and the local store both already have
			// this order. Nothing to do.
			log.Info("order already exists", zap.String("partner_order_id", orderRec.ID))
			return r.markSubmitted(ctx, receipt)
		}
		// The partner has the order but the local store lost it. Fall
		// through to the creation path and rebuild the local graph.
		log.Warn("recovering partner order missing locally", zap.String("partner_order_id", orderRec.ID))

	case fulfillmentdomain.OutcomeCreatedWithIssues:
		// Business-level condition, not a software error. Record it and
		// leave needs_fulfillment set so the next pass retries.
		receipt.ReconcileStatus = orderdomain.ReconcileStatusError
		if err := r.orders.SaveReceipt(ctx, receipt); err != nil {
			return err
		}
		r.alertError(ctx, "submit", receipt.ReceiptID,
			fmt.Errorf("partner order %s created with issues", orderRec.ID))
		return nil

	case fulfillmentdomain.OutcomeCreated:
		// Fresh creation, materialize below.

	default:
		return fmt.Errorf("unrecognized creation outcome %q", outcome)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := r.orders.WithTrx(tx)
		fulfillment := r.fulfillment.WithTrx(tx)

		address, err := orders.EnsureAddress(ctx, recipientAddress(orderRec.Recipient))
		if err != nil {
			return err
		}
		if _, err := fulfillment.CreateOrderGraph(ctx, receipt.ID, address.ID, orderRec); err != nil {
			return err
		}

		receipt.NeedsFulfillment = false
		if receipt.ReconcileStatus == orderdomain.ReconcileStatusError {
			receipt.ReconcileStatus = orderdomain.ReconcileStatusIncomplete
		}
		return orders.SaveReceipt(ctx, receipt)
	})
}

func (r *Reconciler) markSubmitted(ctx context.Context, receipt *orderdomain.Receipt) error {
	if !receipt.NeedsFulfillment {
		return nil
	}
	receipt.NeedsFulfillment = false
	return r.orders.SaveReceipt(ctx, receipt)
}

// buildItems maps each line item through the SKU map. Unmapped SKUs yield
// no partner item.
func (r *Reconciler) buildItems(ctx context.Context, receipt *orderdomain.Receipt) ([]prodigi.ItemRequest, error) {
	transactions, err := r.orders.ListTransactions(ctx, receipt.ID)
	if err != nil {
		return nil, err
	}

	var items []prodigi.ItemRequest
	for _, tx := range transactions {
		entry, ok := r.skuMap.Lookup(tx.SKU)
		if !ok {
			r.log.Named("submit").Warn("sku not mapped",
				zap.Int64("receipt_id", receipt.ReceiptID),
				zap.String("sku", tx.SKU),
			)
			continue
		}
		items = append(items, itemRequest(tx.TransactionID, tx.Quantity, entry))
	}
	return items, nil
}

func itemRequest(transactionID int64, quantity int, entry skumap.Entry) prodigi.ItemRequest {
	sizing := fulfillmentdomain.Sizing(entry.Sizing)
	if sizing == "" {
		sizing = fulfillmentdomain.SizingFillPrintArea
	}
	copies := quantity
	if copies <= 0 {
		copies = 1
	}

	item := prodigi.ItemRequest{
		MerchantReference: strconv.FormatInt(transactionID, 10),
		SKU:               entry.PartnerSKU,
		Copies:            copies,
		Sizing:            sizing,
		Attributes:        entry.Attributes,
	}
	for _, asset := range entry.Assets {
		item.Assets = append(item.Assets, prodigi.AssetRequest{
			PrintArea: asset.PrintArea,
			URL:       asset.URL,
		})
	}
	return item
}

func (r *Reconciler) buildRecipient(ctx context.Context, receipt *orderdomain.Receipt) (prodigi.RecipientRequest, error) {
	address, err := r.orders.GetAddress(ctx, receipt.AddressID)
	if err != nil {
		return prodigi.RecipientRequest{}, err
	}
	if address == nil {
		return prodigi.RecipientRequest{}, fmt.Errorf("receipt %d has no stored address", receipt.ReceiptID)
	}
	buyer, err := r.orders.GetBuyer(ctx, receipt.BuyerID)
	if err != nil {
		return prodigi.RecipientRequest{}, err
	}
	if buyer == nil {
		return prodigi.RecipientRequest{}, fmt.Errorf("receipt %d has no stored buyer", receipt.ReceiptID)
	}

	return prodigi.RecipientRequest{
		Name:            buyer.Name,
		Email:           buyer.Email,
		Line1:           address.FirstLine,
		Line2:           address.SecondLine,
		PostalOrZipCode: address.Zip,
		CountryCode:     address.Country,
		TownOrCity:      address.City,
		StateOrCounty:   address.State,
	}, nil
}

// recipientAddress converts the partner's echoed recipient address into the
// structural tuple the address dedup works on.
func recipientAddress(rec prodigi.RecipientRecord) etsy.AddressRecord {
	return etsy.AddressRecord{
		Zip:        rec.PostalOrZipCode,
		City:       rec.TownOrCity,
		State:      rec.StateOrCounty,
		Country:    rec.CountryCode,
		FirstLine:  rec.Line1,
		SecondLine: rec.Line2,
	}
}
