package reconcile

import (
	"context"
	"errors"
	"time"

	catalogstore "github.com/autogenerations/printsync/internal/catalog/store"
	"github.com/autogenerations/printsync/internal/etsy"
	obsmetrics "github.com/autogenerations/printsync/internal/observability/metrics"
	orderstore "github.com/autogenerations/printsync/internal/order/store"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IngestJob pulls marketplace receipts created after the earliest receipt
// still being reconciled and materializes each one in its own transaction.
// A failure inside one receipt rolls back only that receipt's graph; the
// loop then moves on to the next.
func (r *Reconciler) IngestJob(ctx context.Context) error {
	log := r.log.Named("ingest")
	recMetrics := obsmetrics.Reconcile()

	floor, err := r.orders.EarliestOpenReceipt(ctx)
	if err != nil {
		return err
	}
	var minCreated *time.Time
	if floor != nil {
		minCreated = &floor.MarketCreatedAt
	}

	payloads, err := r.etsy.ListReceipts(ctx, minCreated)
	if err != nil {
		return err
	}

	var jobErr error
	for _, payload := range payloads {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		rec := etsy.ParseReceipt(payload)
		if rec.ReceiptID == 0 {
			log.Warn("skipping receipt payload without id")
			continue
		}

		err := guard(func() error {
			return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return r.ingestReceipt(ctx, r.orders.WithTrx(tx), r.catalog.WithTrx(tx), rec)
			})
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			recMetrics.IncReceiptFailed("ingest")
			log.Error("receipt ingest failed",
				zap.Int64("receipt_id", rec.ReceiptID),
				zap.Error(err),
			)
			r.alertError(ctx, "ingest", rec.ReceiptID, err)
			continue
		}
		recMetrics.IncReceiptProcessed("ingest")
	}
	return jobErr
}

// ingestReceipt stages one receipt's full sub-entity graph inside tx.
func (r *Reconciler) ingestReceipt(ctx context.Context, orders *orderstore.Store, catalog *catalogstore.Store, rec etsy.ReceiptRecord) error {
	address, err := orders.EnsureAddress(ctx, rec.Address)
	if err != nil {
		return err
	}
	buyer, err := orders.EnsureBuyer(ctx, rec)
	if err != nil {
		return err
	}
	seller, err := orders.EnsureSeller(ctx, rec)
	if err != nil {
		return err
	}

	receipt, _, err := orders.UpsertReceipt(ctx, rec, address.ID, buyer.ID, seller.ID)
	if err != nil {
		return err
	}

	for _, shipRec := range rec.Shipments {
		if _, err := orders.UpsertShipment(ctx, shipRec, receipt.ID); err != nil {
			return err
		}
	}

	for _, txRec := range rec.Transactions {
		if err := r.ingestTransaction(ctx, orders, catalog, receipt.ID, txRec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) ingestTransaction(ctx context.Context, orders *orderstore.Store, catalog *catalogstore.Store, receiptRef snowflake.ID, rec etsy.TransactionRecord) error {
	log := r.log.Named("ingest")

	var propertyRefs []snowflake.ID
	for _, propRec := range rec.Properties {
		property, err := catalog.EnsureProperty(ctx, propRec)
		if err != nil {
			return err
		}
		propertyRefs = append(propertyRefs, property.ID)
	}

	// Catalog resolution is one network round trip per entity and dominates
	// ingest latency. An API lookup failure must not sink the whole receipt:
	// the transaction is stored without the missing reference and the next
	// run fills it in. Store failures are a different matter and propagate,
	// rolling back the receipt.
	listingRef, profileRef, err := r.resolveListing(ctx, catalog, rec, log)
	if err != nil {
		return err
	}
	productRef, err := r.resolveProduct(ctx, catalog, rec, listingRef, log)
	if err != nil {
		return err
	}

	tx, err := orders.UpsertTransaction(ctx, rec, receiptRef, listingRef, productRef, profileRef)
	if err != nil {
		return err
	}

	return catalog.LinkTransactionProperties(ctx, tx.ID, propertyRefs, false)
}

// resolveListing materializes the transaction's listing chain. Marketplace
// lookup failures degrade to a nil reference; store failures propagate and
// roll the receipt back.
func (r *Reconciler) resolveListing(ctx context.Context, catalog *catalogstore.Store, rec etsy.TransactionRecord, log *zap.Logger) (listingRef, profileRef *snowflake.ID, err error) {
	if rec.ListingID == 0 {
		return nil, nil, nil
	}

	payload, err := r.etsy.GetListing(ctx, rec.ListingID)
	if err != nil {
		log.Warn("listing lookup failed", zap.Int64("listing_id", rec.ListingID), zap.Error(err))
		return nil, nil, nil
	}
	listingRec := etsy.ParseListing(payload)

	var shopRef, sectionRef, policyRef *snowflake.ID
	if listingRec.ShopID != 0 {
		if shopPayload, err := r.etsy.GetShop(ctx, listingRec.ShopID); err != nil {
			log.Warn("shop lookup failed", zap.Int64("shop_id", listingRec.ShopID), zap.Error(err))
		} else {
			shop, err := catalog.EnsureShop(ctx, etsy.ParseShop(shopPayload))
			if err != nil {
				return nil, nil, err
			}
			shopRef = &shop.ID
		}

		if listingRec.ShopSectionID != 0 {
			if sectionPayload, err := r.etsy.GetShopSection(ctx, listingRec.ShopID, listingRec.ShopSectionID); err != nil {
				log.Warn("shop section lookup failed", zap.Int64("section_id", listingRec.ShopSectionID), zap.Error(err))
			} else {
				section, err := catalog.EnsureShopSection(ctx, etsy.ParseShopSection(sectionPayload), shopRef)
				if err != nil {
					return nil, nil, err
				}
				sectionRef = &section.ID
			}
		}

		if listingRec.ReturnPolicyID != 0 {
			if policyPayload, err := r.etsy.GetReturnPolicy(ctx, listingRec.ShopID, listingRec.ReturnPolicyID); err != nil {
				log.Warn("return policy lookup failed", zap.Int64("return_policy_id", listingRec.ReturnPolicyID), zap.Error(err))
			} else {
				policy, err := catalog.EnsureReturnPolicy(ctx, etsy.ParseReturnPolicy(policyPayload), shopRef)
				if err != nil {
					return nil, nil, err
				}
				policyRef = &policy.ID
			}
		}

		if listingRec.ShippingProfileID != 0 {
			if profilePayload, err := r.etsy.GetShippingProfile(ctx, listingRec.ShopID, listingRec.ShippingProfileID); err != nil {
				log.Warn("shipping profile lookup failed", zap.Int64("shipping_profile_id", listingRec.ShippingProfileID), zap.Error(err))
			} else {
				profile, err := catalog.EnsureShippingProfile(ctx, etsy.ParseShippingProfile(profilePayload))
				if err != nil {
					return nil, nil, err
				}
				profileRef = &profile.ID
			}
		}
	}

	listing, err := catalog.EnsureListing(ctx, listingRec, shopRef, sectionRef, policyRef, profileRef)
	if err != nil {
		return nil, nil, err
	}

	if partnersPayload, err := r.etsy.GetProductionPartners(ctx, rec.ListingID); err != nil {
		log.Warn("production partner lookup failed", zap.Int64("listing_id", rec.ListingID), zap.Error(err))
	} else {
		for _, partnerPayload := range partnersPayload {
			if _, err := catalog.EnsureProductionPartner(ctx, etsy.ParseProductionPartner(partnerPayload), listing.ID); err != nil {
				return nil, nil, err
			}
		}
	}

	return &listing.ID, profileRef, nil
}

func (r *Reconciler) resolveProduct(ctx context.Context, catalog *catalogstore.Store, rec etsy.TransactionRecord, listingRef *snowflake.ID, log *zap.Logger) (*snowflake.ID, error) {
	if rec.ListingID == 0 || rec.ProductID == 0 {
		return nil, nil
	}

	payload, err := r.etsy.GetListingProduct(ctx, rec.ListingID, rec.ProductID)
	if err != nil {
		log.Warn("product lookup failed",
			zap.Int64("listing_id", rec.ListingID),
			zap.Int64("product_id", rec.ProductID),
			zap.Error(err),
		)
		return nil, nil
	}

	product, err := catalog.EnsureProduct(ctx, etsy.ParseProduct(payload), listingRef)
	if err != nil {
		return nil, err
	}
	return &product.ID, nil
}
