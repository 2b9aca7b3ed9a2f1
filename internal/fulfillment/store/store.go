// Package store persists the partner-order graph. Orders are created once
// on submission; every poll afterwards runs the owned records through the
// same get-or-create-or-update discipline and reports which status fields
// newly errored and which issues are genuinely new.
package store

import (
	"context"

	"github.com/autogenerations/printsync/internal/fulfillment/domain"
	"github.com/autogenerations/printsync/internal/prodigi"
	"github.com/autogenerations/printsync/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

	orders        repository.Repository[domain.PartnerOrder]
	statuses      repository.Repository[domain.OrderStatus]
	issues        repository.Repository[domain.Issue]
	authDetails   repository.Repository[domain.AuthorizationDetail]
	charges       repository.Repository[domain.Charge]
	chargeItems   repository.Repository[domain.ChargeItem]
	shipments     repository.Repository[domain.Shipment]
	shipmentItems repository.Repository[domain.ShipmentItem]
	items         repository.Repository[domain.Item]
	assets        repository.Repository[domain.Asset]
	recipients    repository.Repository[domain.Recipient]
	packingSlips  repository.Repository[domain.PackingSlip]
}

func New(p Params) *Store {
	return newStore(p.DB, p.Log, p.GenID)
}

func newStore(db *gorm.DB, log *zap.Logger, genID *snowflake.Node) *Store {
	return &Store{
		db:    db,
		log:   log.Named("fulfillment.store"),
		genID: genID,

		orders:        repository.ProvideStore[domain.PartnerOrder](db),
		statuses:      repository.ProvideStore[domain.OrderStatus](db),
		issues:        repository.ProvideStore[domain.Issue](db),
		authDetails:   repository.ProvideStore[domain.AuthorizationDetail](db),
		charges:       repository.ProvideStore[domain.Charge](db),
		chargeItems:   repository.ProvideStore[domain.ChargeItem](db),
		shipments:     repository.ProvideStore[domain.Shipment](db),
		shipmentItems: repository.ProvideStore[domain.ShipmentItem](db),
		items:         repository.ProvideStore[domain.Item](db),
		assets:        repository.ProvideStore[domain.Asset](db),
		recipients:    repository.ProvideStore[domain.Recipient](db),
		packingSlips:  repository.ProvideStore[domain.PackingSlip](db),
	}
}

// WithTrx returns a view of the store bound to tx.
func (s *Store) WithTrx(tx *gorm.DB) *Store {
	return newStore(tx, s.log, s.genID)
}

// FindByPartnerID looks an order up by the partner-issued ID.
func (s *Store) FindByPartnerID(ctx context.Context, partnerOrderID string) (*domain.PartnerOrder, error) {
	return s.orders.FindOne(ctx, &domain.PartnerOrder{PartnerOrderID: partnerOrderID})
}

// ListByReceipt returns all partner orders fulfilling a receipt. Normally
// one, but split fulfillment is possible.
func (s *Store) ListByReceipt(ctx context.Context, receiptRef snowflake.ID) ([]*domain.PartnerOrder, error) {
	return s.orders.Find(ctx, &domain.PartnerOrder{ReceiptRef: receiptRef})
}

// GetStatus returns the status block of an order, or nil when none exists.
func (s *Store) GetStatus(ctx context.Context, orderRef snowflake.ID) (*domain.OrderStatus, error) {
	return s.statuses.FindOne(ctx, &domain.OrderStatus{OrderRef: orderRef})
}

// StatusDiff summarizes what a sync changed, for the aggregated alert the
// poll loop sends per receipt.
type StatusDiff struct {
	Stage domain.Stage
	// ErrorEdges lists detail fields that transitioned into error on this
	// sync. Fields already erroring before stay out: alerts fire on the
	// transition edge, not on steady-state error.
	ErrorEdges []string
	// NewIssues are polled issues with no structural match among the
	// order's previously stored issues.
	NewIssues []prodigi.IssueRecord
}

// CreateOrderGraph materializes a freshly created partner order and its full
// owned graph. The recipient's delivery address is resolved by the caller
// so address dedup stays in one place.
func (s *Store) CreateOrderGraph(ctx context.Context, receiptRef, addressRef snowflake.ID, rec prodigi.OrderRecord) (*domain.PartnerOrder, error) {
	recipient, err := s.ensureRecipient(ctx, receiptRef, addressRef, rec.Recipient)
	if err != nil {
		return nil, err
	}

	order := &domain.PartnerOrder{
		ID:                 s.genID.Generate(),
		PartnerOrderID:     rec.ID,
		ReceiptRef:         receiptRef,
		IdempotencyKey:     rec.IdempotencyKey,
		MerchantReference:  rec.MerchantReference,
		ShippingMethod:     rec.ShippingMethod,
		CallbackURL:        rec.CallbackURL,
		RecipientRef:       recipient.ID,
		Metadata:           datatypes.JSONMap(rec.Metadata),
		PartnerCreatedAt:   rec.Created,
		PartnerLastUpdated: rec.LastUpdated,
	}
	if err := repository.CreateChecked(ctx, s.orders, order); err != nil {
		return nil, err
	}

	if _, err := s.syncGraph(ctx, order, addressRef, rec, false); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderGraph runs a polled order payload through the upsert
// discipline and reports the status transitions and novel issues.
func (s *Store) UpdateOrderGraph(ctx context.Context, order *domain.PartnerOrder, addressRef snowflake.ID, rec prodigi.OrderRecord, overwrite bool) (StatusDiff, error) {
	desired := *order
	desired.MerchantReference = rec.MerchantReference
	desired.ShippingMethod = rec.ShippingMethod
	desired.CallbackURL = rec.CallbackURL
	desired.Metadata = datatypes.JSONMap(rec.Metadata)
	desired.PartnerLastUpdated = rec.LastUpdated
	if repository.Changed(order, &desired) {
		if err := s.orders.Save(ctx, &desired); err != nil {
			return StatusDiff{}, err
		}
		*order = desired
	}

	return s.syncGraph(ctx, order, addressRef, rec, overwrite)
}

func (s *Store) syncGraph(ctx context.Context, order *domain.PartnerOrder, addressRef snowflake.ID, rec prodigi.OrderRecord, overwrite bool) (StatusDiff, error) {
	diff, err := s.syncStatus(ctx, order.ID, rec.Status)
	if err != nil {
		return StatusDiff{}, err
	}
	for _, charge := range rec.Charges {
		if err := s.syncCharge(ctx, order.ID, charge); err != nil {
			return StatusDiff{}, err
		}
	}
	for _, shipment := range rec.Shipments {
		if err := s.syncShipment(ctx, order.ID, shipment); err != nil {
			return StatusDiff{}, err
		}
	}
	for _, item := range rec.Items {
		if err := s.syncItem(ctx, order.ID, item, overwrite); err != nil {
			return StatusDiff{}, err
		}
	}
	if _, err := s.ensureRecipient(ctx, order.ReceiptRef, addressRef, rec.Recipient); err != nil {
		return StatusDiff{}, err
	}
	if err := s.syncPackingSlip(ctx, order, rec.PackingSlip); err != nil {
		return StatusDiff{}, err
	}
	return diff, nil
}

// syncStatus upserts the status block, computing error edges against the
// previously stored detail values and issue novelty against the previously
// stored issue list. The stored issue list is then rebuilt wholesale from
// the response, since the partner assigns issues no stable identity.
func (s *Store) syncStatus(ctx context.Context, orderRef snowflake.ID, rec prodigi.StatusRecord) (StatusDiff, error) {
	diff := StatusDiff{Stage: rec.Stage}

	existing, err := s.statuses.FindOne(ctx, &domain.OrderStatus{OrderRef: orderRef})
	if err != nil {
		return diff, err
	}

	if existing == nil {
		status := &domain.OrderStatus{
			ID:       s.genID.Generate(),
			OrderRef: orderRef,
		}
		applyStatusRecord(status, rec)
		if err := repository.CreateChecked(ctx, s.statuses, status); err != nil {
			return diff, err
		}
		for _, field := range status.Details() {
			if field.Status == domain.DetailError {
				diff.ErrorEdges = append(diff.ErrorEdges, field.Name)
			}
		}
		diff.NewIssues = rec.Issues
		return diff, s.rebuildIssues(ctx, status.ID, rec.Issues)
	}

	prior, err := s.issues.Find(ctx, &domain.Issue{StatusRef: existing.ID})
	if err != nil {
		return diff, err
	}
	for _, polled := range rec.Issues {
		candidate := domain.Issue{
			ObjectID:    polled.ObjectID,
			ErrorCode:   polled.ErrorCode,
			Description: polled.Description,
		}
		known := false
		for _, stored := range prior {
			if stored.Matches(candidate) {
				known = true
				break
			}
		}
		if !known {
			diff.NewIssues = append(diff.NewIssues, polled)
		}
	}

	desired := *existing
	applyStatusRecord(&desired, rec)
	prevDetails := existing.Details()
	for i, field := range desired.Details() {
		if field.Status == domain.DetailError && prevDetails[i].Status != domain.DetailError {
			diff.ErrorEdges = append(diff.ErrorEdges, field.Name)
		}
	}
	if repository.Changed(existing, &desired) {
		if err := s.statuses.Save(ctx, &desired); err != nil {
			return diff, err
		}
	}
	return diff, s.rebuildIssues(ctx, desired.ID, rec.Issues)
}

func applyStatusRecord(status *domain.OrderStatus, rec prodigi.StatusRecord) {
	status.Stage = rec.Stage
	status.DownloadAssets = rec.DownloadAssets
	status.PrintReadyAssetsPrepared = rec.PrintReadyAssetsPrepared
	status.AllocateProductionLoc = rec.AllocateProductionLoc
	status.InProduction = rec.InProduction
	status.Shipping = rec.Shipping
}

func (s *Store) rebuildIssues(ctx context.Context, statusRef snowflake.ID, recs []prodigi.IssueRecord) error {
	prior, err := s.issues.Find(ctx, &domain.Issue{StatusRef: statusRef})
	if err != nil {
		return err
	}
	for _, stale := range prior {
		err := s.db.WithContext(ctx).
			Where("issue_ref = ?", stale.ID).
			Delete(&domain.AuthorizationDetail{}).Error
		if err != nil {
			return err
		}
	}
	err = s.db.WithContext(ctx).
		Where("status_ref = ?", statusRef).
		Delete(&domain.Issue{}).Error
	if err != nil {
		return err
	}

	for _, rec := range recs {
		issue := &domain.Issue{
			ID:          s.genID.Generate(),
			StatusRef:   statusRef,
			ObjectID:    rec.ObjectID,
			ErrorCode:   rec.ErrorCode,
			Description: rec.Description,
		}
		if err := repository.CreateChecked(ctx, s.issues, issue); err != nil {
			return err
		}
		if rec.Authorization != nil {
			detail := &domain.AuthorizationDetail{
				ID:               s.genID.Generate(),
				IssueRef:         issue.ID,
				AuthorizationURL: rec.Authorization.AuthorizationURL,
				PaymentDetails: domain.Cost{
					Amount:   rec.Authorization.PaymentDetails.Amount,
					Currency: rec.Authorization.PaymentDetails.Currency,
				},
			}
			if err := repository.CreateChecked(ctx, s.authDetails, detail); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) syncCharge(ctx context.Context, orderRef snowflake.ID, rec prodigi.ChargeRecord) error {
	existing, err := s.charges.FindOne(ctx, &domain.Charge{ChargeID: rec.ID})
	if err != nil {
		return err
	}

	var charge *domain.Charge
	if existing == nil {
		charge = &domain.Charge{
			ID:       s.genID.Generate(),
			ChargeID: rec.ID,
			OrderRef: orderRef,
		}
		applyChargeRecord(charge, rec)
		if err := repository.CreateChecked(ctx, s.charges, charge); err != nil {
			return err
		}
	} else {
		desired := *existing
		applyChargeRecord(&desired, rec)
		if repository.Changed(existing, &desired) {
			if err := s.charges.Save(ctx, &desired); err != nil {
				return err
			}
		}
		charge = &desired
	}

	for _, item := range rec.Items {
		if err := s.syncChargeItem(ctx, charge.ID, item); err != nil {
			return err
		}
	}
	return nil
}

func applyChargeRecord(charge *domain.Charge, rec prodigi.ChargeRecord) {
	charge.PartnerInvoiceNumber = rec.ProdigiInvoiceNumber
	charge.TotalCost = domain.Cost{Amount: rec.TotalCost.Amount, Currency: rec.TotalCost.Currency}
}

func (s *Store) syncChargeItem(ctx context.Context, chargeRef snowflake.ID, rec prodigi.ChargeItemRecord) error {
	existing, err := s.chargeItems.FindOne(ctx, &domain.ChargeItem{ChargeItemID: rec.ID})
	if err != nil {
		return err
	}

	if existing == nil {
		item := &domain.ChargeItem{
			ID:           s.genID.Generate(),
			ChargeItemID: rec.ID,
			ChargeRef:    chargeRef,
		}
		applyChargeItemRecord(item, rec)
		return repository.CreateChecked(ctx, s.chargeItems, item)
	}

	desired := *existing
	applyChargeItemRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		return s.chargeItems.Save(ctx, &desired)
	}
	return nil
}

func applyChargeItemRecord(item *domain.ChargeItem, rec prodigi.ChargeItemRecord) {
	item.Description = rec.Description
	item.ItemSKU = rec.ItemSKU
	item.ShipmentID = rec.ShipmentID
	item.ItemID = rec.ItemID
	item.ChargeType = rec.ChargeType
	item.Cost = domain.Cost{Amount: rec.Cost.Amount, Currency: rec.Cost.Currency}
}

// syncShipment upserts a shipment by partner ID. The fulfillment location
// has no partner ID and is replaced wholesale, never merged.
func (s *Store) syncShipment(ctx context.Context, orderRef snowflake.ID, rec prodigi.ShipmentRecord) error {
	existing, err := s.shipments.FindOne(ctx, &domain.Shipment{ShipmentID: rec.ID})
	if err != nil {
		return err
	}

	var shipment *domain.Shipment
	if existing == nil {
		shipment = &domain.Shipment{
			ID:         s.genID.Generate(),
			ShipmentID: rec.ID,
			OrderRef:   orderRef,
		}
		applyShipmentRecord(shipment, rec)
		if err := repository.CreateChecked(ctx, s.shipments, shipment); err != nil {
			return err
		}
	} else {
		desired := *existing
		applyShipmentRecord(&desired, rec)
		if repository.Changed(existing, &desired) {
			if err := s.shipments.Save(ctx, &desired); err != nil {
				return err
			}
		}
		shipment = &desired
	}

	for _, itemID := range rec.ItemIDs {
		link, err := s.shipmentItems.FindOne(ctx, &domain.ShipmentItem{ShipmentRef: shipment.ID, ItemID: itemID})
		if err != nil {
			return err
		}
		if link != nil {
			continue
		}
		err = repository.CreateChecked(ctx, s.shipmentItems, &domain.ShipmentItem{
			ID:          s.genID.Generate(),
			ItemID:      itemID,
			ShipmentRef: shipment.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func applyShipmentRecord(shipment *domain.Shipment, rec prodigi.ShipmentRecord) {
	shipment.Carrier = rec.Carrier
	shipment.CarrierService = rec.CarrierService
	shipment.TrackingNumber = rec.TrackingNumber
	shipment.TrackingURL = rec.TrackingURL
	shipment.DispatchDate = rec.DispatchDate
	shipment.Status = rec.Status
	shipment.LocationCountryCode = rec.CountryCode
	shipment.LocationLabCode = rec.LabCode
}

// syncItem upserts an item by partner ID. Assets carry no partner ID;
// identity is the (print area, URL) pair, merged unless overwrite is set.
func (s *Store) syncItem(ctx context.Context, orderRef snowflake.ID, rec prodigi.ItemRecord, overwrite bool) error {
	existing, err := s.items.FindOne(ctx, &domain.Item{ItemID: rec.ID})
	if err != nil {
		return err
	}

	var item *domain.Item
	if existing == nil {
		item = &domain.Item{
			ID:       s.genID.Generate(),
			ItemID:   rec.ID,
			OrderRef: orderRef,
		}
		applyItemRecord(item, rec)
		if err := repository.CreateChecked(ctx, s.items, item); err != nil {
			return err
		}
	} else {
		desired := *existing
		applyItemRecord(&desired, rec)
		if repository.Changed(existing, &desired) {
			if err := s.items.Save(ctx, &desired); err != nil {
				return err
			}
		}
		item = &desired
	}

	if overwrite {
		err := s.db.WithContext(ctx).
			Where("item_ref = ?", item.ID).
			Delete(&domain.Asset{}).Error
		if err != nil {
			return err
		}
	}
	stored, err := s.assets.Find(ctx, &domain.Asset{ItemRef: item.ID})
	if err != nil {
		return err
	}
	for _, assetRec := range rec.Assets {
		found := false
		for _, asset := range stored {
			if asset.PrintArea == assetRec.PrintArea && asset.URL == assetRec.URL {
				found = true
				if asset.Status != assetRec.Status {
					asset.Status = assetRec.Status
					if err := s.assets.Save(ctx, asset); err != nil {
						return err
					}
				}
				break
			}
		}
		if found {
			continue
		}
		err := repository.CreateChecked(ctx, s.assets, &domain.Asset{
			ID:        s.genID.Generate(),
			ItemRef:   item.ID,
			PrintArea: assetRec.PrintArea,
			URL:       assetRec.URL,
			Status:    assetRec.Status,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func applyItemRecord(item *domain.Item, rec prodigi.ItemRecord) {
	item.MerchantReference = rec.MerchantReference
	item.SKU = rec.SKU
	item.Copies = rec.Copies
	item.Sizing = rec.Sizing
	item.Status = rec.Status
	item.RecipientCost = domain.Cost{Amount: rec.RecipientCost.Amount, Currency: rec.RecipientCost.Currency}
}

// ensureRecipient resolves the delivery contact scoped to the receipt being
// fulfilled. A bare name is not a safe global key, so recipients are never
// shared across receipts.
func (s *Store) ensureRecipient(ctx context.Context, receiptRef, addressRef snowflake.ID, rec prodigi.RecipientRecord) (*domain.Recipient, error) {
	existing, err := s.recipients.FindOne(ctx, &domain.Recipient{ReceiptRef: receiptRef, Name: rec.Name})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		recipient := &domain.Recipient{
			ID:         s.genID.Generate(),
			ReceiptRef: receiptRef,
			Name:       rec.Name,
			Email:      rec.Email,
			Phone:      rec.PhoneNumber,
			AddressRef: addressRef,
		}
		if err := repository.CreateChecked(ctx, s.recipients, recipient); err != nil {
			return nil, err
		}
		return recipient, nil
	}

	desired := *existing
	desired.Email = rec.Email
	desired.Phone = rec.PhoneNumber
	desired.AddressRef = addressRef
	if repository.Changed(existing, &desired) {
		if err := s.recipients.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func (s *Store) syncPackingSlip(ctx context.Context, order *domain.PartnerOrder, rec *prodigi.PackingSlipRecord) error {
	if rec == nil {
		return nil
	}

	if order.PackingSlipRef != nil {
		existing, err := s.packingSlips.FindOne(ctx, &domain.PackingSlip{ID: *order.PackingSlipRef})
		if err != nil {
			return err
		}
		if existing != nil {
			desired := *existing
			desired.URL = rec.URL
			desired.Status = rec.Status
			if repository.Changed(existing, &desired) {
				return s.packingSlips.Save(ctx, &desired)
			}
			return nil
		}
	}

	slip := &domain.PackingSlip{
		ID:     s.genID.Generate(),
		URL:    rec.URL,
		Status: rec.Status,
	}
	if err := repository.CreateChecked(ctx, s.packingSlips, slip); err != nil {
		return err
	}
	order.PackingSlipRef = &slip.ID
	return s.orders.Save(ctx, order)
}

// LatestShipment returns the most recently updated shipment of an order, the
// one whose tracking data feeds the marketplace post-back.
func (s *Store) LatestShipment(ctx context.Context, orderRef snowflake.ID) (*domain.Shipment, error) {
	shipments, err := s.shipments.Find(ctx, &domain.Shipment{OrderRef: orderRef})
	if err != nil {
		return nil, err
	}
	var latest *domain.Shipment
	for _, shipment := range shipments {
		if latest == nil || shipment.UpdatedAt.After(latest.UpdatedAt) {
			latest = shipment
		}
	}
	return latest, nil
}
