// Package prodigi wraps the fulfillment partner's v4 API and flattens its
// camel-cased payloads into typed records: timestamps truncated to whole
// seconds, enum strings lower-cased before lookup, money strings parsed to
// decimals.
package prodigi

import (
	"strings"
	"time"

	"github.com/autogenerations/printsync/internal/fulfillment/domain"
	"github.com/shopspring/decimal"
)

// iso8601Layouts are the timestamp shapes the partner has been seen to
// return. Fractional seconds vary in width and the zone marker is sometimes
// missing.
var iso8601Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a partner timestamp and truncates it to whole
// seconds so that re-polled values compare stably.
func ParseTimestamp(raw string) time.Time {
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(time.Second)
		}
	}
	return time.Time{}
}

func parseTimestampPtr(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t := ParseTimestamp(raw)
	if t.IsZero() {
		return nil
	}
	return &t
}

// normalizeEnum lower-cases a partner enum string for lookup. The partner
// capitalizes inconsistently across endpoints ("InProgress", "inProgress").
func normalizeEnum(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type wireCost struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (w wireCost) record() CostRecord {
	return CostRecord{Amount: parseAmount(w.Amount), Currency: w.Currency}
}

// CostRecord is a parsed partner money value.
type CostRecord struct {
	Amount   decimal.Decimal
	Currency string
}

type wireOrder struct {
	ID                string           `json:"id"`
	Created           string           `json:"created"`
	LastUpdated       string           `json:"lastUpdated"`
	CallbackURL       string           `json:"callbackUrl"`
	MerchantReference string           `json:"merchantReference"`
	ShippingMethod    string           `json:"shippingMethod"`
	IdempotencyKey    string           `json:"idempotencyKey"`
	Status            wireStatus       `json:"status"`
	Charges           []wireCharge     `json:"charges"`
	Shipments         []wireShipment   `json:"shipments"`
	Recipient         wireRecipient    `json:"recipient"`
	Items             []wireItem       `json:"items"`
	PackingSlip       *wirePackingSlip `json:"packingSlip"`
	Metadata          map[string]any   `json:"metadata"`
}

type wireStatus struct {
	Stage   string            `json:"stage"`
	Issues  []wireIssue       `json:"issues"`
	Details map[string]string `json:"details"`
}

type wireIssue struct {
	ObjectID             string                    `json:"objectId"`
	ErrorCode            string                    `json:"errorCode"`
	Description          string                    `json:"description"`
	AuthorisationDetails *wireAuthorisationDetails `json:"authorisationDetails"`
}

type wireAuthorisationDetails struct {
	AuthorisationURL string   `json:"authorisationUrl"`
	PaymentDetails   wireCost `json:"paymentDetails"`
}

type wireCharge struct {
	ID                   string           `json:"id"`
	ProdigiInvoiceNumber string           `json:"prodigiInvoiceNumber"`
	TotalCost            wireCost         `json:"totalCost"`
	Items                []wireChargeItem `json:"items"`
}

type wireChargeItem struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	ItemSKU     string   `json:"itemSku"`
	ShipmentID  string   `json:"shipmentId"`
	ItemID      string   `json:"itemId"`
	ChargeType  string   `json:"chargeType"`
	Cost        wireCost `json:"cost"`
}

type wireShipment struct {
	ID                  string             `json:"id"`
	DispatchDate        string             `json:"dispatchDate"`
	Carrier             wireCarrier        `json:"carrier"`
	FulfillmentLocation wireLocation       `json:"fulfillmentLocation"`
	Tracking            wireTracking       `json:"tracking"`
	Items               []wireShipmentItem `json:"items"`
	Status              string             `json:"status"`
}

type wireCarrier struct {
	Name    string `json:"name"`
	Service string `json:"service"`
}

type wireLocation struct {
	CountryCode string `json:"countryCode"`
	LabCode     string `json:"labCode"`
}

type wireTracking struct {
	Number string `json:"number"`
	URL    string `json:"url"`
}

type wireShipmentItem struct {
	ItemID string `json:"itemId"`
}

type wireRecipient struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	PhoneNumber string      `json:"phoneNumber"`
	Address     wireAddress `json:"address"`
}

type wireAddress struct {
	Line1           string `json:"line1"`
	Line2           string `json:"line2"`
	PostalOrZipCode string `json:"postalOrZipCode"`
	CountryCode     string `json:"countryCode"`
	TownOrCity      string `json:"townOrCity"`
	StateOrCounty   string `json:"stateOrCounty"`
}

type wireItem struct {
	ID                string      `json:"id"`
	MerchantReference string      `json:"merchantReference"`
	SKU               string      `json:"sku"`
	Copies            int         `json:"copies"`
	Sizing            string      `json:"sizing"`
	RecipientCost     wireCost    `json:"recipientCost"`
	Assets            []wireAsset `json:"assets"`
	Status            string      `json:"status"`
}

type wireAsset struct {
	PrintArea string `json:"printArea"`
	URL       string `json:"url"`
	Status    string `json:"status"`
}

type wirePackingSlip struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// OrderRecord is the flattened partner order graph.
type OrderRecord struct {
	ID                string
	Created           time.Time
	LastUpdated       time.Time
	CallbackURL       string
	MerchantReference string
	ShippingMethod    domain.ShippingMethod
	IdempotencyKey    string

	Status      StatusRecord
	Charges     []ChargeRecord
	Shipments   []ShipmentRecord
	Recipient   RecipientRecord
	Items       []ItemRecord
	PackingSlip *PackingSlipRecord
	Metadata    map[string]any
}

// StatusRecord is the flattened per-order status block.
type StatusRecord struct {
	Stage                    domain.Stage
	DownloadAssets           domain.DetailStatus
	PrintReadyAssetsPrepared domain.DetailStatus
	AllocateProductionLoc    domain.DetailStatus
	InProduction             domain.DetailStatus
	Shipping                 domain.DetailStatus
	Issues                   []IssueRecord
}

// IssueRecord is one partner-reported issue.
type IssueRecord struct {
	ObjectID      string
	ErrorCode     string
	Description   string
	Authorization *AuthorizationRecord
}

// AuthorizationRecord carries payment-authorization details on an issue.
type AuthorizationRecord struct {
	AuthorizationURL string
	PaymentDetails   CostRecord
}

// ChargeRecord is one partner charge with its line items.
type ChargeRecord struct {
	ID                   string
	ProdigiInvoiceNumber string
	TotalCost            CostRecord
	Items                []ChargeItemRecord
}

// ChargeItemRecord is one line of a charge.
type ChargeItemRecord struct {
	ID          string
	Description string
	ItemSKU     string
	ShipmentID  string
	ItemID      string
	ChargeType  string
	Cost        CostRecord
}

// ShipmentRecord is one partner shipment.
type ShipmentRecord struct {
	ID             string
	DispatchDate   *time.Time
	Carrier        string
	CarrierService string
	TrackingNumber string
	TrackingURL    string
	CountryCode    string
	LabCode        string
	ItemIDs        []string
	Status         string
}

// RecipientRecord is the order's delivery contact.
type RecipientRecord struct {
	Name        string
	Email       string
	PhoneNumber string

	Line1           string
	Line2           string
	PostalOrZipCode string
	CountryCode     string
	TownOrCity      string
	StateOrCounty   string
}

// ItemRecord is one printable line item.
type ItemRecord struct {
	ID                string
	MerchantReference string
	SKU               string
	Copies            int
	Sizing            domain.Sizing
	RecipientCost     CostRecord
	Assets            []AssetRecord
	Status            string
}

// AssetRecord is one print file on an item.
type AssetRecord struct {
	PrintArea string
	URL       string
	Status    string
}

// PackingSlipRecord is the optional branded insert.
type PackingSlipRecord struct {
	URL    string
	Status string
}

func (w wireOrder) record() OrderRecord {
	rec := OrderRecord{
		ID:                w.ID,
		Created:           ParseTimestamp(w.Created),
		LastUpdated:       ParseTimestamp(w.LastUpdated),
		CallbackURL:       w.CallbackURL,
		MerchantReference: w.MerchantReference,
		ShippingMethod:    domain.ShippingMethod(normalizeEnum(w.ShippingMethod)),
		IdempotencyKey:    w.IdempotencyKey,
		Status:            w.Status.record(),
		Recipient:         w.Recipient.record(),
		Metadata:          w.Metadata,
	}
	for _, c := range w.Charges {
		rec.Charges = append(rec.Charges, c.record())
	}
	for _, s := range w.Shipments {
		rec.Shipments = append(rec.Shipments, s.record())
	}
	for _, i := range w.Items {
		rec.Items = append(rec.Items, i.record())
	}
	if w.PackingSlip != nil && w.PackingSlip.URL != "" {
		rec.PackingSlip = &PackingSlipRecord{URL: w.PackingSlip.URL, Status: w.PackingSlip.Status}
	}
	return rec
}

func (w wireStatus) record() StatusRecord {
	detail := func(key string) domain.DetailStatus {
		raw, ok := w.Details[key]
		if !ok {
			return domain.DetailNotStarted
		}
		return domain.DetailStatus(normalizeEnum(raw))
	}
	rec := StatusRecord{
		Stage:                    domain.Stage(normalizeEnum(w.Stage)),
		DownloadAssets:           detail("downloadAssets"),
		PrintReadyAssetsPrepared: detail("printReadyAssetsPrepared"),
		AllocateProductionLoc:    detail("allocateProductionLocation"),
		InProduction:             detail("inProduction"),
		Shipping:                 detail("shipping"),
	}
	for _, issue := range w.Issues {
		rec.Issues = append(rec.Issues, issue.record())
	}
	return rec
}

func (w wireIssue) record() IssueRecord {
	rec := IssueRecord{
		ObjectID:    w.ObjectID,
		ErrorCode:   w.ErrorCode,
		Description: w.Description,
	}
	if w.AuthorisationDetails != nil {
		rec.Authorization = &AuthorizationRecord{
			AuthorizationURL: w.AuthorisationDetails.AuthorisationURL,
			PaymentDetails:   w.AuthorisationDetails.PaymentDetails.record(),
		}
	}
	return rec
}

func (w wireCharge) record() ChargeRecord {
	rec := ChargeRecord{
		ID:                   w.ID,
		ProdigiInvoiceNumber: w.ProdigiInvoiceNumber,
		TotalCost:            w.TotalCost.record(),
	}
	for _, item := range w.Items {
		rec.Items = append(rec.Items, ChargeItemRecord{
			ID:          item.ID,
			Description: item.Description,
			ItemSKU:     item.ItemSKU,
			ShipmentID:  item.ShipmentID,
			ItemID:      item.ItemID,
			ChargeType:  normalizeEnum(item.ChargeType),
			Cost:        item.Cost.record(),
		})
	}
	return rec
}

func (w wireShipment) record() ShipmentRecord {
	rec := ShipmentRecord{
		ID:             w.ID,
		DispatchDate:   parseTimestampPtr(w.DispatchDate),
		Carrier:        w.Carrier.Name,
		CarrierService: w.Carrier.Service,
		TrackingNumber: w.Tracking.Number,
		TrackingURL:    w.Tracking.URL,
		CountryCode:    w.FulfillmentLocation.CountryCode,
		LabCode:        w.FulfillmentLocation.LabCode,
		Status:         normalizeEnum(w.Status),
	}
	for _, item := range w.Items {
		rec.ItemIDs = append(rec.ItemIDs, item.ItemID)
	}
	return rec
}

func (w wireRecipient) record() RecipientRecord {
	return RecipientRecord{
		Name:            w.Name,
		Email:           w.Email,
		PhoneNumber:     w.PhoneNumber,
		Line1:           w.Address.Line1,
		Line2:           w.Address.Line2,
		PostalOrZipCode: w.Address.PostalOrZipCode,
		CountryCode:     w.Address.CountryCode,
		TownOrCity:      w.Address.TownOrCity,
		StateOrCounty:   w.Address.StateOrCounty,
	}
}

func (w wireItem) record() ItemRecord {
	rec := ItemRecord{
		ID:                w.ID,
		MerchantReference: w.MerchantReference,
		SKU:               w.SKU,
		Copies:            w.Copies,
		Sizing:            domain.Sizing(normalizeEnum(w.Sizing)),
		RecipientCost:     w.RecipientCost.record(),
		Status:            normalizeEnum(w.Status),
	}
	for _, asset := range w.Assets {
		rec.Assets = append(rec.Assets, AssetRecord{
			PrintArea: asset.PrintArea,
			URL:       asset.URL,
			Status:    normalizeEnum(asset.Status),
		})
	}
	return rec
}
