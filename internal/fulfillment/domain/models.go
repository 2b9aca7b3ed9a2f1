// Package domain contains persistence models for the fulfillment partner's
// order graph: orders, statuses, issues, charges, shipments, items and
// recipients as returned by the partner API.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Cost is a partner money value. It has no identity of its own and is
// embedded into whichever record owns it.
type Cost struct {
	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency string          `gorm:"type:text;not null"`
}

// PartnerOrder is one order placed with the fulfillment partner, linked back
// to the marketplace receipt it fulfills. Created exactly once per
// successful submission; afterwards only its owned records are updated.
type PartnerOrder struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	PartnerOrderID string       `gorm:"type:text;not null;uniqueIndex"`
	ReceiptRef     snowflake.ID `gorm:"not null;index"`

	IdempotencyKey    string         `gorm:"type:text;not null;index"`
	MerchantReference string         `gorm:"type:text"`
	ShippingMethod    ShippingMethod `gorm:"type:text;not null"`
	CallbackURL       string         `gorm:"type:text"`

	RecipientRef   snowflake.ID  `gorm:"not null;index"`
	PackingSlipRef *snowflake.ID `gorm:"index"`

	Metadata datatypes.JSONMap `gorm:"type:json"`

	PartnerCreatedAt   time.Time `gorm:"not null"`
	PartnerLastUpdated time.Time `gorm:"not null"`

	Status    *OrderStatus `gorm:"foreignKey:OrderRef"`
	Charges   []Charge     `gorm:"foreignKey:OrderRef"`
	Shipments []Shipment   `gorm:"foreignKey:OrderRef"`
	Items     []Item       `gorm:"foreignKey:OrderRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PartnerOrder) TableName() string { return "partner_orders" }

// OrderStatus is the per-order fulfillment stage plus the five detail
// sub-statuses the poll loop diffs against their prior values.
type OrderStatus struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	OrderRef snowflake.ID `gorm:"not null;uniqueIndex"`

	Stage Stage `gorm:"type:text;not null"`

	DownloadAssets           DetailStatus `gorm:"type:text;not null;default:'notstarted'"`
	PrintReadyAssetsPrepared DetailStatus `gorm:"type:text;not null;default:'notstarted'"`
	AllocateProductionLoc    DetailStatus `gorm:"type:text;not null;default:'notstarted'"`
	InProduction             DetailStatus `gorm:"type:text;not null;default:'notstarted'"`
	Shipping                 DetailStatus `gorm:"type:text;not null;default:'notstarted'"`

	Issues []Issue `gorm:"foreignKey:StatusRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderStatus) TableName() string { return "partner_order_statuses" }

// Details returns the five detail statuses keyed by their wire field name,
// in a stable order.
func (s *OrderStatus) Details() []DetailField {
	return []DetailField{
		{Name: "downloadAssets", Status: s.DownloadAssets},
		{Name: "printReadyAssetsPrepared", Status: s.PrintReadyAssetsPrepared},
		{Name: "allocateProductionLocation", Status: s.AllocateProductionLoc},
		{Name: "inProduction", Status: s.InProduction},
		{Name: "shipping", Status: s.Shipping},
	}
}

// DetailField pairs a detail status with its wire name.
type DetailField struct {
	Name   string
	Status DetailStatus
}

// Issue is a partner-reported problem. The partner assigns no stable ID, so
// identity is the structural triple (object ID, error code, description).
type Issue struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	StatusRef snowflake.ID `gorm:"not null;index"`

	ObjectID    string `gorm:"type:text;not null"`
	ErrorCode   string `gorm:"type:text;not null"`
	Description string `gorm:"type:text;not null"`

	AuthorizationDetail *AuthorizationDetail `gorm:"foreignKey:IssueRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Issue) TableName() string { return "partner_issues" }

// Matches reports structural equality against another issue, the dedup rule
// deciding whether a polled issue is genuinely new.
func (i Issue) Matches(other Issue) bool {
	return i.ObjectID == other.ObjectID &&
		i.ErrorCode == other.ErrorCode &&
		i.Description == other.Description
}

// AuthorizationDetail carries payment-authorization info on an issue that
// requires buyer action.
type AuthorizationDetail struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	IssueRef snowflake.ID `gorm:"not null;uniqueIndex"`

	AuthorizationURL string `gorm:"type:text"`
	PaymentDetails   Cost   `gorm:"embedded;embeddedPrefix:payment_"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuthorizationDetail) TableName() string { return "partner_authorization_details" }

// Charge is a partner invoicing record for an order.
type Charge struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	ChargeID string       `gorm:"type:text;not null;uniqueIndex"`
	OrderRef snowflake.ID `gorm:"not null;index"`

	PartnerInvoiceNumber string `gorm:"type:text"`
	TotalCost            Cost   `gorm:"embedded;embeddedPrefix:total_"`

	Items []ChargeItem `gorm:"foreignKey:ChargeRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "partner_charges" }

// ChargeItem is one line of a charge.
type ChargeItem struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ChargeItemID string       `gorm:"type:text;not null;uniqueIndex"`
	ChargeRef    snowflake.ID `gorm:"not null;index"`

	Description string `gorm:"type:text"`
	ItemSKU     string `gorm:"type:text"`
	ShipmentID  string `gorm:"type:text"`
	ItemID      string `gorm:"type:text"`
	ChargeType  string `gorm:"type:text"`
	Cost        Cost   `gorm:"embedded;embeddedPrefix:cost_"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChargeItem) TableName() string { return "partner_charge_items" }

// Shipment is a partner shipment record. FulfillmentLocation has no partner
// ID, so it is embedded and replaced wholesale on update.
type Shipment struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ShipmentID string       `gorm:"type:text;not null;uniqueIndex"`
	OrderRef   snowflake.ID `gorm:"not null;index"`

	Carrier        string     `gorm:"type:text"`
	CarrierService string     `gorm:"type:text"`
	TrackingNumber string     `gorm:"type:text"`
	TrackingURL    string     `gorm:"type:text"`
	DispatchDate   *time.Time `gorm:""`
	Status         string     `gorm:"type:text"`

	LocationCountryCode string `gorm:"type:text"`
	LocationLabCode     string `gorm:"type:text"`

	Items []ShipmentItem `gorm:"foreignKey:ShipmentRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Shipment) TableName() string { return "partner_shipments" }

// ShipmentItem links an ordered item into the shipment carrying it.
type ShipmentItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	ItemID      string       `gorm:"type:text;not null;uniqueIndex:ux_shipment_item"`
	ShipmentRef snowflake.ID `gorm:"not null;index;uniqueIndex:ux_shipment_item"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ShipmentItem) TableName() string { return "partner_shipment_items" }

// Item is one printable line item on a partner order.
type Item struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	ItemID   string       `gorm:"type:text;not null;uniqueIndex"`
	OrderRef snowflake.ID `gorm:"not null;index"`

	MerchantReference string `gorm:"type:text"`
	SKU               string `gorm:"type:text;not null"`
	Copies            int    `gorm:"not null;default:1"`
	Sizing            Sizing `gorm:"type:text"`
	Status            string `gorm:"type:text"`
	RecipientCost     Cost   `gorm:"embedded;embeddedPrefix:recipient_cost_"`

	Assets []Asset `gorm:"foreignKey:ItemRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "partner_items" }

// Asset is a print file attached to an item. The partner assigns no stable
// ID; identity is the (print area, URL) pair within the item.
type Asset struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	ItemRef snowflake.ID `gorm:"not null;index"`

	PrintArea string `gorm:"type:text;not null"`
	URL       string `gorm:"type:text;not null"`
	Status    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Asset) TableName() string { return "partner_assets" }

// Recipient is the delivery contact on a partner order. Identity is scoped
// to the order it was created for; recipients are not shared across orders
// since a bare name is not a safe global key.
type Recipient struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ReceiptRef snowflake.ID `gorm:"not null;uniqueIndex:ux_recipient_identity"`

	Name  string `gorm:"type:text;not null;uniqueIndex:ux_recipient_identity"`
	Email string `gorm:"type:text"`
	Phone string `gorm:"type:text"`

	AddressRef snowflake.ID `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Recipient) TableName() string { return "partner_recipients" }

// PackingSlip is an optional branded insert on a partner order.
type PackingSlip struct {
	ID snowflake.ID `gorm:"primaryKey"`

	URL    string `gorm:"type:text;not null"`
	Status string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PackingSlip) TableName() string { return "packing_slips" }
