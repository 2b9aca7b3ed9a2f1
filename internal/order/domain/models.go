// Package domain contains persistence models for marketplace orders.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Receipt mirrors one marketplace order. Rows are created on first ingest of
// a marketplace receipt ID and only ever updated afterwards, never deleted.
type Receipt struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ReceiptID int64        `gorm:"not null;uniqueIndex"`

	PaymentStatus    PaymentStatus   `gorm:"type:text;not null"`
	ReconcileStatus  ReconcileStatus `gorm:"type:text;not null;default:'incomplete';index"`
	NeedsFulfillment bool            `gorm:"not null;default:true;index"`

	AddressID snowflake.ID `gorm:"not null;index"`
	BuyerID   snowflake.ID `gorm:"not null;index"`
	SellerID  snowflake.ID `gorm:"not null;index"`

	GrandTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SubTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingCost  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxCost       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VatCost       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	GiftWrapPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CurrencyCode  string          `gorm:"type:text;not null"`

	IsGift            bool   `gorm:"not null;default:false"`
	GiftMessage       string `gorm:"type:text"`
	GiftSender        string `gorm:"type:text"`
	MessageFromBuyer  string `gorm:"type:text"`
	MessageFromSeller string `gorm:"type:text"`

	MarketCreatedAt time.Time `gorm:"not null;index"`
	MarketUpdatedAt time.Time `gorm:"not null"`

	Transactions []Transaction     `gorm:"foreignKey:ReceiptRef"`
	Shipments    []ReceiptShipment `gorm:"foreignKey:ReceiptRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Receipt) TableName() string { return "receipts" }

// Transaction is one line item inside a Receipt.
type Transaction struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TransactionID int64        `gorm:"not null;uniqueIndex"`
	ReceiptRef    snowflake.ID `gorm:"not null;index"`

	Title             string            `gorm:"type:text"`
	Description       string            `gorm:"type:text"`
	SKU               string            `gorm:"type:text;index"`
	Quantity          int               `gorm:"not null"`
	Price             decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	ShippingCost      decimal.Decimal   `gorm:"type:decimal(12,2);not null"`
	CurrencyCode      string            `gorm:"type:text;not null"`
	FulfillmentStatus FulfillmentStatus `gorm:"type:text;not null;default:'needs_fulfillment'"`

	ListingRef         *snowflake.ID `gorm:"index"`
	ProductRef         *snowflake.ID `gorm:"index"`
	ShippingProfileRef *snowflake.ID `gorm:"index"`

	MinProcessingDays int `gorm:""`
	MaxProcessingDays int `gorm:""`
	ExpectedShipDate  *time.Time

	BuyerCouponApplied bool `gorm:"not null;default:false"`
	PaidAt             *time.Time
	ShippedAt          *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// Address is deduplicated structurally: two receipts with byte-identical
// address fields share one row, and rows are never mutated in place.
type Address struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Zip        string       `gorm:"type:text;not null;uniqueIndex:ux_address_identity"`
	City       string       `gorm:"type:text;not null;uniqueIndex:ux_address_identity"`
	State      string       `gorm:"type:text;not null;uniqueIndex:ux_address_identity"`
	Country    string       `gorm:"type:text;not null;uniqueIndex:ux_address_identity"`
	FirstLine  string       `gorm:"type:text;not null;uniqueIndex:ux_address_identity"`
	SecondLine string       `gorm:"type:text;not null;uniqueIndex:ux_address_identity"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Address) TableName() string { return "addresses" }

// Buyer is the marketplace-side purchasing user.
type Buyer struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	BuyerID int64        `gorm:"not null;uniqueIndex"`
	Email   string       `gorm:"type:text"`
	Name    string       `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Buyer) TableName() string { return "buyers" }

// Seller is the marketplace-side shop owner account.
type Seller struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	SellerID int64        `gorm:"not null;uniqueIndex"`
	Email    string       `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Seller) TableName() string { return "sellers" }

// ReceiptShipment is a shipment confirmation posted to the marketplace.
// Presence of at least one row gates the terminal post-back in the poll loop.
type ReceiptShipment struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	ShipmentID       *int64       `gorm:"uniqueIndex"`
	ReceiptRef       snowflake.ID `gorm:"not null;index"`
	CarrierName      string       `gorm:"type:text"`
	TrackingCode     string       `gorm:"type:text"`
	BuyerNote        string       `gorm:"type:text"`
	NotificationDate *time.Time

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReceiptShipment) TableName() string { return "receipt_shipments" }
