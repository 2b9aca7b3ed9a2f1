// Package domain contains persistence models for marketplace catalog data
// fetched while ingesting receipts: listings, shops, shipping profiles,
// products and their offerings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ListingState is the marketplace's listing lifecycle state.
type ListingState string

const (
	ListingStateActive   ListingState = "active"
	ListingStateInactive ListingState = "inactive"
	ListingStateSoldOut  ListingState = "sold_out"
	ListingStateDraft    ListingState = "draft"
	ListingStateExpired  ListingState = "expired"
)

// Listing mirrors one marketplace listing referenced by a transaction.
// Tags, materials and styles arrive as string arrays and are stored as a
// single pipe-delimited column; the pipe is not a legal tag character on the
// marketplace so it can never appear inside an element.
type Listing struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ListingID int64        `gorm:"not null;uniqueIndex"`

	ShopRef            *snowflake.ID `gorm:"index"`
	ShopSectionRef     *snowflake.ID `gorm:"index"`
	ReturnPolicyRef    *snowflake.ID `gorm:"index"`
	ShippingProfileRef *snowflake.ID `gorm:"index"`

	Title       string          `gorm:"type:text"`
	Description string          `gorm:"type:text"`
	State       ListingState    `gorm:"type:text;not null"`
	Quantity    int             `gorm:"not null;default:0"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency    string          `gorm:"type:text;not null"`
	URL         string          `gorm:"type:text"`

	Tags      string `gorm:"type:text"`
	Materials string `gorm:"type:text"`
	Styles    string `gorm:"type:text"`
	SKUs      string `gorm:"type:text"`

	IsCustomizable   bool            `gorm:"not null;default:false"`
	IsPersonalizable bool            `gorm:"not null;default:false"`
	IsTaxable        bool            `gorm:"not null;default:false"`
	ShouldAutoRenew  bool            `gorm:"not null;default:false"`
	HasVariations    bool            `gorm:"not null;default:false"`
	NumFavorers      int             `gorm:"not null;default:0"`
	Views            int             `gorm:"not null;default:0"`
	FeaturedRank     int             `gorm:"not null;default:0"`
	ProcessingMin    int             `gorm:""`
	ProcessingMax    int             `gorm:""`
	ItemWeight       decimal.Decimal `gorm:"type:decimal(12,4)"`
	ItemWeightUnit   string          `gorm:"type:text"`

	MarketCreatedAt time.Time `gorm:""`
	MarketUpdatedAt time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Listing) TableName() string { return "listings" }

// Shop is the selling storefront a listing belongs to.
type Shop struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	ShopID int64        `gorm:"not null;uniqueIndex"`

	ShopName     string `gorm:"type:text"`
	Title        string `gorm:"type:text"`
	CurrencyCode string `gorm:"type:text"`
	URL          string `gorm:"type:text"`
	IsVacation   bool   `gorm:"not null;default:false"`

	MarketCreatedAt time.Time `gorm:""`
	MarketUpdatedAt time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Shop) TableName() string { return "shops" }

// ShopSection groups listings within a shop.
type ShopSection struct {
	ID            snowflake.ID  `gorm:"primaryKey"`
	ShopSectionID int64         `gorm:"not null;uniqueIndex"`
	ShopRef       *snowflake.ID `gorm:"index"`

	Title       string `gorm:"type:text"`
	Rank        int    `gorm:"not null;default:0"`
	ActiveCount int    `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ShopSection) TableName() string { return "shop_sections" }

// ReturnPolicy is a shop-level return policy attached to listings.
type ReturnPolicy struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	ReturnPolicyID int64         `gorm:"not null;uniqueIndex"`
	ShopRef        *snowflake.ID `gorm:"index"`

	AcceptsReturns   bool `gorm:"not null;default:false"`
	AcceptsExchanges bool `gorm:"not null;default:false"`
	ReturnDeadline   int  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReturnPolicy) TableName() string { return "return_policies" }

// ShippingProfile describes how a listing ships.
type ShippingProfile struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	ShippingProfileID int64        `gorm:"not null;uniqueIndex"`

	Title             string `gorm:"type:text"`
	OriginCountryISO  string `gorm:"type:text"`
	OriginPostalCode  string `gorm:"type:text"`
	MinProcessingDays int    `gorm:"not null;default:0"`
	MaxProcessingDays int    `gorm:"not null;default:0"`
	ProcessingUnit    string `gorm:"type:text"`

	Upgrades     []ShippingUpgrade     `gorm:"foreignKey:ShippingProfileRef"`
	Destinations []ShippingDestination `gorm:"foreignKey:ShippingProfileRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ShippingProfile) TableName() string { return "shipping_profiles" }

// ShippingUpgrade is an optional faster shipping tier on a profile.
type ShippingUpgrade struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	UpgradeID          int64        `gorm:"not null;uniqueIndex"`
	ShippingProfileRef snowflake.ID `gorm:"not null;index"`

	UpgradeName       string          `gorm:"type:text"`
	Type              string          `gorm:"type:text"`
	Rank              int             `gorm:"not null;default:0"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency          string          `gorm:"type:text"`
	ShippingCarrierID int64           `gorm:""`
	MailClass         string          `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ShippingUpgrade) TableName() string { return "shipping_upgrades" }

// ShippingDestination is a per-destination rate row on a profile.
type ShippingDestination struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	DestinationID      int64        `gorm:"not null;uniqueIndex"`
	ShippingProfileRef snowflake.ID `gorm:"not null;index"`

	OriginCountryISO      string          `gorm:"type:text"`
	DestinationCountryISO string          `gorm:"type:text"`
	DestinationRegion     string          `gorm:"type:text"`
	PrimaryCost           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SecondaryCost         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency              string          `gorm:"type:text"`
	MinDeliveryDays       int             `gorm:"not null;default:0"`
	MaxDeliveryDays       int             `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ShippingDestination) TableName() string { return "shipping_destinations" }

// ProductionPartner is a disclosed third-party producer on a listing.
type ProductionPartner struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	ProductionPartnerID int64        `gorm:"not null;uniqueIndex"`

	PartnerName string `gorm:"type:text"`
	Location    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProductionPartner) TableName() string { return "production_partners" }

// ListingProductionPartner links listings to their disclosed producers.
type ListingProductionPartner struct {
	ListingRef snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	PartnerRef snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
}

// TableName sets the database table name.
func (ListingProductionPartner) TableName() string { return "listing_production_partners" }

// Product is a purchasable variant of a listing.
type Product struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	ProductID  int64         `gorm:"not null;uniqueIndex"`
	ListingRef *snowflake.ID `gorm:"index"`

	SKU       string `gorm:"type:text;index"`
	IsDeleted bool   `gorm:"not null;default:false"`

	Offerings []Offering `gorm:"foreignKey:ProductRef"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// Offering is a price/quantity cell for a product.
type Offering struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OfferingID int64        `gorm:"not null;uniqueIndex"`
	ProductRef snowflake.ID `gorm:"not null;index"`

	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency  string          `gorm:"type:text"`
	Quantity  int             `gorm:"not null;default:0"`
	IsEnabled bool            `gorm:"not null;default:false"`
	IsDeleted bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Offering) TableName() string { return "offerings" }

// ProductProperty is one variation attribute (e.g. size, color) on a
// transaction. The marketplace issues a property ID, but the chosen values
// differ per transaction, so identity is the (property ID, values) pair.
type ProductProperty struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	PropertyID int64        `gorm:"not null;uniqueIndex:ux_product_property_identity"`

	PropertyName string `gorm:"type:text"`
	// Values holds the selected option values pipe-delimited, same encoding
	// as Listing.Tags.
	Values    string `gorm:"type:text;not null;uniqueIndex:ux_product_property_identity"`
	ScaleName string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProductProperty) TableName() string { return "product_properties" }

// TransactionProductProperty links order transactions to the variation
// attributes the buyer picked.
type TransactionProductProperty struct {
	TransactionRef snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	PropertyRef    snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
}

// TableName sets the database table name.
func (TransactionProductProperty) TableName() string { return "transaction_product_properties" }
