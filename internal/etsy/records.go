package etsy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptRecord is a flattened marketplace receipt payload.
type ReceiptRecord struct {
	ReceiptID    int64
	Status       string
	BuyerUserID  int64
	BuyerEmail   string
	BuyerName    string
	SellerUserID int64
	SellerEmail  string

	MessageFromBuyer  string
	MessageFromSeller string
	IsGift            bool
	GiftMessage       string
	GiftSender        string

	GrandTotal    decimal.Decimal
	SubTotal      decimal.Decimal
	TotalPrice    decimal.Decimal
	ShippingCost  decimal.Decimal
	TaxCost       decimal.Decimal
	VatCost       decimal.Decimal
	Discount      decimal.Decimal
	GiftWrapPrice decimal.Decimal
	CurrencyCode  string

	CreatedAt time.Time
	UpdatedAt time.Time

	Address      AddressRecord
	Transactions []TransactionRecord
	Shipments    []ShipmentRecord
}

// ParseReceipt flattens a raw receipt payload.
func ParseReceipt(p Payload) ReceiptRecord {
	grand, currency := p.Money("grandtotal")
	sub, _ := p.Money("subtotal")
	total, _ := p.Money("total_price")
	shipping, _ := p.Money("total_shipping_cost")
	tax, _ := p.Money("total_tax_cost")
	vat, _ := p.Money("total_vat_cost")
	discount, _ := p.Money("discount_amt")
	giftWrap, _ := p.Money("gift_wrap_price")

	rec := ReceiptRecord{
		ReceiptID:    p.Int64("receipt_id"),
		Status:       strings.ToLower(p.String("status")),
		BuyerUserID:  p.Int64("buyer_user_id"),
		BuyerEmail:   p.String("buyer_email"),
		BuyerName:    p.String("name"),
		SellerUserID: p.Int64("seller_user_id"),
		SellerEmail:  p.String("seller_email"),

		MessageFromBuyer:  p.String("message_from_buyer"),
		MessageFromSeller: p.String("message_from_seller"),
		IsGift:            p.Bool("is_gift"),
		GiftMessage:       p.String("gift_message"),
		GiftSender:        p.String("gift_sender"),

		GrandTotal:    grand,
		SubTotal:      sub,
		TotalPrice:    total,
		ShippingCost:  shipping,
		TaxCost:       tax,
		VatCost:       vat,
		Discount:      discount,
		GiftWrapPrice: giftWrap,
		CurrencyCode:  currency,

		CreatedAt: p.Time("created_timestamp"),
		UpdatedAt: p.Time("updated_timestamp"),

		Address: ParseAddress(p),
	}
	for _, tp := range p.Objects("transactions") {
		rec.Transactions = append(rec.Transactions, ParseTransaction(tp))
	}
	for _, sp := range p.Objects("shipments") {
		rec.Shipments = append(rec.Shipments, ParseShipment(sp))
	}
	return rec
}

// AddressRecord is the structural identity tuple for a postal address. The
// marketplace inlines the ship-to address on the receipt payload.
type AddressRecord struct {
	Zip        string
	City       string
	State      string
	Country    string
	FirstLine  string
	SecondLine string
}

// ParseAddress flattens the address fields of a receipt payload.
func ParseAddress(p Payload) AddressRecord {
	return AddressRecord{
		Zip:        p.String("zip"),
		City:       p.String("city"),
		State:      p.String("state"),
		Country:    p.String("country_iso"),
		FirstLine:  p.String("first_line"),
		SecondLine: p.String("second_line"),
	}
}

// TransactionRecord is a flattened receipt line item.
type TransactionRecord struct {
	TransactionID int64
	Title         string
	Description   string
	SKU           string
	Quantity      int

	Price        decimal.Decimal
	ShippingCost decimal.Decimal
	CurrencyCode string

	ListingID         int64
	ProductID         int64
	ShippingProfileID int64

	MinProcessingDays int
	MaxProcessingDays int
	ExpectedShipDate  *time.Time
	BuyerCoupon       bool
	PaidAt            *time.Time
	ShippedAt         *time.Time

	Properties []PropertyRecord
}

// ParseTransaction flattens a transaction payload.
func ParseTransaction(p Payload) TransactionRecord {
	price, currency := p.Money("price")
	shipping, _ := p.Money("shipping_cost")

	rec := TransactionRecord{
		TransactionID: p.Int64("transaction_id"),
		Title:         p.String("title"),
		Description:   p.String("description"),
		SKU:           p.String("sku"),
		Quantity:      p.Int("quantity"),

		Price:        price,
		ShippingCost: shipping,
		CurrencyCode: currency,

		ListingID:         p.Int64("listing_id"),
		ProductID:         p.Int64("product_id"),
		ShippingProfileID: p.Int64("shipping_profile_id"),

		MinProcessingDays: p.Int("min_processing_days"),
		MaxProcessingDays: p.Int("max_processing_days"),
		ExpectedShipDate:  p.TimePtr("expected_ship_date"),
		BuyerCoupon:       p.Int("buyer_coupon") != 0,
		PaidAt:            p.TimePtr("paid_timestamp"),
		ShippedAt:         p.TimePtr("shipped_timestamp"),
	}
	for _, pp := range p.Objects("product_data") {
		rec.Properties = append(rec.Properties, ParseProperty(pp))
	}
	return rec
}

// PropertyRecord is one variation attribute on a transaction.
type PropertyRecord struct {
	PropertyID   int64
	PropertyName string
	ScaleName    string
	Values       string
}

// ParseProperty flattens a product_data entry.
func ParseProperty(p Payload) PropertyRecord {
	return PropertyRecord{
		PropertyID:   p.Int64("property_id"),
		PropertyName: p.String("property_name"),
		ScaleName:    p.String("scale_name"),
		Values:       p.StringList("values"),
	}
}

// ShipmentRecord is a marketplace-side shipment confirmation on a receipt.
type ShipmentRecord struct {
	ReceiptShippingID int64
	CarrierName       string
	TrackingCode      string
	NotificationDate  *time.Time
}

// ParseShipment flattens a receipt shipment payload.
func ParseShipment(p Payload) ShipmentRecord {
	return ShipmentRecord{
		ReceiptShippingID: p.Int64("receipt_shipping_id"),
		CarrierName:       p.String("carrier_name"),
		TrackingCode:      p.String("tracking_code"),
		NotificationDate:  p.TimePtr("shipment_notification_timestamp"),
	}
}

// ListingRecord is a flattened marketplace listing.
type ListingRecord struct {
	ListingID         int64
	ShopID            int64
	ShopSectionID     int64
	ReturnPolicyID    int64
	ShippingProfileID int64

	Title       string
	Description string
	State       string
	Quantity    int
	Price       decimal.Decimal
	Currency    string
	URL         string

	Tags      string
	Materials string
	Styles    string
	SKUs      string

	IsCustomizable   bool
	IsPersonalizable bool
	IsTaxable        bool
	ShouldAutoRenew  bool
	HasVariations    bool
	NumFavorers      int
	Views            int
	FeaturedRank     int
	ProcessingMin    int
	ProcessingMax    int
	ItemWeight       decimal.Decimal
	ItemWeightUnit   string

	ProductionPartners []ProductionPartnerRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseListing flattens a listing payload.
func ParseListing(p Payload) ListingRecord {
	price, currency := p.Money("price")
	weight := decimal.Zero
	if w, ok := p.Get("item_weight").(float64); ok {
		weight = decimal.NewFromFloat(w)
	}

	rec := ListingRecord{
		ListingID:         p.Int64("listing_id"),
		ShopID:            p.Int64("shop_id"),
		ShopSectionID:     p.Int64("shop_section_id"),
		ReturnPolicyID:    p.Int64("return_policy_id"),
		ShippingProfileID: p.Int64("shipping_profile_id"),

		Title:       p.String("title"),
		Description: p.String("description"),
		State:       strings.ToLower(p.String("state")),
		Quantity:    p.Int("quantity"),
		Price:       price,
		Currency:    currency,
		URL:         p.String("url"),

		Tags:      p.StringList("tags"),
		Materials: p.StringList("materials"),
		Styles:    p.StringList("style"),
		SKUs:      p.StringList("skus"),

		IsCustomizable:   p.Bool("is_customizable"),
		IsPersonalizable: p.Bool("is_personalizable"),
		IsTaxable:        p.Bool("is_taxable"),
		ShouldAutoRenew:  p.Bool("should_auto_renew"),
		HasVariations:    p.Bool("has_variations"),
		NumFavorers:      p.Int("num_favorers"),
		Views:            p.Int("views"),
		FeaturedRank:     p.Int("featured_rank"),
		ProcessingMin:    p.Int("processing_min"),
		ProcessingMax:    p.Int("processing_max"),
		ItemWeight:       weight,
		ItemWeightUnit:   p.String("item_weight_unit"),

		CreatedAt: p.Time("created_timestamp"),
		UpdatedAt: p.Time("updated_timestamp"),
	}
	for _, pp := range p.Objects("production_partners") {
		rec.ProductionPartners = append(rec.ProductionPartners, ParseProductionPartner(pp))
	}
	return rec
}

// ShopRecord is a flattened marketplace shop.
type ShopRecord struct {
	ShopID       int64
	ShopName     string
	Title        string
	CurrencyCode string
	URL          string
	IsVacation   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ParseShop flattens a shop payload.
func ParseShop(p Payload) ShopRecord {
	return ShopRecord{
		ShopID:       p.Int64("shop_id"),
		ShopName:     p.String("shop_name"),
		Title:        p.String("title"),
		CurrencyCode: p.String("currency_code"),
		URL:          p.String("url"),
		IsVacation:   p.Bool("is_vacation"),
		CreatedAt:    p.Time("create_date"),
		UpdatedAt:    p.Time("update_date"),
	}
}

// ShopSectionRecord is a flattened shop section.
type ShopSectionRecord struct {
	ShopSectionID int64
	ShopID        int64
	Title         string
	Rank          int
	ActiveCount   int
}

// ParseShopSection flattens a shop section payload.
func ParseShopSection(p Payload) ShopSectionRecord {
	return ShopSectionRecord{
		ShopSectionID: p.Int64("shop_section_id"),
		ShopID:        p.Int64("shop_id"),
		Title:         p.String("title"),
		Rank:          p.Int("rank"),
		ActiveCount:   p.Int("active_listing_count"),
	}
}

// ReturnPolicyRecord is a flattened shop return policy.
type ReturnPolicyRecord struct {
	ReturnPolicyID   int64
	ShopID           int64
	AcceptsReturns   bool
	AcceptsExchanges bool
	ReturnDeadline   int
}

// ParseReturnPolicy flattens a return policy payload.
func ParseReturnPolicy(p Payload) ReturnPolicyRecord {
	return ReturnPolicyRecord{
		ReturnPolicyID:   p.Int64("return_policy_id"),
		ShopID:           p.Int64("shop_id"),
		AcceptsReturns:   p.Bool("accepts_returns"),
		AcceptsExchanges: p.Bool("accepts_exchanges"),
		ReturnDeadline:   p.Int("return_deadline"),
	}
}

// ShippingProfileRecord is a flattened shipping profile with its upgrade and
// destination rows.
type ShippingProfileRecord struct {
	ShippingProfileID int64
	Title             string
	OriginCountryISO  string
	OriginPostalCode  string
	MinProcessingDays int
	MaxProcessingDays int
	ProcessingUnit    string

	Upgrades     []ShippingUpgradeRecord
	Destinations []ShippingDestinationRecord
}

// ParseShippingProfile flattens a shipping profile payload.
func ParseShippingProfile(p Payload) ShippingProfileRecord {
	rec := ShippingProfileRecord{
		ShippingProfileID: p.Int64("shipping_profile_id"),
		Title:             p.String("title"),
		OriginCountryISO:  p.String("origin_country_iso"),
		OriginPostalCode:  p.String("origin_postal_code"),
		MinProcessingDays: p.Int("min_processing_days"),
		MaxProcessingDays: p.Int("max_processing_days"),
		ProcessingUnit:    p.String("processing_days_display_label"),
	}
	for _, up := range p.Objects("shipping_upgrades") {
		rec.Upgrades = append(rec.Upgrades, ParseShippingUpgrade(up))
	}
	for _, dp := range p.Objects("shipping_profile_destinations") {
		rec.Destinations = append(rec.Destinations, ParseShippingDestination(dp))
	}
	return rec
}

// ShippingUpgradeRecord is one optional faster shipping tier.
type ShippingUpgradeRecord struct {
	UpgradeID         int64
	ShippingProfileID int64
	UpgradeName       string
	Type              string
	Rank              int
	Price             decimal.Decimal
	Currency          string
	ShippingCarrierID int64
	MailClass         string
}

// ParseShippingUpgrade flattens a shipping upgrade payload.
func ParseShippingUpgrade(p Payload) ShippingUpgradeRecord {
	price, currency := p.Money("price")
	return ShippingUpgradeRecord{
		UpgradeID:         p.Int64("upgrade_id"),
		ShippingProfileID: p.Int64("shipping_profile_id"),
		UpgradeName:       p.String("upgrade_name"),
		Type:              p.String("type"),
		Rank:              p.Int("rank"),
		Price:             price,
		Currency:          currency,
		ShippingCarrierID: p.Int64("shipping_carrier_id"),
		MailClass:         p.String("mail_class"),
	}
}

// ShippingDestinationRecord is one per-destination rate row.
type ShippingDestinationRecord struct {
	DestinationID         int64
	ShippingProfileID     int64
	OriginCountryISO      string
	DestinationCountryISO string
	DestinationRegion     string
	PrimaryCost           decimal.Decimal
	SecondaryCost         decimal.Decimal
	Currency              string
	MinDeliveryDays       int
	MaxDeliveryDays       int
}

// ParseShippingDestination flattens a destination payload.
func ParseShippingDestination(p Payload) ShippingDestinationRecord {
	primary, currency := p.Money("primary_cost")
	secondary, _ := p.Money("secondary_cost")
	return ShippingDestinationRecord{
		DestinationID:         p.Int64("shipping_profile_destination_id"),
		ShippingProfileID:     p.Int64("shipping_profile_id"),
		OriginCountryISO:      p.String("origin_country_iso"),
		DestinationCountryISO: p.String("destination_country_iso"),
		DestinationRegion:     p.String("destination_region"),
		PrimaryCost:           primary,
		SecondaryCost:         secondary,
		Currency:              currency,
		MinDeliveryDays:       p.Int("min_delivery_days"),
		MaxDeliveryDays:       p.Int("max_delivery_days"),
	}
}

// ProductionPartnerRecord is a disclosed producer on a listing.
type ProductionPartnerRecord struct {
	ProductionPartnerID int64
	PartnerName         string
	Location            string
}

// ParseProductionPartner flattens a production partner payload.
func ParseProductionPartner(p Payload) ProductionPartnerRecord {
	return ProductionPartnerRecord{
		ProductionPartnerID: p.Int64("production_partner_id"),
		PartnerName:         p.String("partner_name"),
		Location:            p.String("location"),
	}
}

// ProductRecord is a flattened listing product with its offerings.
type ProductRecord struct {
	ProductID int64
	SKU       string
	IsDeleted bool
	Offerings []OfferingRecord
}

// ParseProduct flattens a listing product payload.
func ParseProduct(p Payload) ProductRecord {
	rec := ProductRecord{
		ProductID: p.Int64("product_id"),
		SKU:       p.String("sku"),
		IsDeleted: p.Bool("is_deleted"),
	}
	for _, op := range p.Objects("offerings") {
		rec.Offerings = append(rec.Offerings, ParseOffering(op))
	}
	return rec
}

// OfferingRecord is one price/quantity cell on a product.
type OfferingRecord struct {
	OfferingID int64
	Price      decimal.Decimal
	Currency   string
	Quantity   int
	IsEnabled  bool
	IsDeleted  bool
}

// ParseOffering flattens an offering payload.
func ParseOffering(p Payload) OfferingRecord {
	price, currency := p.Money("price")
	return OfferingRecord{
		OfferingID: p.Int64("offering_id"),
		Price:      price,
		Currency:   currency,
		Quantity:   p.Int("quantity"),
		IsEnabled:  p.Bool("is_enabled"),
		IsDeleted:  p.Bool("is_deleted"),
	}
}
