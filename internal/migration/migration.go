// Package migration creates and evolves the database schema from the gorm
// model metadata. The schema has a single source of truth: the domain model
// structs. Every model that owns a table must be listed in Models.
package migration

import (
	"errors"
	"fmt"

	catalogdomain "github.com/autogenerations/printsync/internal/catalog/domain"
	fulfillmentdomain "github.com/autogenerations/printsync/internal/fulfillment/domain"
	orderdomain "github.com/autogenerations/printsync/internal/order/domain"
	"gorm.io/gorm"
)

// Models returns every persisted model in dependency order: referenced
// tables before referencing ones.
func Models() []any {
	return []any{
		// order
		&orderdomain.Address{},
		&orderdomain.Buyer{},
		&orderdomain.Seller{},
		&orderdomain.Receipt{},
		&orderdomain.Transaction{},
		&orderdomain.ReceiptShipment{},

		// catalog
		&catalogdomain.Shop{},
		&catalogdomain.ShopSection{},
		&catalogdomain.ReturnPolicy{},
		&catalogdomain.ShippingProfile{},
		&catalogdomain.ShippingUpgrade{},
		&catalogdomain.ShippingDestination{},
		&catalogdomain.Listing{},
		&catalogdomain.ProductionPartner{},
		&catalogdomain.ListingProductionPartner{},
		&catalogdomain.Product{},
		&catalogdomain.Offering{},
		&catalogdomain.ProductProperty{},
		&catalogdomain.TransactionProductProperty{},

		// fulfillment
		&fulfillmentdomain.Recipient{},
		&fulfillmentdomain.PackingSlip{},
		&fulfillmentdomain.PartnerOrder{},
		&fulfillmentdomain.OrderStatus{},
		&fulfillmentdomain.Issue{},
		&fulfillmentdomain.AuthorizationDetail{},
		&fulfillmentdomain.Charge{},
		&fulfillmentdomain.ChargeItem{},
		&fulfillmentdomain.Shipment{},
		&fulfillmentdomain.ShipmentItem{},
		&fulfillmentdomain.Item{},
		&fulfillmentdomain.Asset{},
	}
}

// Run applies the schema.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
