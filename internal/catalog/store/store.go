// Package store persists the marketplace catalog entities the ingest loop
// resolves per transaction: listings, shops, shipping profiles, products
// and variation properties.
package store

import (
	"context"

	"github.com/autogenerations/printsync/internal/catalog/domain"
	"github.com/autogenerations/printsync/internal/etsy"
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

	listings     repository.Repository[domain.Listing]
	shops        repository.Repository[domain.Shop]
	sections     repository.Repository[domain.ShopSection]
	policies     repository.Repository[domain.ReturnPolicy]
	profiles     repository.Repository[domain.ShippingProfile]
	upgrades     repository.Repository[domain.ShippingUpgrade]
	destinations repository.Repository[domain.ShippingDestination]
	partners     repository.Repository[domain.ProductionPartner]
	partnerLinks repository.Repository[domain.ListingProductionPartner]
	products     repository.Repository[domain.Product]
	offerings    repository.Repository[domain.Offering]
	properties   repository.Repository[domain.ProductProperty]
	propLinks    repository.Repository[domain.TransactionProductProperty]
}

func New(p Params) *Store {
	return newStore(p.DB, p.Log, p.GenID)
}

func newStore(db *gorm.DB, log *zap.Logger, genID *snowflake.Node) *Store {
	return &Store{
		db:    db,
		log:   log.Named("catalog.store"),
		genID: genID,

		listings:     repository.ProvideStore[domain.Listing](db),
		shops:        repository.ProvideStore[domain.Shop](db),
		sections:     repository.ProvideStore[domain.ShopSection](db),
		policies:     repository.ProvideStore[domain.ReturnPolicy](db),
		profiles:     repository.ProvideStore[domain.ShippingProfile](db),
		upgrades:     repository.ProvideStore[domain.ShippingUpgrade](db),
		destinations: repository.ProvideStore[domain.ShippingDestination](db),
		partners:     repository.ProvideStore[domain.ProductionPartner](db),
		partnerLinks: repository.ProvideStore[domain.ListingProductionPartner](db),
		products:     repository.ProvideStore[domain.Product](db),
		offerings:    repository.ProvideStore[domain.Offering](db),
		properties:   repository.ProvideStore[domain.ProductProperty](db),
		propLinks:    repository.ProvideStore[domain.TransactionProductProperty](db),
	}
}

// WithTrx returns a view of the store bound to tx.
func (s *Store) WithTrx(tx *gorm.DB) *Store {
	return newStore(tx, s.log, s.genID)
}

// EnsureListing materializes a listing payload keyed by its marketplace ID.
func (s *Store) EnsureListing(ctx context.Context, rec etsy.ListingRecord, shopRef, sectionRef, policyRef, profileRef *snowflake.ID) (*domain.Listing, error) {
	existing, err := s.listings.FindOne(ctx, &domain.Listing{ListingID: rec.ListingID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		listing := &domain.Listing{
			ID:        s.genID.Generate(),
			ListingID: rec.ListingID,
		}
		applyListingRecord(listing, rec, shopRef, sectionRef, policyRef, profileRef)
		if err := repository.CreateChecked(ctx, s.listings, listing); err != nil {
			return nil, err
		}
		return listing, nil
	}

	desired := *existing
	applyListingRecord(&desired, rec, shopRef, sectionRef, policyRef, profileRef)
	if repository.Changed(existing, &desired) {
		if err := s.listings.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func applyListingRecord(listing *domain.Listing, rec etsy.ListingRecord, shopRef, sectionRef, policyRef, profileRef *snowflake.ID) {
	listing.ShopRef = shopRef
	listing.ShopSectionRef = sectionRef
	listing.ReturnPolicyRef = policyRef
	listing.ShippingProfileRef = profileRef
	listing.Title = rec.Title
	listing.Description = rec.Description
	listing.State = domain.ListingState(rec.State)
	listing.Quantity = rec.Quantity
	listing.Price = rec.Price
	listing.Currency = rec.Currency
	listing.URL = rec.URL
	listing.Tags = rec.Tags
	listing.Materials = rec.Materials
	listing.Styles = rec.Styles
	listing.SKUs = rec.SKUs
	listing.IsCustomizable = rec.IsCustomizable
	listing.IsPersonalizable = rec.IsPersonalizable
	listing.IsTaxable = rec.IsTaxable
	listing.ShouldAutoRenew = rec.ShouldAutoRenew
	listing.HasVariations = rec.HasVariations
	listing.NumFavorers = rec.NumFavorers
	listing.Views = rec.Views
	listing.FeaturedRank = rec.FeaturedRank
	listing.ProcessingMin = rec.ProcessingMin
	listing.ProcessingMax = rec.ProcessingMax
	listing.ItemWeight = rec.ItemWeight
	listing.ItemWeightUnit = rec.ItemWeightUnit
	listing.MarketCreatedAt = rec.CreatedAt
	listing.MarketUpdatedAt = rec.UpdatedAt
}

// EnsureShop materializes a shop payload.
func (s *Store) EnsureShop(ctx context.Context, rec etsy.ShopRecord) (*domain.Shop, error) {
	existing, err := s.shops.FindOne(ctx, &domain.Shop{ShopID: rec.ShopID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		shop := &domain.Shop{ID: s.genID.Generate(), ShopID: rec.ShopID}
		applyShopRecord(shop, rec)
		if err := repository.CreateChecked(ctx, s.shops, shop); err != nil {
			return nil, err
		}
		return shop, nil
	}

	desired := *existing
	applyShopRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		if err := s.shops.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func applyShopRecord(shop *domain.Shop, rec etsy.ShopRecord) {
	shop.ShopName = rec.ShopName
	shop.Title = rec.Title
	shop.CurrencyCode = rec.CurrencyCode
	shop.URL = rec.URL
	shop.IsVacation = rec.IsVacation
	shop.MarketCreatedAt = rec.CreatedAt
	shop.MarketUpdatedAt = rec.UpdatedAt
}

// EnsureShopSection materializes a shop section payload.
func (s *Store) EnsureShopSection(ctx context.Context, rec etsy.ShopSectionRecord, shopRef *snowflake.ID) (*domain.ShopSection, error) {
	existing, err := s.sections.FindOne(ctx, &domain.ShopSection{ShopSectionID: rec.ShopSectionID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		section := &domain.ShopSection{ID: s.genID.Generate(), ShopSectionID: rec.ShopSectionID}
		applySectionRecord(section, rec, shopRef)
		if err := repository.CreateChecked(ctx, s.sections, section); err != nil {
			return nil, err
		}
		return section, nil
	}

	desired := *existing
	applySectionRecord(&desired, rec, shopRef)
	if repository.Changed(existing, &desired) {
		if err := s.sections.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func applySectionRecord(section *domain.ShopSection, rec etsy.ShopSectionRecord, shopRef *snowflake.ID) {
	section.ShopRef = shopRef
	section.Title = rec.Title
	section.Rank = rec.Rank
	section.ActiveCount = rec.ActiveCount
}

// EnsureReturnPolicy materializes a return policy payload.
func (s *Store) EnsureReturnPolicy(ctx context.Context, rec etsy.ReturnPolicyRecord, shopRef *snowflake.ID) (*domain.ReturnPolicy, error) {
	existing, err := s.policies.FindOne(ctx, &domain.ReturnPolicy{ReturnPolicyID: rec.ReturnPolicyID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		policy := &domain.ReturnPolicy{ID: s.genID.Generate(), ReturnPolicyID: rec.ReturnPolicyID}
		applyPolicyRecord(policy, rec, shopRef)
		if err := repository.CreateChecked(ctx, s.policies, policy); err != nil {
			return nil, err
		}
		return policy, nil
	}

	desired := *existing
	applyPolicyRecord(&desired, rec, shopRef)
	if repository.Changed(existing, &desired) {
		if err := s.policies.Save(ctx, &desired); err != nil {
			return nil, err
		}
	}
	return &desired, nil
}

func applyPolicyRecord(policy *domain.ReturnPolicy, rec etsy.ReturnPolicyRecord, shopRef *snowflake.ID) {
	policy.ShopRef = shopRef
	policy.AcceptsReturns = rec.AcceptsReturns
	policy.AcceptsExchanges = rec.AcceptsExchanges
	policy.ReturnDeadline = rec.ReturnDeadline
}

// EnsureShippingProfile materializes a shipping profile and upserts its
// upgrade and destination rows by their own marketplace IDs.
func (s *Store) EnsureShippingProfile(ctx context.Context, rec etsy.ShippingProfileRecord) (*domain.ShippingProfile, error) {
	existing, err := s.profiles.FindOne(ctx, &domain.ShippingProfile{ShippingProfileID: rec.ShippingProfileID})
	if err != nil {
		return nil, err
	}

	var profile *domain.ShippingProfile
	if existing == nil {
		profile = &domain.ShippingProfile{ID: s.genID.Generate(), ShippingProfileID: rec.ShippingProfileID}
		applyProfileRecord(profile, rec)
		if err := repository.CreateChecked(ctx, s.profiles, profile); err != nil {
			return nil, err
		}
	} else {
		desired := *existing
		applyProfileRecord(&desired, rec)
		if repository.Changed(existing, &desired) {
			if err := s.profiles.Save(ctx, &desired); err != nil {
				return nil, err
			}
		}
		profile = &desired
	}

	for _, up := range rec.Upgrades {
		if err := s.ensureUpgrade(ctx, up, profile.ID); err != nil {
			return nil, err
		}
	}
	for _, dest := range rec.Destinations {
		if err := s.ensureDestination(ctx, dest, profile.ID); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func applyProfileRecord(profile *domain.ShippingProfile, rec etsy.ShippingProfileRecord) {
	profile.Title = rec.Title
	profile.OriginCountryISO = rec.OriginCountryISO
	profile.OriginPostalCode = rec.OriginPostalCode
	profile.MinProcessingDays = rec.MinProcessingDays
	profile.MaxProcessingDays = rec.MaxProcessingDays
	profile.ProcessingUnit = rec.ProcessingUnit
}

func (s *Store) ensureUpgrade(ctx context.Context, rec etsy.ShippingUpgradeRecord, profileRef snowflake.ID) error {
	existing, err := s.upgrades.FindOne(ctx, &domain.ShippingUpgrade{UpgradeID: rec.UpgradeID})
	if err != nil {
		return err
	}

	if existing == nil {
		upgrade := &domain.ShippingUpgrade{
			ID:                 s.genID.Generate(),
			UpgradeID:          rec.UpgradeID,
			ShippingProfileRef: profileRef,
		}
		applyUpgradeRecord(upgrade, rec)
		return repository.CreateChecked(ctx, s.upgrades, upgrade)
	}

	desired := *existing
	desired.ShippingProfileRef = profileRef
	applyUpgradeRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		return s.upgrades.Save(ctx, &desired)
	}
	return nil
}

func applyUpgradeRecord(upgrade *domain.ShippingUpgrade, rec etsy.ShippingUpgradeRecord) {
	upgrade.UpgradeName = rec.UpgradeName
	upgrade.Type = rec.Type
	upgrade.Rank = rec.Rank
	upgrade.Price = rec.Price
	upgrade.Currency = rec.Currency
	upgrade.ShippingCarrierID = rec.ShippingCarrierID
	upgrade.MailClass = rec.MailClass
}

func (s *Store) ensureDestination(ctx context.Context, rec etsy.ShippingDestinationRecord, profileRef snowflake.ID) error {
	existing, err := s.destinations.FindOne(ctx, &domain.ShippingDestination{DestinationID: rec.DestinationID})
	if err != nil {
		return err
	}

	if existing == nil {
		dest := &domain.ShippingDestination{
			ID:                 s.genID.Generate(),
			DestinationID:      rec.DestinationID,
			ShippingProfileRef: profileRef,
		}
		applyDestinationRecord(dest, rec)
		return repository.CreateChecked(ctx, s.destinations, dest)
	}

	desired := *existing
	desired.ShippingProfileRef = profileRef
	applyDestinationRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		return s.destinations.Save(ctx, &desired)
	}
	return nil
}

func applyDestinationRecord(dest *domain.ShippingDestination, rec etsy.ShippingDestinationRecord) {
	dest.OriginCountryISO = rec.OriginCountryISO
	dest.DestinationCountryISO = rec.DestinationCountryISO
	dest.DestinationRegion = rec.DestinationRegion
	dest.PrimaryCost = rec.PrimaryCost
	dest.SecondaryCost = rec.SecondaryCost
	dest.Currency = rec.Currency
	dest.MinDeliveryDays = rec.MinDeliveryDays
	dest.MaxDeliveryDays = rec.MaxDeliveryDays
}

// EnsureProductionPartner materializes a production partner and links it to
// the listing.
func (s *Store) EnsureProductionPartner(ctx context.Context, rec etsy.ProductionPartnerRecord, listingRef snowflake.ID) (*domain.ProductionPartner, error) {
	existing, err := s.partners.FindOne(ctx, &domain.ProductionPartner{ProductionPartnerID: rec.ProductionPartnerID})
	if err != nil {
		return nil, err
	}

	var partner *domain.ProductionPartner
	if existing == nil {
		partner = &domain.ProductionPartner{
			ID:                  s.genID.Generate(),
			ProductionPartnerID: rec.ProductionPartnerID,
			PartnerName:         rec.PartnerName,
			Location:            rec.Location,
		}
		if err := repository.CreateChecked(ctx, s.partners, partner); err != nil {
			return nil, err
		}
	} else {
		desired := *existing
		desired.PartnerName = rec.PartnerName
		desired.Location = rec.Location
		if repository.Changed(existing, &desired) {
			if err := s.partners.Save(ctx, &desired); err != nil {
				return nil, err
			}
		}
		partner = &desired
	}

	link, err := s.partnerLinks.FindOne(ctx, &domain.ListingProductionPartner{ListingRef: listingRef, PartnerRef: partner.ID})
	if err != nil {
		return nil, err
	}
	if link == nil {
		err = repository.CreateChecked(ctx, s.partnerLinks, &domain.ListingProductionPartner{
			ListingRef: listingRef,
			PartnerRef: partner.ID,
		})
		if err != nil {
			return nil, err
		}
	}
	return partner, nil
}

// EnsureProduct materializes a listing product and its offerings.
func (s *Store) EnsureProduct(ctx context.Context, rec etsy.ProductRecord, listingRef *snowflake.ID) (*domain.Product, error) {
	existing, err := s.products.FindOne(ctx, &domain.Product{ProductID: rec.ProductID})
	if err != nil {
		return nil, err
	}

	var product *domain.Product
	if existing == nil {
		product = &domain.Product{
			ID:         s.genID.Generate(),
			ProductID:  rec.ProductID,
			ListingRef: listingRef,
			SKU:        rec.SKU,
			IsDeleted:  rec.IsDeleted,
		}
		if err := repository.CreateChecked(ctx, s.products, product); err != nil {
			return nil, err
		}
	} else {
		desired := *existing
		desired.ListingRef = listingRef
		desired.SKU = rec.SKU
		desired.IsDeleted = rec.IsDeleted
		if repository.Changed(existing, &desired) {
			if err := s.products.Save(ctx, &desired); err != nil {
				return nil, err
			}
		}
		product = &desired
	}

	for _, off := range rec.Offerings {
		if err := s.ensureOffering(ctx, off, product.ID); err != nil {
			return nil, err
		}
	}
	return product, nil
}

func (s *Store) ensureOffering(ctx context.Context, rec etsy.OfferingRecord, productRef snowflake.ID) error {
	existing, err := s.offerings.FindOne(ctx, &domain.Offering{OfferingID: rec.OfferingID})
	if err != nil {
		return err
	}

	if existing == nil {
		offering := &domain.Offering{
			ID:         s.genID.Generate(),
			OfferingID: rec.OfferingID,
			ProductRef: productRef,
		}
		applyOfferingRecord(offering, rec)
		return repository.CreateChecked(ctx, s.offerings, offering)
	}

	desired := *existing
	desired.ProductRef = productRef
	applyOfferingRecord(&desired, rec)
	if repository.Changed(existing, &desired) {
		return s.offerings.Save(ctx, &desired)
	}
	return nil
}

func applyOfferingRecord(offering *domain.Offering, rec etsy.OfferingRecord) {
	offering.Price = rec.Price
	offering.Currency = rec.Currency
	offering.Quantity = rec.Quantity
	offering.IsEnabled = rec.IsEnabled
	offering.IsDeleted = rec.IsDeleted
}

// EnsureProperty resolves a variation property by its (property ID, values)
// identity. Like addresses, properties are structural: a different value
// selection yields a new row.
func (s *Store) EnsureProperty(ctx context.Context, rec etsy.PropertyRecord) (*domain.ProductProperty, error) {
	existing, err := s.properties.FindOne(ctx, &domain.ProductProperty{PropertyID: rec.PropertyID},
		option.ApplyOperator(option.Condition{Field: "values", Operator: option.EQ, Value: rec.Values}),
	)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	property := &domain.ProductProperty{
		ID:           s.genID.Generate(),
		PropertyID:   rec.PropertyID,
		PropertyName: rec.PropertyName,
		ScaleName:    rec.ScaleName,
		Values:       rec.Values,
	}
	if err := repository.CreateChecked(ctx, s.properties, property); err != nil {
		return nil, err
	}
	return property, nil
}

// LinkTransactionProperties attaches variation properties to a transaction.
// With overwrite set the link set is replaced wholesale; otherwise new links
// are merged in, preserving existing rows and skipping duplicates.
func (s *Store) LinkTransactionProperties(ctx context.Context, transactionRef snowflake.ID, propertyRefs []snowflake.ID, overwrite bool) error {
	if overwrite {
		err := s.db.WithContext(ctx).
			Where("transaction_ref = ?", transactionRef).
			Delete(&domain.TransactionProductProperty{}).Error
		if err != nil {
			return err
		}
	}

	existing, err := s.propLinks.Find(ctx, &domain.TransactionProductProperty{TransactionRef: transactionRef})
	if err != nil {
		return err
	}
	have := make(map[snowflake.ID]bool, len(existing))
	for _, link := range existing {
		have[link.PropertyRef] = true
	}

	for _, ref := range propertyRefs {
		if have[ref] {
			continue
		}
		err := repository.CreateChecked(ctx, s.propLinks, &domain.TransactionProductProperty{
			TransactionRef: transactionRef,
			PropertyRef:    ref,
		})
		if err != nil {
			return err
		}
		have[ref] = true
	}
	return nil
}
