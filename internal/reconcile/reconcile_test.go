package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	catalogdomain "github.com/autogenerations/printsync/internal/catalog/domain"
	catalogstore "github.com/autogenerations/printsync/internal/catalog/store"
	"github.com/autogenerations/printsync/internal/clock"
	"github.com/autogenerations/printsync/internal/etsy"
	fulfillmentdomain "github.com/autogenerations/printsync/internal/fulfillment/domain"
	fulfillmentstore "github.com/autogenerations/printsync/internal/fulfillment/store"
	"github.com/autogenerations/printsync/internal/migration"
	orderdomain "github.com/autogenerations/printsync/internal/order/domain"
	orderstore "github.com/autogenerations/printsync/internal/order/store"
	"github.com/autogenerations/printsync/internal/prodigi"
	"github.com/autogenerations/printsync/internal/skumap"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- fakes ----

type postedShipment struct {
	ReceiptID    int64
	Carrier      etsy.CarrierCode
	TrackingCode string
	Note         string
}

type fakeEtsy struct {
	receipts []etsy.Payload
	listings map[int64]etsy.Payload
	shops    map[int64]etsy.Payload
	products map[string]etsy.Payload

	posted    []postedShipment
	listCalls atomic.Int64
}

func (f *fakeEtsy) ListReceipts(_ context.Context, _ *time.Time) ([]etsy.Payload, error) {
	f.listCalls.Add(1)
	return f.receipts, nil
}

func (f *fakeEtsy) GetReceipt(_ context.Context, _ int64) (etsy.Payload, error) {
	return nil, &etsy.APIError{StatusCode: 404, Body: "not found"}
}

func (f *fakeEtsy) CreateReceiptShipment(_ context.Context, receiptID int64, carrier etsy.CarrierCode, trackingCode, note string, _ bool) (etsy.Payload, error) {
	f.posted = append(f.posted, postedShipment{
		ReceiptID:    receiptID,
		Carrier:      carrier,
		TrackingCode: trackingCode,
		Note:         note,
	})
	return etsy.Payload{}, nil
}

func (f *fakeEtsy) GetListing(_ context.Context, listingID int64) (etsy.Payload, error) {
	if p, ok := f.listings[listingID]; ok {
		return p, nil
	}
	return nil, &etsy.APIError{StatusCode: 404, Body: "listing not found"}
}

func (f *fakeEtsy) GetShop(_ context.Context, shopID int64) (etsy.Payload, error) {
	if p, ok := f.shops[shopID]; ok {
		return p, nil
	}
	return nil, &etsy.APIError{StatusCode: 404, Body: "shop not found"}
}

func (f *fakeEtsy) GetShopSection(_ context.Context, _, _ int64) (etsy.Payload, error) {
	return nil, &etsy.APIError{StatusCode: 404, Body: "section not found"}
}

func (f *fakeEtsy) GetReturnPolicy(_ context.Context, _, _ int64) (etsy.Payload, error) {
	return nil, &etsy.APIError{StatusCode: 404, Body: "policy not found"}
}

func (f *fakeEtsy) GetShippingProfile(_ context.Context, _, _ int64) (etsy.Payload, error) {
	return nil, &etsy.APIError{StatusCode: 404, Body: "profile not found"}
}

func (f *fakeEtsy) GetProductionPartners(_ context.Context, _ int64) ([]etsy.Payload, error) {
	return nil, nil
}

func (f *fakeEtsy) GetListingProduct(_ context.Context, listingID, productID int64) (etsy.Payload, error) {
	if p, ok := f.products[fmt.Sprintf("%d/%d", listingID, productID)]; ok {
		return p, nil
	}
	return nil, &etsy.APIError{StatusCode: 404, Body: "product not found"}
}

type fakeProdigi struct {
	outcome fulfillmentdomain.CreateOutcome
	failFor map[string]bool

	created []prodigi.CreateOrderRequest
	orders  map[string]prodigi.OrderRecord
}

func newFakeProdigi() *fakeProdigi {
	return &fakeProdigi{
		outcome: fulfillmentdomain.OutcomeCreated,
		failFor: map[string]bool{},
		orders:  map[string]prodigi.OrderRecord{},
	}
}

func (f *fakeProdigi) CreateOrder(_ context.Context, req prodigi.CreateOrderRequest) (fulfillmentdomain.CreateOutcome, prodigi.OrderRecord, error) {
	f.created = append(f.created, req)
	if f.failFor[req.MerchantReference] {
		return "", prodigi.OrderRecord{}, &prodigi.APIError{StatusCode: 500, Body: "partner exploded"}
	}
	rec := orderFromRequest("ord-"+req.MerchantReference, req)
	f.orders[rec.ID] = rec
	return f.outcome, rec, nil
}

func (f *fakeProdigi) GetOrder(_ context.Context, orderID string) (prodigi.OrderRecord, error) {
	rec, ok := f.orders[orderID]
	if !ok {
		return prodigi.OrderRecord{}, &prodigi.APIError{StatusCode: 404, Body: "order not found"}
	}
	return rec, nil
}

func (f *fakeProdigi) CancelOrder(_ context.Context, orderID string) (prodigi.OrderRecord, error) {
	return f.orders[orderID], nil
}

func (f *fakeProdigi) UpdateShippingMethod(_ context.Context, orderID string, _ fulfillmentdomain.ShippingMethod) (prodigi.OrderRecord, error) {
	return f.orders[orderID], nil
}

func orderFromRequest(id string, req prodigi.CreateOrderRequest) prodigi.OrderRecord {
	rec := prodigi.OrderRecord{
		ID:                id,
		Created:           time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC),
		LastUpdated:       time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC),
		MerchantReference: req.MerchantReference,
		ShippingMethod:    req.ShippingMethod,
		IdempotencyKey:    req.IdempotencyKey,
		Status: prodigi.StatusRecord{
			Stage:                    fulfillmentdomain.StageInProgress,
			DownloadAssets:           fulfillmentdomain.DetailNotStarted,
			PrintReadyAssetsPrepared: fulfillmentdomain.DetailNotStarted,
			AllocateProductionLoc:    fulfillmentdomain.DetailNotStarted,
			InProduction:             fulfillmentdomain.DetailNotStarted,
			Shipping:                 fulfillmentdomain.DetailNotStarted,
		},
		Recipient: prodigi.RecipientRecord{
			Name:            req.Recipient.Name,
			Email:           req.Recipient.Email,
			Line1:           req.Recipient.Line1,
			Line2:           req.Recipient.Line2,
			PostalOrZipCode: req.Recipient.PostalOrZipCode,
			CountryCode:     req.Recipient.CountryCode,
			TownOrCity:      req.Recipient.TownOrCity,
			StateOrCounty:   req.Recipient.StateOrCounty,
		},
	}
	for i, item := range req.Items {
		rec.Items = append(rec.Items, prodigi.ItemRecord{
			ID:                fmt.Sprintf("itm-%s-%d", req.MerchantReference, i),
			MerchantReference: item.MerchantReference,
			SKU:               item.SKU,
			Copies:            item.Copies,
			Sizing:            item.Sizing,
		})
	}
	return rec
}

// completed flips a stored order to terminal complete with one shipment.
func (f *fakeProdigi) complete(orderID, carrier, tracking string) {
	rec := f.orders[orderID]
	rec.Status.Stage = fulfillmentdomain.StageComplete
	rec.Status.DownloadAssets = fulfillmentdomain.DetailComplete
	rec.Status.PrintReadyAssetsPrepared = fulfillmentdomain.DetailComplete
	rec.Status.AllocateProductionLoc = fulfillmentdomain.DetailComplete
	rec.Status.InProduction = fulfillmentdomain.DetailComplete
	rec.Status.Shipping = fulfillmentdomain.DetailComplete
	rec.Shipments = []prodigi.ShipmentRecord{{
		ID:             "shp-" + orderID,
		Carrier:        carrier,
		TrackingNumber: tracking,
		Status:         "shipped",
	}}
	f.orders[orderID] = rec
}

type fakeNotifier struct {
	sent []struct{ Subject, Body string }
}

func (f *fakeNotifier) Send(_ context.Context, subject, body string) error {
	f.sent = append(f.sent, struct{ Subject, Body string }{subject, body})
	return nil
}

// ---- fixtures ----

func receiptPayload(receiptID int64, withShipment bool) etsy.Payload {
	p := etsy.Payload{
		"receipt_id":     float64(receiptID),
		"status":         "Paid",
		"buyer_user_id":  float64(42),
		"buyer_email":    "buyer@example.com",
		"name":           "Jane Buyer",
		"seller_user_id": float64(7),
		"seller_email":   "seller@example.com",

		"grandtotal": map[string]any{"amount": float64(2599), "divisor": float64(100), "currency_code": "USD"},

		"created_timestamp": float64(1700000000 + receiptID),
		"updated_timestamp": float64(1700000100 + receiptID),

		"zip":         "90210",
		"city":        "Beverly Hills",
		"state":       "CA",
		"country_iso": "US",
		"first_line":  "1 Main St",
		"second_line": "Apt 2",

		"transactions": []any{
			map[string]any{
				"transaction_id": float64(receiptID * 3),
				"title":          "Sunset Print",
				"sku":            "SKU-SUNSET",
				"quantity":       float64(2),
				"price":          map[string]any{"amount": float64(1050), "divisor": float64(100), "currency_code": "USD"},
				"listing_id":     float64(555),
				"product_id":     float64(777),
			},
		},
	}
	if withShipment {
		p["shipments"] = []any{
			map[string]any{
				"receipt_shipping_id": float64(receiptID * 7),
				"carrier_name":        "usps",
				"tracking_code":       "PRESHIPPED",
			},
		}
	}
	return p
}

func catalogFixtures(f *fakeEtsy) {
	f.listings = map[int64]etsy.Payload{
		555: {
			"listing_id": float64(555),
			"shop_id":    float64(11),
			"title":      "Sunset Print",
			"state":      "active",
			"skus":       []any{"SKU-SUNSET"},
		},
	}
	f.shops = map[int64]etsy.Payload{
		11: {"shop_id": float64(11), "shop_name": "sunsetprints"},
	}
	f.products = map[string]etsy.Payload{
		"555/777": {"product_id": float64(777), "sku": "SKU-SUNSET"},
	}
}

func testMapper() skumap.Mapper {
	return skumap.StaticMapper{
		"SKU-SUNSET": {
			PartnerSKU: "GLOBAL-CFPM-16X20",
			Sizing:     "fillprintarea",
			Assets:     []skumap.Asset{{PrintArea: "default", URL: "https://assets.example.com/sunset.png"}},
		},
	}
}

func newTestReconciler(t *testing.T, fe etsy.Client, fp prodigi.Client, fn *fakeNotifier, mapper skumap.Mapper) (*Reconciler, *gorm.DB) {
	t.Helper()
	return newTestReconcilerWithClock(t, fe, fp, fn, mapper,
		clock.NewFakeClock(time.Date(2023, 10, 16, 12, 0, 0, 0, time.UTC)))
}

func newTestReconcilerWithClock(t *testing.T, fe etsy.Client, fp prodigi.Client, fn *fakeNotifier, mapper skumap.Mapper, clk clock.Clock) (*Reconciler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(migration.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	r, err := New(Params{
		DB:          db,
		Log:         log,
		Etsy:        fe,
		Prodigi:     fp,
		Notifier:    fn,
		SkuMap:      mapper,
		Orders:      orderstore.New(orderstore.Params{DB: db, Log: log, GenID: node}),
		Catalog:     catalogstore.New(catalogstore.Params{DB: db, Log: log, GenID: node}),
		Fulfillment: fulfillmentstore.New(fulfillmentstore.Params{DB: db, Log: log, GenID: node}),
		GenID:       node,
		Clock:       clk,
	})
	require.NoError(t, err)
	return r, db
}

// ---- tests ----

func TestIdempotencyKeyIsStable(t *testing.T) {
	key := IdempotencyKey(3001)
	assert.Len(t, key, 36)
	assert.Equal(t, key, IdempotencyKey(3001))
	assert.NotEqual(t, key, IdempotencyKey(3002))
}

func TestIngestJobMaterializesReceiptGraph(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	catalogFixtures(fe)
	r, db := newTestReconciler(t, fe, newFakeProdigi(), &fakeNotifier{}, testMapper())

	require.NoError(t, r.IngestJob(ctx))

	var count int64
	require.NoError(t, db.Model(&orderdomain.Receipt{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&orderdomain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&orderdomain.Address{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The catalog chain resolved through the API fixtures.
	var tx orderdomain.Transaction
	require.NoError(t, db.First(&tx).Error)
	assert.NotNil(t, tx.ListingRef)
	assert.NotNil(t, tx.ProductRef)

	// Re-ingesting the same batch adds nothing.
	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, db.Model(&orderdomain.Receipt{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&orderdomain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&orderdomain.Address{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIngestJobSurvivesCatalogOutage(t *testing.T) {
	ctx := context.Background()
	// No listing fixtures at all: every catalog lookup 404s.
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	r, db := newTestReconciler(t, fe, newFakeProdigi(), &fakeNotifier{}, testMapper())

	require.NoError(t, r.IngestJob(ctx))

	// The transaction lands without references; the next run fills them in.
	var tx orderdomain.Transaction
	require.NoError(t, db.First(&tx).Error)
	assert.Nil(t, tx.ListingRef)
	assert.Nil(t, tx.ProductRef)

	catalogFixtures(fe)
	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, db.First(&tx).Error)
	assert.NotNil(t, tx.ListingRef)
}

func TestIngestJobSkipsPayloadWithoutID(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{
		{"status": "paid"},
		receiptPayload(3001, false),
	}}
	r, db := newTestReconciler(t, fe, newFakeProdigi(), &fakeNotifier{}, testMapper())

	require.NoError(t, r.IngestJob(ctx))

	var count int64
	require.NoError(t, db.Model(&orderdomain.Receipt{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIngestJobPropagatesStoreFailure(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	catalogFixtures(fe)
	fn := &fakeNotifier{}
	r, db := newTestReconciler(t, fe, newFakeProdigi(), fn, testMapper())

	// A broken catalog schema is a store fault, not a marketplace outage:
	// it must fail the receipt loudly instead of committing a thinned graph.
	require.NoError(t, db.Migrator().DropTable(&catalogdomain.Shop{}))

	err := r.IngestJob(ctx)
	require.Error(t, err)
	assert.Len(t, fn.sent, 1)

	// The receipt's transaction rolled back whole.
	var count int64
	require.NoError(t, db.Model(&orderdomain.Receipt{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&orderdomain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSubmitJobCreatesPartnerOrder(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	fp := newFakeProdigi()
	r, db := newTestReconciler(t, fe, fp, &fakeNotifier{}, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, r.SubmitJob(ctx))

	require.Len(t, fp.created, 1)
	req := fp.created[0]
	assert.Equal(t, IdempotencyKey(3001), req.IdempotencyKey)
	assert.Equal(t, "3001", req.MerchantReference)
	assert.Equal(t, fulfillmentdomain.ShippingBudget, req.ShippingMethod)
	assert.Equal(t, "Jane Buyer", req.Recipient.Name)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "GLOBAL-CFPM-16X20", req.Items[0].SKU)
	assert.Equal(t, 2, req.Items[0].Copies)
	assert.Equal(t, strconv.FormatInt(3001*3, 10), req.Items[0].MerchantReference)

	var receipt orderdomain.Receipt
	require.NoError(t, db.First(&receipt).Error)
	assert.False(t, receipt.NeedsFulfillment)

	var count int64
	require.NoError(t, db.Model(&fulfillmentdomain.PartnerOrder{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Nothing left to submit on the next pass.
	require.NoError(t, r.SubmitJob(ctx))
	assert.Len(t, fp.created, 1)
}

func TestSubmitJobIsolatesFailingReceipt(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{
		receiptPayload(3001, false),
		receiptPayload(3002, false),
		receiptPayload(3003, false),
	}}
	fp := newFakeProdigi()
	fp.failFor["3002"] = true
	fn := &fakeNotifier{}
	r, db := newTestReconciler(t, fe, fp, fn, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	err := r.SubmitJob(ctx)
	require.Error(t, err)

	// All three were attempted; the failure did not stop the loop.
	assert.Len(t, fp.created, 3)
	assert.Len(t, fn.sent, 1)
	assert.Contains(t, fn.sent[0].Subject, "3002")

	var receipts []orderdomain.Receipt
	require.NoError(t, db.Order("receipt_id asc").Find(&receipts).Error)
	require.Len(t, receipts, 3)
	assert.False(t, receipts[0].NeedsFulfillment)
	assert.True(t, receipts[1].NeedsFulfillment)
	assert.False(t, receipts[2].NeedsFulfillment)
}

func TestSubmitJobCreatedWithIssues(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	fp := newFakeProdigi()
	fp.outcome = fulfillmentdomain.OutcomeCreatedWithIssues
	fn := &fakeNotifier{}
	r, db := newTestReconciler(t, fe, fp, fn, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, r.SubmitJob(ctx))

	var receipt orderdomain.Receipt
	require.NoError(t, db.First(&receipt).Error)
	assert.Equal(t, orderdomain.ReconcileStatusError, receipt.ReconcileStatus)
	// The receipt stays eligible so the next pass retries.
	assert.True(t, receipt.NeedsFulfillment)

	// No local materialization of the problematic order.
	var count int64
	require.NoError(t, db.Model(&fulfillmentdomain.PartnerOrder{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assert.Len(t, fn.sent, 1)
}

func TestSubmitJobRecoversAlreadyExists(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	fp := newFakeProdigi()
	fp.outcome = fulfillmentdomain.OutcomeAlreadyExists
	r, db := newTestReconciler(t, fe, fp, &fakeNotifier{}, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	// The partner knows this order but the local store has no trace of it:
	// the graph is rebuilt from the response.
	require.NoError(t, r.SubmitJob(ctx))

	var count int64
	require.NoError(t, db.Model(&fulfillmentdomain.PartnerOrder{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var receipt orderdomain.Receipt
	require.NoError(t, db.First(&receipt).Error)
	assert.False(t, receipt.NeedsFulfillment)

	// A true repeat with the graph present is a no-op.
	receipt.NeedsFulfillment = true
	require.NoError(t, db.Save(&receipt).Error)
	require.NoError(t, r.SubmitJob(ctx))
	require.NoError(t, db.Model(&fulfillmentdomain.PartnerOrder{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.First(&receipt).Error)
	assert.False(t, receipt.NeedsFulfillment)
}

func TestSubmitJobSkipsUnmappedReceipts(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	fp := newFakeProdigi()
	r, _ := newTestReconciler(t, fe, fp, &fakeNotifier{}, skumap.StaticMapper{})

	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, r.SubmitJob(ctx))

	assert.Empty(t, fp.created)
}

func TestTrackJobPostsShipmentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	fp := newFakeProdigi()
	fn := &fakeNotifier{}
	r, db := newTestReconciler(t, fe, fp, fn, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, r.SubmitJob(ctx))

	// Still in progress: nothing to post.
	require.NoError(t, r.TrackJob(ctx))
	assert.Empty(t, fe.posted)

	fp.complete("ord-3001", "FedEx Ground", "TRK123")
	require.NoError(t, r.TrackJob(ctx))

	require.Len(t, fe.posted, 1)
	assert.Equal(t, int64(3001), fe.posted[0].ReceiptID)
	assert.Equal(t, etsy.CarrierFedEx, fe.posted[0].Carrier)
	assert.Equal(t, "TRK123", fe.posted[0].TrackingCode)

	var receipt orderdomain.Receipt
	require.NoError(t, db.First(&receipt).Error)
	assert.Equal(t, orderdomain.ReconcileStatusComplete, receipt.ReconcileStatus)

	var tx orderdomain.Transaction
	require.NoError(t, db.First(&tx).Error)
	assert.Equal(t, orderdomain.FulfillmentStatusCompleted, tx.FulfillmentStatus)

	// The settled receipt drops out of the working set: no re-post.
	require.NoError(t, r.TrackJob(ctx))
	assert.Len(t, fe.posted, 1)
}

func TestTrackJobSkipsPostBackWhenMarketplaceAlreadyShipped(t *testing.T) {
	ctx := context.Background()
	// The receipt arrives with a marketplace shipment already attached.
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, true)}}
	fp := newFakeProdigi()
	r, _ := newTestReconciler(t, fe, fp, &fakeNotifier{}, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, r.SubmitJob(ctx))
	fp.complete("ord-3001", "FedEx Ground", "TRK123")
	require.NoError(t, r.TrackJob(ctx))

	assert.Empty(t, fe.posted)
}

func TestTrackJobAlertsOnErrorEdgesAndNewIssuesOnce(t *testing.T) {
	ctx := context.Background()
	fe := &fakeEtsy{receipts: []etsy.Payload{receiptPayload(3001, false)}}
	fp := newFakeProdigi()
	fn := &fakeNotifier{}
	r, _ := newTestReconciler(t, fe, fp, fn, testMapper())

	require.NoError(t, r.IngestJob(ctx))
	require.NoError(t, r.SubmitJob(ctx))
	require.Empty(t, fn.sent)

	rec := fp.orders["ord-3001"]
	rec.Status.DownloadAssets = fulfillmentdomain.DetailError
	rec.Status.Issues = []prodigi.IssueRecord{{
		ObjectID:    "ord-3001",
		ErrorCode:   "order.items.assets.NotDownloaded",
		Description: "asset not downloaded",
	}}
	fp.orders["ord-3001"] = rec

	require.NoError(t, r.TrackJob(ctx))
	require.Len(t, fn.sent, 1)
	assert.Contains(t, fn.sent[0].Body, "downloadAssets")
	assert.Contains(t, fn.sent[0].Body, "order.items.assets.NotDownloaded")

	// Same state on the next poll: no edge, no novel issue, no alert.
	require.NoError(t, r.TrackJob(ctx))
	assert.Len(t, fn.sent, 1)
}

func TestRunJobShutdownIsNotASoftTimeout(t *testing.T) {
	r, _ := newTestReconciler(t, &fakeEtsy{}, newFakeProdigi(), &fakeNotifier{}, testMapper())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.runJob(ctx, "ingest", time.Minute, func(ctx context.Context) error {
		return ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// A genuine per-job deadline stays soft: the next run resumes.
	err = r.runJob(context.Background(), "ingest", time.Nanosecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)
}

func TestRunForeverTicksOnInjectedClock(t *testing.T) {
	fe := &fakeEtsy{}
	fc := clock.NewFakeClock(time.Date(2023, 10, 16, 12, 0, 0, 0, time.UTC))
	r, _ := newTestReconcilerWithClock(t, fe, newFakeProdigi(), &fakeNotifier{}, testMapper(), fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunForever(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return fe.listCalls.Load() == 1 },
		time.Second, time.Millisecond)

	// Real time passing does not drive the loop; only the clock does.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(1), fe.listCalls.Load())

	fc.Advance(r.cfg.RunInterval)
	require.Eventually(t, func() bool { return fe.listCalls.Load() == 2 },
		time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestIsJobEnabled(t *testing.T) {
	r := &Reconciler{cfg: Config{}}
	assert.True(t, r.isJobEnabled("ingest"))
	assert.True(t, r.isJobEnabled("track"))

	r.cfg.EnabledJobs = []string{"Ingest", "submit"}
	assert.True(t, r.isJobEnabled("ingest"))
	assert.True(t, r.isJobEnabled("submit"))
	assert.False(t, r.isJobEnabled("track"))
}
