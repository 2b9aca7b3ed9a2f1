package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/autogenerations/printsync/internal/fulfillment/domain"
	"github.com/autogenerations/printsync/internal/prodigi"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Recipient{},
		&domain.PackingSlip{},
		&domain.PartnerOrder{},
		&domain.OrderStatus{},
		&domain.Issue{},
		&domain.AuthorizationDetail{},
		&domain.Charge{},
		&domain.ChargeItem{},
		&domain.Shipment{},
		&domain.ShipmentItem{},
		&domain.Item{},
		&domain.Asset{},
	))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{DB: openTestDB(t), Log: zap.NewNop(), GenID: node})
}

func orderRecord(id string) prodigi.OrderRecord {
	return prodigi.OrderRecord{
		ID:                id,
		MerchantReference: "3001",
		ShippingMethod:    domain.ShippingBudget,
		IdempotencyKey:    "key-1",
		Status: prodigi.StatusRecord{
			Stage:                    domain.StageInProgress,
			DownloadAssets:           domain.DetailInProgress,
			PrintReadyAssetsPrepared: domain.DetailNotStarted,
			AllocateProductionLoc:    domain.DetailNotStarted,
			InProduction:             domain.DetailNotStarted,
			Shipping:                 domain.DetailNotStarted,
		},
		Recipient: prodigi.RecipientRecord{Name: "Jane Buyer", Email: "buyer@example.com"},
		Items: []prodigi.ItemRecord{
			{
				ID:     "itm_1",
				SKU:    "GLOBAL-CFPM-16X20",
				Copies: 2,
				Sizing: domain.SizingFillPrintArea,
				Assets: []prodigi.AssetRecord{
					{PrintArea: "default", URL: "https://assets.example.com/sunset.png", Status: "inprogress"},
				},
			},
		},
	}
}

func TestCreateOrderGraph(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	receiptRef, addressRef := snowflake.ID(10), snowflake.ID(20)

	order, err := s.CreateOrderGraph(ctx, receiptRef, addressRef, orderRecord("ord_1"))
	require.NoError(t, err)
	assert.Equal(t, "ord_1", order.PartnerOrderID)

	found, err := s.FindByPartnerID(ctx, "ord_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)

	status, err := s.GetStatus(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, domain.StageInProgress, status.Stage)

	byReceipt, err := s.ListByReceipt(ctx, receiptRef)
	require.NoError(t, err)
	assert.Len(t, byReceipt, 1)
}

func TestSyncStatusErrorEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)

	// downloadAssets transitions into error: one edge.
	rec := orderRecord("ord_1")
	rec.Status.DownloadAssets = domain.DetailError
	diff, err := s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"downloadAssets"}, diff.ErrorEdges)

	// Steady-state error on re-poll: no edge.
	diff, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Empty(t, diff.ErrorEdges)

	// A second field erroring later is its own edge.
	rec.Status.InProduction = domain.DetailError
	diff, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"inProduction"}, diff.ErrorEdges)
}

func TestSyncStatusIssueNovelty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)

	issue := prodigi.IssueRecord{
		ObjectID:    "ord_1",
		ErrorCode:   "order.items.assets.NotDownloaded",
		Description: "asset not downloaded",
	}

	rec := orderRecord("ord_1")
	rec.Status.Issues = []prodigi.IssueRecord{issue}
	diff, err := s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Len(t, diff.NewIssues, 1)

	// The structurally identical issue on the next poll is not new.
	diff, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Empty(t, diff.NewIssues)

	// A changed description is a different issue.
	changed := issue
	changed.Description = "asset not downloaded after three attempts"
	rec.Status.Issues = []prodigi.IssueRecord{changed}
	diff, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	require.Len(t, diff.NewIssues, 1)
	assert.Equal(t, changed.Description, diff.NewIssues[0].Description)

	// The stored list is rebuilt from the poll, so only one row remains.
	status, err := s.GetStatus(ctx, order.ID)
	require.NoError(t, err)
	var count int64
	require.NoError(t, s.db.Model(&domain.Issue{}).Where("status_ref = ?", status.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIssueAuthorizationDetailsRebuilt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)

	rec := orderRecord("ord_1")
	rec.Status.Issues = []prodigi.IssueRecord{{
		ObjectID:  "ord_1",
		ErrorCode: "order.payment.AuthorisationRequired",
		Authorization: &prodigi.AuthorizationRecord{
			AuthorizationURL: "https://pay.example.com/auth",
		},
	}}
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&domain.AuthorizationDetail{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Issue resolved: both the issue and its authorization row disappear.
	rec.Status.Issues = nil
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&domain.AuthorizationDetail{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, s.db.Model(&domain.Issue{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAssetMergeAndOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)

	assetCount := func() int64 {
		var count int64
		require.NoError(t, s.db.Model(&domain.Asset{}).Count(&count).Error)
		return count
	}
	require.Equal(t, int64(1), assetCount())

	// Merge: same (print area, url) updates status in place.
	rec := orderRecord("ord_1")
	rec.Items[0].Assets[0].Status = "complete"
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), assetCount())

	var stored domain.Asset
	require.NoError(t, s.db.First(&stored).Error)
	assert.Equal(t, "complete", stored.Status)

	// Merge: a new pair is appended alongside.
	rec.Items[0].Assets = append(rec.Items[0].Assets, prodigi.AssetRecord{
		PrintArea: "back", URL: "https://assets.example.com/back.png",
	})
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), assetCount())

	// Overwrite: the stored set is replaced by exactly the polled set.
	rec.Items[0].Assets = rec.Items[0].Assets[1:]
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), assetCount())
	require.NoError(t, s.db.First(&stored).Error)
	assert.Equal(t, "back", stored.PrintArea)
}

func TestRecipientScopedToReceipt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)
	// The same buyer name on a different receipt is a distinct recipient.
	_, err = s.CreateOrderGraph(ctx, 11, 20, orderRecord("ord_2"))
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&domain.Recipient{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Re-syncing receipt 10 reuses its recipient.
	order, err := s.FindByPartnerID(ctx, "ord_1")
	require.NoError(t, err)
	_, err = s.UpdateOrderGraph(ctx, order, 20, orderRecord("ord_1"), false)
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&domain.Recipient{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSyncShipmentsAndLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)

	rec := orderRecord("ord_1")
	rec.Shipments = []prodigi.ShipmentRecord{{
		ID:             "shp_1",
		Carrier:        "FedEx Ground",
		TrackingNumber: "TRK123",
		ItemIDs:        []string{"itm_1"},
		Status:         "shipped",
	}}
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)

	// Re-poll does not duplicate the shipment or its item links.
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&domain.Shipment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, s.db.Model(&domain.ShipmentItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	latest, err := s.LatestShipment(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "TRK123", latest.TrackingNumber)
	assert.Equal(t, "FedEx Ground", latest.Carrier)
}

func TestSyncPackingSlip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	order, err := s.CreateOrderGraph(ctx, 10, 20, orderRecord("ord_1"))
	require.NoError(t, err)
	assert.Nil(t, order.PackingSlipRef)

	rec := orderRecord("ord_1")
	rec.PackingSlip = &prodigi.PackingSlipRecord{URL: "https://assets.example.com/slip.pdf", Status: "complete"}
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)
	require.NotNil(t, order.PackingSlipRef)

	// The slip row is updated, not duplicated, on the next poll.
	rec.PackingSlip.Status = "printed"
	_, err = s.UpdateOrderGraph(ctx, order, 20, rec, false)
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&domain.PackingSlip{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var slip domain.PackingSlip
	require.NoError(t, s.db.First(&slip).Error)
	assert.Equal(t, "printed", slip.Status)
}
