package prodigi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/autogenerations/printsync/internal/fulfillment/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampTruncatesToWholeSeconds(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2023-10-16T14:14:51.02Z", time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC)},
		{"2023-10-16T14:14:51.0289735Z", time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC)},
		{"2023-10-16T14:14:51", time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC)},
		{"2023-10-16T14:14:51Z", time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC)},
		{"not a timestamp", time.Time{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseTimestamp(tc.raw), "raw %q", tc.raw)
	}
}

const orderResponse = `{
  "outcome": "Created",
  "order": {
    "id": "ord_1234",
    "created": "2023-10-16T14:14:51.02Z",
    "lastUpdated": "2023-10-16T14:20:00.5Z",
    "merchantReference": "3001",
    "shippingMethod": "Budget",
    "idempotencyKey": "key-1",
    "status": {
      "stage": "InProgress",
      "issues": [
        {
          "objectId": "ord_1234",
          "errorCode": "order.items.assets.NotDownloaded",
          "description": "Warning: asset not downloaded",
          "authorisationDetails": {
            "authorisationUrl": "https://pay.example.com/auth",
            "paymentDetails": {"amount": "1.50", "currency": "GBP"}
          }
        }
      ],
      "details": {
        "downloadAssets": "Error",
        "printReadyAssetsPrepared": "NotStarted",
        "allocateProductionLocation": "Complete",
        "inProduction": "InProgress"
      }
    },
    "charges": [
      {
        "id": "chg_1",
        "prodigiInvoiceNumber": "INV-9",
        "totalCost": {"amount": "12.34", "currency": "GBP"},
        "items": [
          {"id": "chi_1", "itemId": "itm_1", "chargeType": "Item", "cost": {"amount": "10.00", "currency": "GBP"}}
        ]
      }
    ],
    "shipments": [
      {
        "id": "shp_1",
        "dispatchDate": "2023-10-17T09:00:00Z",
        "carrier": {"name": "FedEx Ground", "service": "Ground"},
        "fulfillmentLocation": {"countryCode": "US", "labCode": "us_tx"},
        "tracking": {"number": "TRK123", "url": "https://track.example.com/TRK123"},
        "items": [{"itemId": "itm_1"}],
        "status": "Shipped"
      }
    ],
    "recipient": {
      "name": "Jane Buyer",
      "email": "buyer@example.com",
      "address": {
        "line1": "1 Main St",
        "line2": "Apt 2",
        "postalOrZipCode": "90210",
        "countryCode": "US",
        "townOrCity": "Beverly Hills",
        "stateOrCounty": "CA"
      }
    },
    "items": [
      {
        "id": "itm_1",
        "merchantReference": "9001",
        "sku": "GLOBAL-CFPM-16X20",
        "copies": 2,
        "sizing": "FillPrintArea",
        "recipientCost": {"amount": "20.99", "currency": "USD"},
        "assets": [
          {"printArea": "default", "url": "https://assets.example.com/sunset.png", "status": "InProgress"}
        ],
        "status": "Ok"
      }
    ],
    "packingSlip": {"url": "https://assets.example.com/slip.pdf", "status": "Complete"},
    "metadata": {"campaign": "fall-launch"}
  }
}`

func TestOrderRecordFromWirePayload(t *testing.T) {
	var envelope orderEnvelope
	require.NoError(t, json.Unmarshal([]byte(orderResponse), &envelope))

	assert.Equal(t, domain.OutcomeCreated, domain.CreateOutcome(normalizeEnum(envelope.Outcome)))

	rec := envelope.Order.record()
	assert.Equal(t, "ord_1234", rec.ID)
	assert.Equal(t, time.Date(2023, 10, 16, 14, 14, 51, 0, time.UTC), rec.Created)
	assert.Equal(t, domain.ShippingBudget, rec.ShippingMethod)

	assert.Equal(t, domain.StageInProgress, rec.Status.Stage)
	assert.Equal(t, domain.DetailError, rec.Status.DownloadAssets)
	assert.Equal(t, domain.DetailNotStarted, rec.Status.PrintReadyAssetsPrepared)
	assert.Equal(t, domain.DetailComplete, rec.Status.AllocateProductionLoc)
	assert.Equal(t, domain.DetailInProgress, rec.Status.InProduction)
	// Missing detail keys read as not started.
	assert.Equal(t, domain.DetailNotStarted, rec.Status.Shipping)

	require.Len(t, rec.Status.Issues, 1)
	issue := rec.Status.Issues[0]
	assert.Equal(t, "order.items.assets.NotDownloaded", issue.ErrorCode)
	require.NotNil(t, issue.Authorization)
	assert.Equal(t, "https://pay.example.com/auth", issue.Authorization.AuthorizationURL)
	assert.True(t, issue.Authorization.PaymentDetails.Amount.Equal(decimal.RequireFromString("1.50")))

	require.Len(t, rec.Charges, 1)
	assert.True(t, rec.Charges[0].TotalCost.Amount.Equal(decimal.RequireFromString("12.34")))
	require.Len(t, rec.Charges[0].Items, 1)
	assert.Equal(t, "item", rec.Charges[0].Items[0].ChargeType)

	require.Len(t, rec.Shipments, 1)
	shipment := rec.Shipments[0]
	assert.Equal(t, "FedEx Ground", shipment.Carrier)
	assert.Equal(t, "TRK123", shipment.TrackingNumber)
	assert.Equal(t, "us_tx", shipment.LabCode)
	assert.Equal(t, []string{"itm_1"}, shipment.ItemIDs)
	require.NotNil(t, shipment.DispatchDate)

	assert.Equal(t, "Jane Buyer", rec.Recipient.Name)
	assert.Equal(t, "Beverly Hills", rec.Recipient.TownOrCity)

	require.Len(t, rec.Items, 1)
	item := rec.Items[0]
	assert.Equal(t, domain.SizingFillPrintArea, item.Sizing)
	assert.True(t, item.RecipientCost.Amount.Equal(decimal.RequireFromString("20.99")))
	require.Len(t, item.Assets, 1)
	assert.Equal(t, "default", item.Assets[0].PrintArea)

	require.NotNil(t, rec.PackingSlip)
	assert.Equal(t, "https://assets.example.com/slip.pdf", rec.PackingSlip.URL)

	assert.Equal(t, map[string]any{"campaign": "fall-launch"}, rec.Metadata)
}

func TestEmptyPackingSlipIsDropped(t *testing.T) {
	w := wireOrder{ID: "ord_1", PackingSlip: &wirePackingSlip{URL: ""}}
	assert.Nil(t, w.record().PackingSlip)
}

func TestParseAmountInvalidIsZero(t *testing.T) {
	assert.True(t, parseAmount("not-money").IsZero())
	assert.True(t, parseAmount("").IsZero())
}
