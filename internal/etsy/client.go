// Package etsy wraps the marketplace v3 API: the receipt/listing read
// endpoints the ingest loop walks, and the shipment-posting endpoint the
// poll loop calls on terminal orders.
package etsy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/autogenerations/printsync/internal/config"
	"go.uber.org/zap"
)

// Client is the consumed surface of the marketplace API.
type Client interface {
	ListReceipts(ctx context.Context, minCreated *time.Time) ([]Payload, error)
	GetReceipt(ctx context.Context, receiptID int64) (Payload, error)
	CreateReceiptShipment(ctx context.Context, receiptID int64, carrier CarrierCode, trackingCode, note string, sendBCC bool) (Payload, error)

	GetListing(ctx context.Context, listingID int64) (Payload, error)
	GetShop(ctx context.Context, shopID int64) (Payload, error)
	GetShopSection(ctx context.Context, shopID, sectionID int64) (Payload, error)
	GetReturnPolicy(ctx context.Context, shopID, policyID int64) (Payload, error)
	GetShippingProfile(ctx context.Context, shopID, profileID int64) (Payload, error)
	GetProductionPartners(ctx context.Context, listingID int64) ([]Payload, error)
	GetListingProduct(ctx context.Context, listingID, productID int64) (Payload, error)
}

// APIError carries the non-2xx response body so batch loops can report it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("etsy: request failed with status %d: %s", e.StatusCode, e.Body)
}

type client struct {
	baseURL string
	shopID  int64
	tokens  *tokenSource
	http    *http.Client
	log     *zap.Logger
}

// NewClient builds the HTTP marketplace client.
func NewClient(cfg config.Config, log *zap.Logger) (Client, error) {
	shopID, err := strconv.ParseInt(cfg.Etsy.ShopID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("etsy: invalid shop id %q: %w", cfg.Etsy.ShopID, err)
	}
	return &client{
		baseURL: cfg.Etsy.BaseURL,
		shopID:  shopID,
		tokens:  newTokenSource(cfg.Etsy, log),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.Named("etsy"),
	}, nil
}

func (c *client) ListReceipts(ctx context.Context, minCreated *time.Time) ([]Payload, error) {
	values := url.Values{}
	if minCreated != nil {
		values.Set("min_created", strconv.FormatInt(minCreated.Unix(), 10))
	}
	path := fmt.Sprintf("/application/shops/%d/receipts", c.shopID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, values, nil)
	if err != nil {
		return nil, err
	}
	return resp.Objects("results"), nil
}

func (c *client) GetReceipt(ctx context.Context, receiptID int64) (Payload, error) {
	path := fmt.Sprintf("/application/shops/%d/receipts/%d", c.shopID, receiptID)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

func (c *client) CreateReceiptShipment(ctx context.Context, receiptID int64, carrier CarrierCode, trackingCode, note string, sendBCC bool) (Payload, error) {
	path := fmt.Sprintf("/application/shops/%d/receipts/%d/tracking", c.shopID, receiptID)
	body := map[string]any{
		"carrier_name":  string(carrier),
		"tracking_code": trackingCode,
		"note_to_buyer": note,
		"send_bcc":      sendBCC,
	}
	return c.doRequest(ctx, http.MethodPost, path, nil, body)
}

func (c *client) GetListing(ctx context.Context, listingID int64) (Payload, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/application/listings/%d", listingID), nil, nil)
}

func (c *client) GetShop(ctx context.Context, shopID int64) (Payload, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/application/shops/%d", shopID), nil, nil)
}

func (c *client) GetShopSection(ctx context.Context, shopID, sectionID int64) (Payload, error) {
	path := fmt.Sprintf("/application/shops/%d/sections/%d", shopID, sectionID)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

func (c *client) GetReturnPolicy(ctx context.Context, shopID, policyID int64) (Payload, error) {
	path := fmt.Sprintf("/application/shops/%d/policies/return/%d", shopID, policyID)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

func (c *client) GetShippingProfile(ctx context.Context, shopID, profileID int64) (Payload, error) {
	path := fmt.Sprintf("/application/shops/%d/shipping-profiles/%d", shopID, profileID)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

func (c *client) GetProductionPartners(ctx context.Context, listingID int64) ([]Payload, error) {
	path := fmt.Sprintf("/application/listings/%d/production-partners", listingID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Objects("results"), nil
}

func (c *client) GetListingProduct(ctx context.Context, listingID, productID int64) (Payload, error) {
	path := fmt.Sprintf("/application/listings/%d/inventory/products/%d", listingID, productID)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// doRequest builds a fresh request with fresh headers every call. Header
// state is never shared between requests.
func (c *client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (Payload, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.tokens.keystring)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var payload Payload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("etsy: decode response: %w", err)
		}
	}
	return payload, nil
}
