package prodigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/autogenerations/printsync/internal/config"
	"github.com/autogenerations/printsync/internal/fulfillment/domain"
	"go.uber.org/zap"
)

// Client is the consumed surface of the fulfillment partner API.
type Client interface {
	// CreateOrder submits an order. The returned outcome distinguishes a
	// fresh creation from a dedup hit on the idempotency key and from a
	// creation that came back with issues attached.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.CreateOutcome, OrderRecord, error)
	GetOrder(ctx context.Context, orderID string) (OrderRecord, error)
	CancelOrder(ctx context.Context, orderID string) (OrderRecord, error)
	UpdateShippingMethod(ctx context.Context, orderID string, method domain.ShippingMethod) (OrderRecord, error)
}

// CreateOrderRequest is the payload for order submission.
type CreateOrderRequest struct {
	IdempotencyKey    string
	MerchantReference string
	ShippingMethod    domain.ShippingMethod
	Recipient         RecipientRequest
	Items             []ItemRequest
}

// RecipientRequest is the delivery contact on a new order.
type RecipientRequest struct {
	Name        string
	Email       string
	PhoneNumber string

	Line1           string
	Line2           string
	PostalOrZipCode string
	CountryCode     string
	TownOrCity      string
	StateOrCounty   string
}

// ItemRequest is one line item on a new order.
type ItemRequest struct {
	MerchantReference string
	SKU               string
	Copies            int
	Sizing            domain.Sizing
	Attributes        map[string]string
	Assets            []AssetRequest
}

// AssetRequest is one print file on a new item.
type AssetRequest struct {
	PrintArea string
	URL       string
}

// APIError carries the non-2xx response body so batch loops can report it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prodigi: request failed with status %d: %s", e.StatusCode, e.Body)
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// NewClient builds the HTTP partner client.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	return &client{
		baseURL: cfg.Prodigi.BaseURL,
		apiKey:  cfg.Prodigi.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.Named("prodigi"),
	}
}

type orderEnvelope struct {
	Outcome string    `json:"outcome"`
	Order   wireOrder `json:"order"`
}

func (c *client) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.CreateOutcome, OrderRecord, error) {
	items := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		assets := make([]map[string]any, 0, len(item.Assets))
		for _, asset := range item.Assets {
			assets = append(assets, map[string]any{
				"printArea": asset.PrintArea,
				"url":       asset.URL,
			})
		}
		entry := map[string]any{
			"merchantReference": item.MerchantReference,
			"sku":               item.SKU,
			"copies":            item.Copies,
			"sizing":            string(item.Sizing),
			"assets":            assets,
		}
		if len(item.Attributes) > 0 {
			entry["attributes"] = item.Attributes
		}
		items = append(items, entry)
	}

	body := map[string]any{
		"idempotencyKey":    req.IdempotencyKey,
		"merchantReference": req.MerchantReference,
		"shippingMethod":    string(req.ShippingMethod),
		"recipient": map[string]any{
			"name":        req.Recipient.Name,
			"email":       req.Recipient.Email,
			"phoneNumber": req.Recipient.PhoneNumber,
			"address": map[string]any{
				"line1":           req.Recipient.Line1,
				"line2":           req.Recipient.Line2,
				"postalOrZipCode": req.Recipient.PostalOrZipCode,
				"countryCode":     req.Recipient.CountryCode,
				"townOrCity":      req.Recipient.TownOrCity,
				"stateOrCounty":   req.Recipient.StateOrCounty,
			},
		},
		"items": items,
	}

	envelope, err := c.doRequest(ctx, http.MethodPost, "/Orders", body)
	if err != nil {
		return "", OrderRecord{}, err
	}
	return domain.CreateOutcome(normalizeEnum(envelope.Outcome)), envelope.Order.record(), nil
}

func (c *client) GetOrder(ctx context.Context, orderID string) (OrderRecord, error) {
	envelope, err := c.doRequest(ctx, http.MethodGet, "/Orders/"+orderID, nil)
	if err != nil {
		return OrderRecord{}, err
	}
	return envelope.Order.record(), nil
}

func (c *client) CancelOrder(ctx context.Context, orderID string) (OrderRecord, error) {
	envelope, err := c.doRequest(ctx, http.MethodPost, "/Orders/"+orderID+"/actions/cancel", nil)
	if err != nil {
		return OrderRecord{}, err
	}
	return envelope.Order.record(), nil
}

func (c *client) UpdateShippingMethod(ctx context.Context, orderID string, method domain.ShippingMethod) (OrderRecord, error) {
	body := map[string]any{"shippingMethod": string(method)}
	envelope, err := c.doRequest(ctx, http.MethodPost, "/Orders/"+orderID+"/actions/updateShippingMethod", body)
	if err != nil {
		return OrderRecord{}, err
	}
	return envelope.Order.record(), nil
}

// doRequest builds a fresh request with fresh headers every call. Header
// state is never shared between requests.
func (c *client) doRequest(ctx context.Context, method, path string, body any) (orderEnvelope, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return orderEnvelope{}, err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return orderEnvelope{}, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return orderEnvelope{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return orderEnvelope{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return orderEnvelope{}, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var envelope orderEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return orderEnvelope{}, fmt.Errorf("prodigi: decode response: %w", err)
	}
	return envelope, nil
}
