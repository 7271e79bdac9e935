// Package pos talks to the external point-of-sale system that supplies
// ingredient, supplier and category records for a restaurant. The rest of
// the application depends only on the Syncer interface; mapping the records
// into the local catalog happens elsewhere.
package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Ingredient is a stock item as the POS reports it
type Ingredient struct {
	ID         string  `json:"ingredient_id"`
	Name       string  `json:"ingredient_name"`
	Unit       string  `json:"ingredient_unit"`
	CategoryID string  `json:"category_id"`
	Left       float64 `json:"ingredient_left"`
}

// SupplierRecord is a supplier as the POS reports it
type SupplierRecord struct {
	ID    string `json:"supplier_id"`
	Name  string `json:"supplier_name"`
	Phone string `json:"supplier_phone"`
}

// CategoryRecord is an ingredient category as the POS reports it
type CategoryRecord struct {
	ID   string `json:"category_id"`
	Name string `json:"category_name"`
}

// Syncer fetches inventory records from the POS for one restaurant
type Syncer interface {
	FetchIngredients(ctx context.Context) ([]Ingredient, error)
	FetchSuppliers(ctx context.Context) ([]SupplierRecord, error)
	FetchCategories(ctx context.Context) ([]CategoryRecord, error)
}

// Client is the HTTP implementation of Syncer, configured with one
// restaurant's POS credentials.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a POS client for a restaurant's base URL and token
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchIngredients implements Syncer
func (c *Client) FetchIngredients(ctx context.Context) ([]Ingredient, error) {
	var out []Ingredient
	if err := c.get(ctx, "storage.getIngredients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchSuppliers implements Syncer
func (c *Client) FetchSuppliers(ctx context.Context) ([]SupplierRecord, error) {
	var out []SupplierRecord
	if err := c.get(ctx, "storage.getSuppliers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCategories implements Syncer
func (c *Client) FetchCategories(ctx context.Context) ([]CategoryRecord, error) {
	var out []CategoryRecord
	if err := c.get(ctx, "menu.getCategories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs one authenticated API call and decodes the response envelope
func (c *Client) get(ctx context.Context, method string, out interface{}) error {
	endpoint := fmt.Sprintf("%s/api/%s?token=%s", c.baseURL, method, url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("pos: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pos: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pos: %s: unexpected status %d", method, resp.StatusCode)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("pos: %s: decode response: %w", method, err)
	}

	if err := json.Unmarshal(envelope.Response, out); err != nil {
		return fmt.Errorf("pos: %s: decode payload: %w", method, err)
	}
	return nil
}
