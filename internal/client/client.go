// Package client talks to the pharmapos HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pharmapos/internal/domain"
)

const DefaultTimeout = 5 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client

	// RetryDelay is multiplied by the attempt number between stream
	// reconnects. MaxFailures consecutive failed attempts end Subscribe.
	RetryDelay  time.Duration
	MaxFailures int
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: DefaultTimeout},
		stream:      &http.Client{},
		RetryDelay:  time.Second,
		MaxFailures: 5,
	}
}

// SaleReceipt is the answer to a committed sale.
type SaleReceipt struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	ID      int64       `json:"id"`
	Sale    domain.Sale `json:"sale"`
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := c.do(ctx, http.MethodGet, "/api/products", nil, &out)
	return out, err
}

func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodGet, productPath(id), nil, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodPost, "/api/products", input, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, input domain.ProductInput) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodPut, productPath(id), input, &out)
	return out, err
}

func (c *Client) SetStock(ctx context.Context, id int64, stock int) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodPut, productPath(id)+"/stock", map[string]int{"stock": stock}, &out)
	return out, err
}

func (c *Client) AdjustStock(ctx context.Context, id int64, delta int) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodPost, productPath(id)+"/stock/adjust", map[string]int{"delta": delta}, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out)
	return out, err
}

func (c *Client) CreateSale(ctx context.Context, input domain.SaleInput) (SaleReceipt, error) {
	var out SaleReceipt
	err := c.do(ctx, http.MethodPost, "/api/sales", input, &out)
	return out, err
}

func (c *Client) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var out []domain.Sale
	err := c.do(ctx, http.MethodGet, "/api/sales", nil, &out)
	return out, err
}

func (c *Client) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	var out domain.Sale
	err := c.do(ctx, http.MethodGet, "/api/sales/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

func (c *Client) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	var out []domain.Product
	err := c.do(ctx, http.MethodGet, "/api/alerts/low-stock?threshold="+strconv.Itoa(threshold), nil, &out)
	return out, err
}

// ResetData clears the tables behind a dashboard tab and returns the
// server's confirmation.
func (c *Client) ResetData(ctx context.Context, scope string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/reset-data", map[string]string{"tabType": scope}, &out)
	return out.Message, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func productPath(id int64) string {
	return "/api/products/" + strconv.FormatInt(id, 10)
}
