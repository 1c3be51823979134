package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

const (
	productsPath   = "/products"
	categoriesPath = "/products/categories"

	maxResponseBytes = 8 << 20
)

var _ product.Repository = (*ProductRepository)(nil)

// StatusError is returned when the store answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// ProductRepository implements product.Repository backed by the remote
// store's REST API.
type ProductRepository struct {
	client  *http.Client
	baseURL *url.URL
}

// NewProductRepository returns a ProductRepository that sends requests to
// baseURL using client. A nil client means http.DefaultClient.
func NewProductRepository(baseURL string, client *http.Client) (*ProductRepository, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ProductRepository{client: client, baseURL: u}, nil
}

// List returns all products in the order the store returns them.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	body, err := r.do(ctx, http.MethodGet, productsPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return decodeProducts(jx.DecodeBytes(body))
}

// Categories returns the category names known to the store.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	body, err := r.do(ctx, http.MethodGet, categoriesPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return decodeCategories(jx.DecodeBytes(body))
}

// Create posts a new product and returns the store's copy, including the
// identifier it assigned.
func (r *ProductRepository) Create(ctx context.Context, in product.Input) (product.Product, error) {
	var e jx.Encoder
	encodeInput(&e, in)

	body, err := r.do(ctx, http.MethodPost, productsPath, e.Bytes())
	if err != nil {
		return product.Product{}, errors.Wrap(err, "create product")
	}
	return decodeProduct(jx.DecodeBytes(body))
}

// Update replaces the mutable fields of product id.
func (r *ProductRepository) Update(ctx context.Context, id product.ID, in product.Input) (product.Product, error) {
	var e jx.Encoder
	encodeInput(&e, in)

	body, err := r.do(ctx, http.MethodPut, productPath(id), e.Bytes())
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "update product %d", id)
	}
	return decodeProduct(jx.DecodeBytes(body))
}

// Delete removes product id. The response body is ignored.
func (r *ProductRepository) Delete(ctx context.Context, id product.ID) error {
	if _, err := r.do(ctx, http.MethodDelete, productPath(id), nil); err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	return nil
}

// Ping issues a cheap read against the store. It backs the readiness probe.
func (r *ProductRepository) Ping(ctx context.Context) error {
	_, err := r.do(ctx, http.MethodGet, categoriesPath, nil)
	return err
}

func productPath(id product.ID) string {
	return productsPath + "/" + strconv.FormatInt(int64(id), 10)
}

// do performs a single request. There is no retry.
func (r *ProductRepository) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	u := r.baseURL.JoinPath(path)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	return data, nil
}
