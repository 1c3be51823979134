package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// --- Fake store ---

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        map[string]any
}

type fakeStore struct {
	t        *testing.T
	status   int
	response string
	last     recordedRequest
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.last = recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		require.NoError(f.t, json.Unmarshal(data, &f.last.Body))
	}
	w.Header().Set("Content-Type", "application/json")
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, f.response)
}

func newTestRepo(t *testing.T, f *fakeStore) *ProductRepository {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	repo, err := NewProductRepository(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return repo
}

func sampleInput() product.Input {
	return product.Input{
		Title:       "Shirt",
		Price:       decimal.RequireFromString("19.99"),
		Description: "",
		Category:    "clothing",
		Image:       "",
	}
}

// --- Tests ---

func TestNewProductRepository_RejectsRelativeURL(t *testing.T) {
	_, err := NewProductRepository("/products", nil)
	require.Error(t, err)
}

func TestList(t *testing.T) {
	f := &fakeStore{response: `[
		{"id":1,"title":"Backpack","price":109.95,"description":"Fits laptops","category":"men's clothing",
		 "image":"https://img/1.jpg","rating":{"rate":3.9,"count":120}},
		{"id":2,"title":"Ring","price":"9.99","category":"jewelery","extra":{"nested":[1,2]}},
		{"id":3,"title":"Odd","price":"n/a","category":"electronics","rating":null}
	]`}
	repo := newTestRepo(t, f)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, http.MethodGet, f.last.Method)
	assert.Equal(t, "/products", f.last.Path)

	assert.Equal(t, product.ID(1), products[0].ID)
	assert.Equal(t, "Backpack", products[0].Title)
	assert.True(t, decimal.RequireFromString("109.95").Equal(products[0].Price))
	assert.Equal(t, "men's clothing", products[0].Category)
	require.NotNil(t, products[0].Rating)
	assert.InDelta(t, 3.9, products[0].Rating.Rate, 1e-9)
	assert.Equal(t, 120, products[0].Rating.Count)

	assert.True(t, decimal.RequireFromString("9.99").Equal(products[1].Price), "numeric string price")
	assert.Nil(t, products[1].Rating)

	assert.True(t, products[2].Price.IsZero(), "non-numeric price decodes as zero")
	assert.Nil(t, products[2].Rating)
}

func TestList_StatusError(t *testing.T) {
	f := &fakeStore{status: http.StatusInternalServerError, response: `{"error":"boom"}`}
	repo := newTestRepo(t, f)

	products, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Nil(t, products)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestList_MalformedBody(t *testing.T) {
	f := &fakeStore{response: `{"not":"an array"}`}
	repo := newTestRepo(t, f)

	_, err := repo.List(context.Background())
	require.Error(t, err)
}

func TestCategories(t *testing.T) {
	f := &fakeStore{response: `["electronics","jewelery","men's clothing"]`}
	repo := newTestRepo(t, f)

	categories, err := repo.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"electronics", "jewelery", "men's clothing"}, categories)
	assert.Equal(t, "/products/categories", f.last.Path)
}

func TestCreate(t *testing.T) {
	f := &fakeStore{response: `{"id":101,"title":"Shirt","price":19.99,"description":"","category":"clothing","image":""}`}
	repo := newTestRepo(t, f)

	p, err := repo.Create(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, f.last.Method)
	assert.Equal(t, "/products", f.last.Path)
	assert.Equal(t, "application/json", f.last.ContentType)
	assert.Equal(t, "Shirt", f.last.Body["title"])
	assert.InDelta(t, 19.99, f.last.Body["price"], 1e-9)
	assert.Equal(t, "clothing", f.last.Body["category"])
	assert.Contains(t, f.last.Body, "description")
	assert.Contains(t, f.last.Body, "image")

	assert.Equal(t, product.ID(101), p.ID)
	assert.Equal(t, "Shirt", p.Title)
}

func TestCreate_IDVariants(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		want     product.ID
	}{
		{name: "missing id", response: `{"title":"Shirt"}`, want: 0},
		{name: "string id", response: `{"id":"42","title":"Shirt"}`, want: 42},
		{name: "garbage id", response: `{"id":"abc","title":"Shirt"}`, want: 0},
		{name: "null id", response: `{"id":null,"title":"Shirt"}`, want: 0},
		{name: "fractional id", response: `{"id":4.5,"title":"Shirt"}`, want: 0},
		{name: "negative id", response: `{"id":-3,"title":"Shirt"}`, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newTestRepo(t, &fakeStore{response: tc.response})

			p, err := repo.Create(context.Background(), sampleInput())
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.ID)
		})
	}
}

func TestUpdate(t *testing.T) {
	f := &fakeStore{response: `{"id":7,"title":"Renamed","price":5,"category":"misc"}`}
	repo := newTestRepo(t, f)

	in := sampleInput()
	in.Title = "Renamed"
	p, err := repo.Update(context.Background(), 7, in)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, f.last.Method)
	assert.Equal(t, "/products/7", f.last.Path)
	assert.Equal(t, "Renamed", f.last.Body["title"])
	assert.Equal(t, "Renamed", p.Title)
}

func TestDelete(t *testing.T) {
	f := &fakeStore{response: ``}
	repo := newTestRepo(t, f)

	require.NoError(t, repo.Delete(context.Background(), 7))
	assert.Equal(t, http.MethodDelete, f.last.Method)
	assert.Equal(t, "/products/7", f.last.Path)
}

func TestDelete_NotFound(t *testing.T) {
	f := &fakeStore{status: http.StatusNotFound}
	repo := newTestRepo(t, f)

	require.Error(t, repo.Delete(context.Background(), 7))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	repo, err := NewProductRepository(srv.URL, srv.Client())
	require.NoError(t, err)
	srv.Close()

	_, err = repo.Categories(context.Background())
	require.Error(t, err)
	require.Error(t, repo.Ping(context.Background()))
}
