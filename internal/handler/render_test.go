package handler

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

func TestFormatMoney(t *testing.T) {
	h, err := New(Config{}, nil)
	require.NoError(t, err)

	testCases := []struct {
		in   string
		want string
	}{
		{in: "0", want: "$0.00"},
		{in: "9.99", want: "$9.99"},
		{in: "1234.5", want: "$1,234.50"},
		{in: "1000000", want: "$1,000,000.00"},
		{in: "27.495", want: "$27.50"},
		{in: "-5", want: "-$5.00"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, h.formatMoney(decimal.RequireFromString(tc.in)))
		})
	}
}

func TestStars(t *testing.T) {
	assert.Equal(t, [5]bool{true, true, true, true, false}, stars(&product.Rating{Rate: 3.9}))
	assert.Equal(t, [5]bool{true, true, true, false, false}, stars(&product.Rating{Rate: 3.4}))
	assert.Equal(t, [5]bool{true, true, true, true, true}, stars(&product.Rating{Rate: 5}))
	assert.Equal(t, [5]bool{}, stars(nil))
}

func TestRatingLabel(t *testing.T) {
	assert.Equal(t, "3.9", ratingLabel(&product.Rating{Rate: 3.9, Count: 120}))
	assert.Equal(t, "4.0", ratingLabel(&product.Rating{Rate: 4}))
	assert.Equal(t, "—", ratingLabel(nil))
	assert.Equal(t, "—", ratingLabel(&product.Rating{Rate: 0, Count: 3}))
}

func TestPriceInput(t *testing.T) {
	assert.Equal(t, "19.99", priceInput(19.99))
	assert.Equal(t, "0", priceInput(0))
	assert.Empty(t, priceInput(math.NaN()))
}

func TestCategoryOptions(t *testing.T) {
	categories := []string{"electronics", "jewelery"}

	assert.Equal(t, categories, categoryOptions(categories, ""))
	assert.Equal(t, categories, categoryOptions(categories, "jewelery"))
	assert.Equal(t, []string{"electronics", "jewelery", "vintage"}, categoryOptions(categories, "vintage"))
	assert.Len(t, categories, 2, "input list is not modified")
}
