package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// AllCategories is the category filter value that matches every product.
const AllCategories = "all"

// Visible returns the products whose category equals category (or any, for
// AllCategories) and whose title contains search, ignoring case and the
// surrounding whitespace of search. The input order is preserved.
func Visible(products []product.Product, search, category string) []product.Product {
	q := strings.ToLower(strings.TrimSpace(search))
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if matchCategory(p, category) && matchTitle(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matchCategory(p product.Product, category string) bool {
	return category == AllCategories || p.Category == category
}

// matchTitle expects q already trimmed and lower-cased.
func matchTitle(p product.Product, q string) bool {
	return q == "" || strings.Contains(strings.ToLower(p.Title), q)
}

// AveragePrice is the arithmetic mean price of products, or zero when there
// are none.
func AveragePrice(products []product.Product) decimal.Decimal {
	if len(products) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range products {
		sum = sum.Add(p.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(products))))
}

// Stats are the figures shown above the product table.
type Stats struct {
	Total        int
	Visible      int
	Categories   int
	Filter       string
	AveragePrice decimal.Decimal
}

// Summarize computes Stats for the catalog and an already filtered visible set.
func Summarize(s *State, visible []product.Product, category string) Stats {
	filter := category
	if category == AllCategories || category == "" {
		filter = "All"
	}
	return Stats{
		Total:        len(s.Products),
		Visible:      len(visible),
		Categories:   len(s.Categories),
		Filter:       filter,
		AveragePrice: AveragePrice(visible),
	}
}
