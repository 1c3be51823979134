package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// ID identifies a product in the remote store. Values <= 0 are not usable
// identifiers.
type ID int64

// Usable reports whether id can identify a catalog entry.
func (id ID) Usable() bool { return id > 0 }

// Product represents a catalog item mirrored from the remote store.
type Product struct {
	ID          ID
	Title       string
	Price       decimal.Decimal
	Category    string
	Description string
	Image       string
	Rating      *Rating
}

// Rating is the aggregated review score of a product.
type Rating struct {
	Rate  float64
	Count int
}

// Input holds the mutable subset of Product sent on create and update.
type Input struct {
	Title       string
	Price       decimal.Decimal
	Description string
	Category    string
	Image       string
}

// Repository defines the operations offered by the remote product store.
// Every call is a single request; failures are opaque.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, in Input) (Product, error)
	Update(ctx context.Context, id ID, in Input) (Product, error)
	Delete(ctx context.Context, id ID) error
}
