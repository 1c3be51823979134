// Package form holds the editable fields of the add/edit product dialog and
// their validation rules.
package form

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// ErrInvalid is returned by Submit when a validation rule fails.
var ErrInvalid = errors.New("form has validation errors")

// ErrSubmitting is returned by Submit while a mutation is in flight.
var ErrSubmitting = errors.New("submission in flight")

// Mode tells whether the dialog creates or edits a product.
type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// Field names a validated input.
type Field string

const (
	FieldTitle    Field = "title"
	FieldPrice    Field = "price"
	FieldCategory Field = "category"
)

// Validation messages.
const (
	MsgTitleRequired    = "Title is required"
	MsgCategoryRequired = "Category is required"
	MsgPriceInvalid     = "Price must be > 0"
)

// Values are the raw field values of the dialog.
type Values struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
}

// Errors maps a failing field to its message.
type Errors map[Field]string

// State is the dialog state. Errors are always computed from Values but are
// surfaced only after the first submit attempt.
type State struct {
	Mode    Mode   `json:"mode"`
	Values  Values `json:"values"`
	Touched bool   `json:"touched"`
}

// OpenAdd returns a dialog reset to empty values.
func OpenAdd() State {
	return State{Mode: ModeAdd}
}

// OpenEdit returns a dialog seeded from p.
func OpenEdit(p product.Product) State {
	return State{
		Mode: ModeEdit,
		Values: Values{
			Title:       p.Title,
			Price:       p.Price.InexactFloat64(),
			Category:    p.Category,
			Description: p.Description,
			Image:       p.Image,
		},
	}
}

// ParsePrice converts the text of a price input to a number. Empty text is
// zero; text that is not a number yields NaN so validation rejects it.
func ParsePrice(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Validate evaluates every rule; it does not stop at the first failure.
func (v Values) Validate() Errors {
	errs := make(Errors)
	if strings.TrimSpace(v.Title) == "" {
		errs[FieldTitle] = MsgTitleRequired
	}
	if strings.TrimSpace(v.Category) == "" {
		errs[FieldCategory] = MsgCategoryRequired
	}
	if math.IsNaN(v.Price) || math.IsInf(v.Price, 0) || v.Price <= 0 {
		errs[FieldPrice] = MsgPriceInvalid
	}
	return errs
}

// Errors returns the current validation errors.
func (s State) Errors() Errors {
	return s.Values.Validate()
}

// VisibleErrors returns the errors to display: none before the first submit
// attempt.
func (s State) VisibleErrors() Errors {
	if !s.Touched {
		return Errors{}
	}
	return s.Errors()
}

// CanSubmit reports whether a submission would be accepted.
func (s State) CanSubmit(busy bool) bool {
	return !busy && len(s.Errors()) == 0
}

// Submit records the attempt and returns the normalized payload when the
// values are valid and no mutation is in flight.
func (s *State) Submit(busy bool) (product.Input, error) {
	s.Touched = true
	if busy {
		return product.Input{}, ErrSubmitting
	}
	if len(s.Errors()) > 0 {
		return product.Input{}, ErrInvalid
	}
	return s.Values.Payload(), nil
}

// Payload normalizes the values into a store request body.
func (v Values) Payload() product.Input {
	return product.Input{
		Title:       strings.TrimSpace(v.Title),
		Price:       decimal.NewFromFloat(v.Price),
		Description: v.Description,
		Category:    strings.TrimSpace(v.Category),
		Image:       strings.TrimSpace(v.Image),
	}
}
