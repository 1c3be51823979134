package handler

import (
	"embed"
	"html/template"
	"math"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/xenking/catalog-admin/internal/domain/form"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

//go:embed templates/*.html
var templatesFS embed.FS

const noRating = "—"

func parseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

func (h *Handler) funcs() template.FuncMap {
	return template.FuncMap{
		"money":       h.formatMoney,
		"stars":       stars,
		"rated":       rated,
		"ratingLabel": ratingLabel,
		"priceInput":  priceInput,
		"fieldError":  fieldError,
		"options":     categoryOptions,
		"all":         func() string { return allCategories },
	}
}

// categoryOptions lists the choices of the form's category field. A current
// category missing from the store's list is kept as a choice so that editing
// such a product does not blank it.
func categoryOptions(categories []string, current string) []string {
	if current == "" || slices.Contains(categories, current) {
		return categories
	}
	return append(slices.Clone(categories), current)
}

// formatMoney renders an amount in US dollars with thousands separators,
// e.g. $1,234.50.
func (h *Handler) formatMoney(d decimal.Decimal) string {
	v := d.Round(2).InexactFloat64()
	if v < 0 {
		return "-$" + h.money.Sprintf("%.2f", -v)
	}
	return "$" + h.money.Sprintf("%.2f", v)
}

// rated reports whether a product carries a displayable rating. A zero rate
// counts as no rating.
func rated(r *product.Rating) bool {
	return r != nil && r.Rate != 0 && !math.IsNaN(r.Rate)
}

// stars returns five flags, the first round(rate) of them set.
func stars(r *product.Rating) [5]bool {
	var out [5]bool
	if !rated(r) {
		return out
	}
	full := int(math.Round(r.Rate))
	for i := range out {
		out[i] = i+1 <= full
	}
	return out
}

func ratingLabel(r *product.Rating) string {
	if !rated(r) {
		return noRating
	}
	return strconv.FormatFloat(r.Rate, 'f', 1, 64)
}

// priceInput renders the price for the number input. NaN, which an
// unparsable entry turns into, is shown as empty.
func priceInput(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fieldError(errs form.Errors, field string) string {
	return errs[form.Field(field)]
}
