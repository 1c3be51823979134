package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/catalog-admin/internal/domain/catalog"
	"github.com/xenking/catalog-admin/internal/domain/product"
	"github.com/xenking/catalog-admin/internal/screen"
)

// ListProducts serves the visible products of the caller's session, or of the
// shared catalog for callers without one, together with the summary figures.
// The q and category parameters filter like the console does, without
// changing the console's own filter.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, ok := h.readyFrame(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	category := query.Get("category")
	if category == "" {
		category = catalog.AllCategories
	}
	visible := catalog.Visible(f.All, query.Get("q"), category)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("total")
	e.Int(len(f.All))
	e.FieldStart("visible")
	e.Int(len(visible))
	e.FieldStart("averagePrice")
	e.Num(jx.Num(catalog.AveragePrice(visible).StringFixed(2)))
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range visible {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// ListCategories serves the category list of the session.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	f, ok := h.readyFrame(w, r)
	if !ok {
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, c := range f.Categories {
		e.Str(c)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// apiFrame is the catalog of a session as seen by the read API.
type apiFrame struct {
	All        []product.Product
	Categories []string
}

// readyFrame waits for the catalog load and writes an error response when
// the catalog is not available.
func (h *Handler) readyFrame(w http.ResponseWriter, r *http.Request) (apiFrame, bool) {
	sc := h.apiScreen(r)
	if !sc.Await(r.Context(), h.cfg.LoadWait) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Loading products…")
		return apiFrame{}, false
	}

	f := sc.Snapshot()
	switch f.Phase {
	case catalog.PhaseFailed:
		writeError(w, http.StatusBadGateway, catalog.LoadFailedMessage)
		return apiFrame{}, false
	case catalog.PhaseIdle, catalog.PhaseLoading:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Loading products…")
		return apiFrame{}, false
	}
	return apiFrame{All: f.Products, Categories: f.Categories}, true
}

// apiScreen returns the caller's session screen when the request carries a
// live session cookie and the shared screen otherwise. It never starts a
// session.
func (h *Handler) apiScreen(r *http.Request) *screen.Screen {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		if sc, ok := h.sessions.Lookup(c.Value); ok {
			return sc
		}
	}
	return h.sessions.Shared()
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(int64(p.ID))
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("image")
	e.Str(p.Image)
	if p.Rating != nil {
		e.FieldStart("rating")
		e.ObjStart()
		e.FieldStart("rate")
		e.Float64(p.Rating.Rate)
		e.FieldStart("count")
		e.Int(p.Rating.Count)
		e.ObjEnd()
	}
	e.ObjEnd()
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}
