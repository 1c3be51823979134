package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/domain/catalog"
	"github.com/xenking/catalog-admin/internal/domain/form"
	"github.com/xenking/catalog-admin/internal/domain/product"
	"github.com/xenking/catalog-admin/internal/screen"
)

// Index renders the console. The q and category query parameters, when
// present, replace the current filter.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sc := h.screen(w, r)

	query := r.URL.Query()
	if query.Has("q") || query.Has("category") {
		sc.SetFilter(query.Get("q"), query.Get("category"))
	}
	settled := sc.Await(r.Context(), h.cfg.LoadWait)

	page := pageData{Frame: sc.Frame(), Pending: !settled}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "index.html", page); err != nil {
		zctx.From(r.Context()).Error("Render page", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if page.Pending {
		w.Header().Set("Refresh", "1")
	}
	_, _ = buf.WriteTo(w)
}

// pageData is the template input of index.html.
type pageData struct {
	screen.Frame
	// Pending is set when the load did not settle within the wait; the page
	// asks the browser to reload itself.
	Pending bool
}

// actionFunc applies one user action to a screen.
type actionFunc func(ctx context.Context, sc *screen.Screen, r *http.Request) error

var errBadID = errors.New("invalid product id")

// action runs fn on the session screen and redirects back to the console.
// Refused and failed actions are reflected in the next render, so they only
// get logged here.
func (h *Handler) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := h.screen(w, r)
		if err := fn(r.Context(), sc, r); err != nil {
			if errors.Is(err, errBadID) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			lg := zctx.From(r.Context())
			switch {
			case errors.Is(err, screen.ErrBusy), errors.Is(err, form.ErrInvalid):
				lg.Debug("Action refused", zap.Error(err))
			default:
				lg.Info("Action failed", zap.Error(err))
			}
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func pathID(r *http.Request) (product.ID, error) {
	v, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || !product.ID(v).Usable() {
		return 0, errors.Wrapf(errBadID, "%q", r.PathValue("id"))
	}
	return product.ID(v), nil
}

func refresh(_ context.Context, sc *screen.Screen, _ *http.Request) error {
	return sc.Refresh()
}

func clearSearch(_ context.Context, sc *screen.Screen, _ *http.Request) error {
	sc.ClearSearch()
	return nil
}

func openAdd(_ context.Context, sc *screen.Screen, _ *http.Request) error {
	return sc.OpenAdd()
}

func openEdit(_ context.Context, sc *screen.Screen, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	return sc.OpenEdit(id)
}

func closeForm(_ context.Context, sc *screen.Screen, _ *http.Request) error {
	return sc.CloseForm()
}

func submitForm(ctx context.Context, sc *screen.Screen, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errors.Wrap(err, "parse form")
	}
	return sc.Submit(ctx, form.Values{
		Title:       r.PostForm.Get("title"),
		Price:       form.ParsePrice(r.PostForm.Get("price")),
		Category:    r.PostForm.Get("category"),
		Description: r.PostForm.Get("description"),
		Image:       r.PostForm.Get("image"),
	})
}

func askDelete(_ context.Context, sc *screen.Screen, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	return sc.AskDelete(id)
}

func cancelDelete(_ context.Context, sc *screen.Screen, _ *http.Request) error {
	return sc.CancelDelete()
}

func confirmDelete(ctx context.Context, sc *screen.Screen, _ *http.Request) error {
	return sc.ConfirmDelete(ctx)
}

func dismissAlert(_ context.Context, sc *screen.Screen, _ *http.Request) error {
	sc.DismissAlert()
	return nil
}

// allCategories is exposed to templates as the category sentinel.
const allCategories = catalog.AllCategories
