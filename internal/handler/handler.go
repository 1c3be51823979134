package handler

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/xenking/catalog-admin/internal/screen"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CookieName is the name of the session cookie.
	CookieName string
	// LoadWait is how long a page render waits for an in-flight load before
	// showing the loading panel instead.
	LoadWait time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Handler serves the admin console pages and the JSON read API. Every request
// is bound to the screen of its session.
type Handler struct {
	sessions *screen.Store
	tmpl     *template.Template
	money    *message.Printer
	cfg      Config
}

// New constructs a Handler backed by sessions.
func New(cfg Config, sessions *screen.Store) (*Handler, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "catalog_session"
	}
	h := &Handler{
		sessions: sessions,
		money:    message.NewPrinter(language.AmericanEnglish),
		cfg:      cfg,
	}
	tmpl, err := parseTemplates(h.funcs())
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	h.tmpl = tmpl
	return h, nil
}

// Register adds the console routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)

	mux.HandleFunc("POST /refresh", h.action(refresh))
	mux.HandleFunc("POST /search/clear", h.action(clearSearch))
	mux.HandleFunc("POST /products/new", h.action(openAdd))
	mux.HandleFunc("POST /products/{id}/edit", h.action(openEdit))
	mux.HandleFunc("POST /form/close", h.action(closeForm))
	mux.HandleFunc("POST /form/submit", h.action(submitForm))
	mux.HandleFunc("POST /products/{id}/delete", h.action(askDelete))
	mux.HandleFunc("POST /delete/cancel", h.action(cancelDelete))
	mux.HandleFunc("POST /delete/confirm", h.action(confirmDelete))
	mux.HandleFunc("POST /alert/dismiss", h.action(dismissAlert))

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
}

// screen returns the screen bound to the request, starting a new session
// when the cookie is missing or stale.
func (h *Handler) screen(w http.ResponseWriter, r *http.Request) *screen.Screen {
	var id string
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		id = c.Value
	}
	key, sc, created := h.sessions.Acquire(r.Context(), id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cfg.CookieName,
			Value:    key.String(),
			Path:     "/",
			HttpOnly: true,
			Secure:   h.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sc
}
