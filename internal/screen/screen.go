// Package screen drives one admin session: it owns the catalog mirror, the
// view state and the product form, and turns user actions into store calls.
//
// All state transitions happen under a single mutex. Store calls run outside
// of it, so a slow store never blocks rendering.
package screen

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-admin/internal/domain/catalog"
	"github.com/xenking/catalog-admin/internal/domain/form"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

var (
	// ErrBusy is returned for actions attempted while a mutation is in flight.
	ErrBusy = errors.New("screen is busy")
	// ErrNoTarget is returned when an action has nothing to act on, such as
	// confirming a delete that was never requested.
	ErrNoTarget = errors.New("no target for action")
	// ErrClosed is returned by every action after Close.
	ErrClosed = errors.New("screen closed")
)

// Options are the optional collaborators of a Screen.
type Options struct {
	Logger  *zap.Logger
	Tracer  trace.Tracer
	Metrics *Metrics
	// Now is the clock used for synthetic product identifiers.
	Now func() time.Time
}

// Screen is the state of one admin session.
type Screen struct {
	repo    product.Repository
	lg      *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	catalog *catalog.State
	view    View
	form    form.State
	// settled is closed when the most recent load has been applied.
	settled chan struct{}
}

// New returns an idle screen. Background loads run under ctx until Close.
func New(ctx context.Context, repo product.Repository, opts Options) *Screen {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	ctx, cancel := context.WithCancel(ctx)
	settled := make(chan struct{})
	close(settled)

	return &Screen{
		repo:    repo,
		lg:      opts.Logger,
		tracer:  opts.Tracer,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		catalog: catalog.NewState(opts.Now),
		view:    initialView(),
		settled: settled,
	}
}

// Mount starts the initial load.
func (s *Screen) Mount() error {
	return s.Refresh()
}

// Close marks the screen defunct. A load still in flight is cancelled and its
// result, if any arrives, is discarded.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// Refresh starts a load of products and categories in the background. It is
// a no-op while a load is already in flight.
func (s *Screen) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.catalog.BeginLoad(); err != nil {
		if errors.Is(err, catalog.ErrLoading) {
			return nil
		}
		return gate(err)
	}

	settled := make(chan struct{})
	s.settled = settled
	go s.load(settled)
	return nil
}

func (s *Screen) load(settled chan struct{}) {
	defer close(settled)

	ctx, span := s.tracer.Start(s.ctx, "screen.Load")
	defer span.End()

	snap, err := fetch(ctx, s.repo)
	s.metrics.load(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.lg.Debug("Discarding load result of closed screen")
		return
	}
	s.catalog.ApplyLoad(catalog.Resolve(snap, err))
	if err != nil {
		s.lg.Warn("Catalog load failed", zap.Error(err))
		return
	}
	s.lg.Info("Catalog loaded",
		zap.Int("products", len(snap.Products)),
		zap.Int("categories", len(snap.Categories)),
	)
}

// fetch requests both lists concurrently. Either both are returned or
// neither is.
func fetch(ctx context.Context, repo product.Repository) (catalog.Snapshot, error) {
	var snap catalog.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := repo.List(gctx)
		if err != nil {
			return errors.Wrap(err, "products")
		}
		snap.Products = products
		return nil
	})
	g.Go(func() error {
		categories, err := repo.Categories(gctx)
		if err != nil {
			return errors.Wrap(err, "categories")
		}
		snap.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return catalog.Snapshot{}, err
	}
	return snap, nil
}

// Await blocks until the most recent load has been applied, wait elapses or
// ctx is done. It reports whether the load settled.
func (s *Screen) Await(ctx context.Context, wait time.Duration) bool {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-settled:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// SetFilter replaces the search text and the category filter. An empty
// category selects every category.
func (s *Screen) SetFilter(search, category string) {
	if category == "" {
		category = catalog.AllCategories
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Search = search
	s.view.Category = category
}

// ClearSearch empties the search text and keeps the category filter.
func (s *Screen) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Search = ""
}

// OpenAdd opens an empty product form.
func (s *Screen) OpenAdd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	s.form = form.OpenAdd()
	s.view.FormOpen = true
	s.view.FormMode = form.ModeAdd
	s.view.EditingID = 0
	return nil
}

// OpenEdit opens the product form seeded from product id.
func (s *Screen) OpenEdit(id product.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	p, ok := s.catalog.Find(id)
	if !ok {
		return errors.Wrapf(catalog.ErrNotFound, "edit %d", id)
	}
	s.form = form.OpenEdit(p)
	s.view.FormOpen = true
	s.view.FormMode = form.ModeEdit
	s.view.EditingID = id
	return nil
}

// CloseForm dismisses the product form without saving.
func (s *Screen) CloseForm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	s.view.FormOpen = false
	return nil
}

// Submit validates values and, when they pass, creates or updates the
// product. Invalid values return form.ErrInvalid without any store call and
// leave the errors visible. A failed store call keeps the form open and
// raises an alert.
func (s *Screen) Submit(ctx context.Context, values form.Values) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.view.FormOpen {
		s.mu.Unlock()
		return errors.Wrap(ErrNoTarget, "form is not open")
	}
	if s.catalog.Busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.form.Values = values
	in, err := s.form.Submit(false)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.catalog.BeginMutation(); err != nil {
		s.mu.Unlock()
		return gate(err)
	}
	mode, id := s.view.FormMode, s.view.EditingID
	s.mu.Unlock()

	// The mutation is not cancelled when the client goes away.
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "screen.Submit",
		trace.WithAttributes(
			attribute.String("form.mode", string(mode)),
			attribute.Int64("product.id", int64(id)),
		),
	)
	defer span.End()

	var (
		saved product.Product
		res   catalog.Result[product.Product]
	)
	if mode == form.ModeEdit {
		p, err := s.repo.Update(ctx, id, in)
		res = catalog.Resolve(p, err)
	} else {
		p, err := s.repo.Create(ctx, in)
		res = catalog.Resolve(p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if mode == form.ModeEdit {
		saved, err = s.catalog.ApplyUpdate(id, res)
	} else {
		saved, err = s.catalog.ApplyCreate(res)
	}
	s.metrics.mutation(ctx, string(mode), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.view.Alert = AlertSaveFailed
		s.lg.Warn("Product save failed",
			zap.String("mode", string(mode)),
			zap.Int64("id", int64(id)),
			zap.Error(err),
		)
		return err
	}

	s.view.FormOpen = false
	s.lg.Info("Product saved",
		zap.String("mode", string(mode)),
		zap.Int64("id", int64(saved.ID)),
	)
	return nil
}

// AskDelete opens the delete confirmation for product id.
func (s *Screen) AskDelete(id product.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	if _, ok := s.catalog.Find(id); !ok {
		return errors.Wrapf(catalog.ErrNotFound, "delete %d", id)
	}
	s.view.ConfirmOpen = true
	s.view.PendingDelete = id
	return nil
}

// CancelDelete closes the delete confirmation. The catalog is untouched.
func (s *Screen) CancelDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idle(); err != nil {
		return err
	}
	s.view.ConfirmOpen = false
	s.view.PendingDelete = 0
	return nil
}

// ConfirmDelete deletes the pending product. On failure the confirmation
// stays open and an alert is raised.
func (s *Screen) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	id := s.view.PendingDelete
	if !s.view.ConfirmOpen || !id.Usable() {
		s.mu.Unlock()
		return ErrNoTarget
	}
	if err := s.catalog.BeginMutation(); err != nil {
		s.mu.Unlock()
		return gate(err)
	}
	s.mu.Unlock()

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "screen.Delete",
		trace.WithAttributes(attribute.Int64("product.id", int64(id))),
	)
	defer span.End()

	res := catalog.Resolve(struct{}{}, s.repo.Delete(ctx, id))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	err := s.catalog.ApplyDelete(id, res)
	s.metrics.mutation(ctx, "delete", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		s.view.Alert = AlertDeleteFailed
		s.lg.Warn("Product delete failed", zap.Int64("id", int64(id)), zap.Error(err))
		return err
	}

	s.view.ConfirmOpen = false
	s.view.PendingDelete = 0
	s.lg.Info("Product deleted", zap.Int64("id", int64(id)))
	return nil
}

// DismissAlert clears the alert.
func (s *Screen) DismissAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Alert = ""
}

// View returns a copy of the view state.
func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Phase returns the catalog phase.
func (s *Screen) Phase() catalog.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Phase
}

// Snapshot returns a copy of the catalog, unfiltered.
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:      s.catalog.Phase,
		Products:   slices.Clone(s.catalog.Products),
		Categories: slices.Clone(s.catalog.Categories),
	}
}

// Frame returns a render-ready copy of the screen. The visible set is
// recomputed on every call.
func (s *Screen) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	busy := s.catalog.Busy()
	visible := catalog.Visible(s.catalog.Products, s.view.Search, s.view.Category)
	f := Frame{
		View:       s.view,
		Phase:      s.catalog.Phase,
		Busy:       busy,
		Categories: slices.Clone(s.catalog.Categories),
		Visible:    visible,
		Stats:      catalog.Summarize(s.catalog, visible, s.view.Category),
		Form:       s.form,
		FormErrors: s.form.VisibleErrors(),
		CanSubmit:  s.form.CanSubmit(busy),
	}
	if s.catalog.Failed() {
		f.LoadError = catalog.LoadFailedMessage
	}
	if s.view.ConfirmOpen {
		if p, ok := s.catalog.Find(s.view.PendingDelete); ok {
			f.Pending = &p
		}
	}
	return f
}

// idle reports ErrClosed or ErrBusy when user actions are disabled.
// Must be called with s.mu held.
func (s *Screen) idle() error {
	if s.closed {
		return ErrClosed
	}
	if s.catalog.Busy() {
		return ErrBusy
	}
	return nil
}

// gate translates a refused catalog transition into a screen error.
func gate(err error) error {
	if errors.Is(err, catalog.ErrBusy) {
		return ErrBusy
	}
	return err
}
