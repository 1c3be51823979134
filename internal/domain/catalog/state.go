// Package catalog holds the in-memory mirror of the remote product store and
// the transitions that keep it in step with store responses.
//
// Every transition is a method on State taking a Result, so the outcome of a
// store call (success or failure) can be replayed in tests without a network.
// A failed Result never changes the product list.
package catalog

import (
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// LoadFailedMessage is shown in place of the product table after a failed load.
const LoadFailedMessage = "Failed to load products. Please try again."

// Sentinel errors returned by transitions that are not allowed in the current phase.
var (
	ErrBusy     = errors.New("mutation in flight")
	ErrLoading  = errors.New("load in flight")
	ErrNotReady = errors.New("catalog not loaded")
	ErrNotFound = errors.New("product not in catalog")
)

// Phase is the screen-level state of the catalog.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
	PhaseMutating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseMutating:
		return "mutating"
	default:
		return "unknown"
	}
}

// Snapshot is the joint payload of a load: both lists or nothing.
type Snapshot struct {
	Products   []product.Product
	Categories []string
}

// State is the catalog mirror plus its phase. The zero value is an idle,
// empty catalog.
type State struct {
	Products   []product.Product
	Categories []string
	Phase      Phase
	// Err is the reason of the last failed load. It is cleared when a new
	// load begins.
	Err error

	now func() time.Time
}

// NewState returns an idle State. now supplies the clock used for synthetic
// identifiers; nil means time.Now.
func NewState(now func() time.Time) *State {
	return &State{now: now}
}

// Loading reports whether a load is in flight.
func (s *State) Loading() bool { return s.Phase == PhaseLoading }

// Busy reports whether a mutation is in flight.
func (s *State) Busy() bool { return s.Phase == PhaseMutating }

// Failed reports whether the last load failed.
func (s *State) Failed() bool { return s.Phase == PhaseFailed }

// BeginLoad enters the Loading phase. A load may start from any phase except
// while another load or a mutation is in flight.
func (s *State) BeginLoad() error {
	switch s.Phase {
	case PhaseLoading:
		return ErrLoading
	case PhaseMutating:
		return ErrBusy
	}
	s.Phase = PhaseLoading
	s.Err = nil
	return nil
}

// ApplyLoad ends a load. On success both lists are replaced together; on
// failure neither is touched and the state moves to Failed.
func (s *State) ApplyLoad(r Result[Snapshot]) {
	if !r.OK() {
		s.Phase = PhaseFailed
		s.Err = r.Err
		return
	}
	s.Products = slices.Clone(r.Value.Products)
	s.Categories = slices.Clone(r.Value.Categories)
	s.Phase = PhaseReady
	s.Err = nil
}

// BeginMutation enters the Mutating phase. Only a Ready catalog can be mutated.
func (s *State) BeginMutation() error {
	switch s.Phase {
	case PhaseReady:
		s.Phase = PhaseMutating
		return nil
	case PhaseMutating:
		return ErrBusy
	case PhaseLoading:
		return ErrLoading
	default:
		return ErrNotReady
	}
}

func (s *State) endMutation() {
	if s.Phase == PhaseMutating {
		s.Phase = PhaseReady
	}
}

// ApplyCreate ends a create. The created product is inserted at the head of
// the list. When the store did not return a usable identifier, or returned
// one already present in the list, a synthetic identifier is assigned.
func (s *State) ApplyCreate(r Result[product.Product]) (product.Product, error) {
	defer s.endMutation()
	if !r.OK() {
		return product.Product{}, r.Err
	}

	created := r.Value
	if !created.ID.Usable() || s.index(created.ID) >= 0 {
		created.ID = s.syntheticID()
	}
	s.Products = slices.Insert(slices.Clone(s.Products), 0, created)
	return created, nil
}

// ApplyUpdate ends an update of product id. The response replaces the stored
// fields; the identifier and the position stay as they were.
func (s *State) ApplyUpdate(id product.ID, r Result[product.Product]) (product.Product, error) {
	defer s.endMutation()
	if !r.OK() {
		return product.Product{}, r.Err
	}

	i := s.index(id)
	if i < 0 {
		return product.Product{}, errors.Wrapf(ErrNotFound, "update %d", id)
	}
	products := slices.Clone(s.Products)
	products[i] = merge(products[i], r.Value)
	s.Products = products
	return products[i], nil
}

// ApplyDelete ends a delete of product id, removing exactly that entry.
func (s *State) ApplyDelete(id product.ID, r Result[struct{}]) error {
	defer s.endMutation()
	if !r.OK() {
		return r.Err
	}

	i := s.index(id)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "delete %d", id)
	}
	s.Products = slices.Delete(slices.Clone(s.Products), i, i+1)
	return nil
}

// Find returns the product with the given id.
func (s *State) Find(id product.ID) (product.Product, bool) {
	i := s.index(id)
	if i < 0 {
		return product.Product{}, false
	}
	return s.Products[i], true
}

func (s *State) index(id product.ID) int {
	return slices.IndexFunc(s.Products, func(p product.Product) bool {
		return p.ID == id
	})
}

// merge replaces the editable fields of base with those of patch. The
// identifier is kept, and so is the rating unless patch carries one.
func merge(base, patch product.Product) product.Product {
	out := patch
	out.ID = base.ID
	if patch.Rating == nil {
		out.Rating = base.Rating
	} else {
		r := *patch.Rating
		out.Rating = &r
	}
	return out
}
