package screen

import (
	"github.com/xenking/catalog-admin/internal/domain/catalog"
	"github.com/xenking/catalog-admin/internal/domain/form"
	"github.com/xenking/catalog-admin/internal/domain/product"
)

// Alert texts shown after a failed mutation.
const (
	AlertSaveFailed   = "Something went wrong. Please try again."
	AlertDeleteFailed = "Delete failed. Please try again."
)

// View is the UI state of a screen that is not part of the catalog itself.
type View struct {
	Search        string     `json:"search"`
	Category      string     `json:"category"`
	FormOpen      bool       `json:"formOpen"`
	FormMode      form.Mode  `json:"formMode,omitempty"`
	EditingID     product.ID `json:"editingId,omitempty"`
	ConfirmOpen   bool       `json:"confirmOpen"`
	PendingDelete product.ID `json:"pendingDelete,omitempty"`
	Alert         string     `json:"alert,omitempty"`
}

func initialView() View {
	return View{Category: catalog.AllCategories}
}

// Frame is a consistent copy of everything needed to render a screen.
type Frame struct {
	View       View
	Phase      catalog.Phase
	Busy       bool
	LoadError  string
	Categories []string
	Visible    []product.Product
	Stats      catalog.Stats

	Form       form.State
	FormErrors form.Errors
	CanSubmit  bool

	// Pending is the product awaiting delete confirmation.
	Pending *product.Product
}

// Loading reports whether the product table should show the loading panel.
func (f Frame) Loading() bool {
	return f.Phase == catalog.PhaseLoading || f.Phase == catalog.PhaseIdle
}

// Snapshot is a copy of the catalog lists and phase of a screen.
type Snapshot struct {
	Phase      catalog.Phase
	Products   []product.Product
	Categories []string
}
