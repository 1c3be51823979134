package catalog

import (
	"time"

	"github.com/xenking/catalog-admin/internal/domain/product"
)

// syntheticID derives an identifier from the current time in milliseconds,
// stepping forward past any identifier already in the list.
func (s *State) syntheticID() product.ID {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	id := product.ID(now().UnixMilli())
	if !id.Usable() {
		id = 1
	}
	for s.index(id) >= 0 {
		id++
	}
	return id
}
