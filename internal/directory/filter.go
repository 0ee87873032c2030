package directory

import "github.com/vbonduro/donormap/internal/domain"

// FilterController holds the pending, not yet applied, filter values. It has
// no side effects; a View commits its state on apply.
type FilterController struct {
	pending domain.Filters
}

func NewFilterController() *FilterController {
	return &FilterController{pending: domain.NewFilters()}
}

// SetFilter assigns value to a known dimension. Values are not validated: an
// unknown blood group simply matches nothing. It reports false for a
// dimension the directory does not filter on.
func (c *FilterController) SetFilter(dimension, value string) bool {
	if _, ok := c.pending[dimension]; !ok {
		return false
	}
	c.pending[dimension] = value
	return true
}

func (c *FilterController) Pending() domain.Filters {
	return c.pending.Clone()
}

func (c *FilterController) Reset() {
	c.pending = domain.NewFilters()
}
