package tab

import (
	"cmp"
	"slices"
)

// NPUPrimaryOrd is the category rank shared by every NPU tab. It places NPUs
// after the CPU (2), memory (3) and GPU (4) categories of the host dashboard.
// Lower ranks sort first.
const NPUPrimaryOrd uint32 = 5

// Ordering is the (category, instance) sort key of a tab.
type Ordering struct {
	Primary   uint32 `json:"primary_ord"`
	Secondary uint32 `json:"secondary_ord"`
}

// Compare orders by primary rank, then secondary rank.
func (o Ordering) Compare(other Ordering) int {
	if c := cmp.Compare(o.Primary, other.Primary); c != 0 {
		return c
	}
	return cmp.Compare(o.Secondary, other.Secondary)
}

// Ordered is implemented by anything that can be placed in the tab list.
type Ordered interface {
	Order() Ordering
}

// Sort orders items ascending by their Ordering. Equal keys keep their
// relative order.
func Sort[T Ordered](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return a.Order().Compare(b.Order())
	})
}
