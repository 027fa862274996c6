package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineItem is one product/quantity pair. Quantity is always >= 1 while the
// item is part of a cart; a zero-quantity line is removed instead.
type LineItem struct {
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
}

// Snapshot is the authoritative cart as returned by the remote service, in
// server order.
type Snapshot []LineItem

// Clone returns a copy that shares no backing array with s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
