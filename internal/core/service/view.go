package service

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cartsync/internal/core/domain"
)

// View is a point-in-time copy of everything a presentation layer needs.
// Revision increases every time the line-item collection is replaced.
type View struct {
	Items        domain.Snapshot      `json:"items"`
	Total        decimal.Decimal      `json:"total"`
	ItemCount    int                  `json:"itemCount"`
	Loading      bool                 `json:"loading"`
	Error        string               `json:"error,omitempty"`
	Pending      []string             `json:"pending"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Revision     uint64               `json:"revision"`
}

func (v View) IsInCart(productID string) bool {
	return domain.IsInCart(v.Items, productID)
}

func (v View) QuantityOf(productID string) int {
	return domain.QuantityOf(v.Items, productID)
}

func (v View) IsPending(productID string) bool {
	return slices.Contains(v.Pending, productID)
}
