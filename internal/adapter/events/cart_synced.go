package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/cartsync/internal/core/service"
)

type CartSynced struct {
	EventID   string           `json:"eventId"`
	EventType string           `json:"eventType"`
	Revision  uint64           `json:"revision"`
	Items     []CartSyncedLine `json:"items"`
	Total     decimal.Decimal  `json:"total"`
	ItemCount int              `json:"itemCount"`
	Timestamp time.Time        `json:"timestamp"`
}

type CartSyncedLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func newCartSynced(v service.View, now time.Time) CartSynced {
	ev := CartSynced{
		EventID:   uuid.NewString(),
		EventType: EventTypeCartSynced,
		Revision:  v.Revision,
		Items:     make([]CartSyncedLine, 0, len(v.Items)),
		Total:     v.Total,
		ItemCount: v.ItemCount,
		Timestamp: now.UTC(),
	}
	for _, it := range v.Items {
		ev.Items = append(ev.Items, CartSyncedLine{
			ProductID: it.ProductID,
			Name:      it.Product.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Product.UnitPrice,
		})
	}
	return ev
}
