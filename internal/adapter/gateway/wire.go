package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cartsync/internal/core/domain"
)

// cartEnvelope is the body of every successful cart service response.
type cartEnvelope struct {
	Carrito []wireLine `json:"carrito"`
}

type wireLine struct {
	Producto wireProduct `json:"producto"`
	Cantidad int         `json:"cantidad"`
}

type wireProduct struct {
	ID     wireID          `json:"id"`
	Nombre string          `json:"nombre"`
	Precio decimal.Decimal `json:"precio"`
}

// wireID accepts a product id sent either as a JSON number or a string.
type wireID string

func (w *wireID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*w = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*w = wireID(n.String())
	return nil
}

type addRequest struct {
	ProductoID any `json:"producto_id"`
	Cantidad   int `json:"cantidad"`
}

type updateRequest struct {
	Cantidad int `json:"cantidad"`
}

// errorBody is the only error schema the cart service is expected to send.
type errorBody struct {
	Message string `json:"message"`
}

// productIDValue sends numeric ids as JSON numbers so the server can match
// them against integer primary keys.
func productIDValue(id string) any {
	n, err := strconv.ParseInt(id, 10, 64)
	if err == nil && strconv.FormatInt(n, 10) == id {
		return n
	}
	return id
}

// decodeSnapshot turns a response body into a snapshot. A missing carrito
// field is an empty cart; lines with a non-positive quantity are dropped.
func decodeSnapshot(raw []byte) (domain.Snapshot, error) {
	var env cartEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode cart envelope: %w", err)
	}

	out := make(domain.Snapshot, 0, len(env.Carrito))
	seen := make(map[string]struct{}, len(env.Carrito))
	for i, line := range env.Carrito {
		id := string(line.Producto.ID)
		if id == "" {
			return nil, fmt.Errorf("line %d: missing product id", i)
		}
		if line.Cantidad < 1 {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate product id %s", i, id)
		}
		seen[id] = struct{}{}

		out = append(out, domain.LineItem{
			ProductID: id,
			Product: domain.Product{
				ID:        id,
				Name:      line.Producto.Nombre,
				UnitPrice: line.Producto.Precio,
			},
			Quantity: line.Cantidad,
		})
	}
	return out, nil
}
