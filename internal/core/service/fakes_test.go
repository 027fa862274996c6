package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cartsync/internal/core/domain"
)

// fakeGateway behaves like the remote cart service: it keeps lines in
// insertion order and always answers with the full cart.
type fakeGateway struct {
	mu      sync.Mutex
	lines   domain.Snapshot
	err     error
	calls   []string
	listNil bool // List answers with an empty cart regardless of lines

	// gate, when set, holds every call until it is closed or receives.
	gate    chan struct{}
	entered chan string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{}
}

var catalog = map[string]domain.Product{
	"42": {ID: "42", Name: "iPhone 13", UnitPrice: decimal.NewFromInt(999)},
	"7":  {ID: "7", Name: "Mouse", UnitPrice: decimal.RequireFromString("19.90")},
	"8":  {ID: "8", Name: "Cable", UnitPrice: decimal.RequireFromString("4.35")},
}

func (f *fakeGateway) wait(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- call
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeGateway) snapshot() domain.Snapshot {
	return f.lines.Clone()
}

func (f *fakeGateway) List(ctx context.Context) (domain.Snapshot, error) {
	if err := f.wait(ctx, "list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listNil {
		return domain.Snapshot{}, nil
	}
	return f.snapshot(), nil
}

func (f *fakeGateway) Add(ctx context.Context, productID string, quantity int) (domain.Snapshot, error) {
	if err := f.wait(ctx, "add:"+productID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.lines {
		if f.lines[i].ProductID == productID {
			f.lines[i].Quantity += quantity
			return f.snapshot(), nil
		}
	}
	f.lines = append(f.lines, domain.LineItem{ProductID: productID, Product: catalog[productID], Quantity: quantity})
	return f.snapshot(), nil
}

func (f *fakeGateway) Remove(ctx context.Context, productID string) (domain.Snapshot, error) {
	if err := f.wait(ctx, "remove:"+productID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(productID)
	return f.snapshot(), nil
}

func (f *fakeGateway) UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Snapshot, error) {
	if err := f.wait(ctx, "update:"+productID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.lines {
		if f.lines[i].ProductID == productID {
			f.lines[i].Quantity = quantity
		}
	}
	return f.snapshot(), nil
}

func (f *fakeGateway) Clear(ctx context.Context) (domain.Snapshot, error) {
	if err := f.wait(ctx, "clear"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
	return f.snapshot(), nil
}

func (f *fakeGateway) removeLocked(productID string) {
	out := f.lines[:0]
	for _, l := range f.lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	f.lines = out
}

func (f *fakeGateway) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeKV is an in-memory port.KeyValueStore that can be made to fail.
// When block is set, Set signals setEntered and waits for block to close.
type fakeKV struct {
	mu     sync.Mutex
	values map[string][]byte
	err    error

	block      chan struct{}
	setEntered chan struct{}
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string][]byte)}
}

func (k *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return nil, k.err
	}
	return k.values[key], nil
}

func (k *fakeKV) Set(ctx context.Context, key string, value []byte) error {
	if k.block != nil {
		if k.setEntered != nil {
			k.setEntered <- struct{}{}
		}
		<-k.block
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return k.err
	}
	k.values[key] = value
	return nil
}

func (k *fakeKV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return k.err
	}
	delete(k.values, key)
	return nil
}

func (k *fakeKV) has(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.values[key]
	return ok
}
