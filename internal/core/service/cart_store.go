package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/core/domain"
	"github.com/rl1809/cartsync/internal/port"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrMissingProductID = errors.New("product id is required")
	ErrOperationPending = errors.New("operation already pending for product")
	ErrClosed           = errors.New("cart store closed")

	// ErrSessionDiscarded is returned by an operation whose response arrived
	// after Discard. The response is dropped.
	ErrSessionDiscarded = errors.New("cart session discarded")
)

// backupTimeout bounds each write or delete against the backup store.
const backupTimeout = 3 * time.Second

type operation string

const (
	opFetch  operation = "fetch"
	opAdd    operation = "add"
	opRemove operation = "remove"
	opUpdate operation = "update_quantity"
	opClear  operation = "clear"
)

// Success notifications.
const (
	msgAdded   = "Product added to cart"
	msgRemoved = "Product removed from cart"
	msgUpdated = "Quantity updated"
	msgCleared = "Cart emptied"
)

// Failure notifications used when the error carries no user-facing message.
var failureMessages = map[operation]string{
	opFetch:  "Could not load the cart",
	opAdd:    "Could not add the product",
	opRemove: "Could not remove the product",
	opUpdate: "Could not update the quantity",
	opClear:  "Could not empty the cart",
}

const (
	msgInvalidQuantity = "Quantity must be at least 1"
	msgMissingProduct  = "Choose a product first"
	msgPending         = "This product is already being updated"
)

// CartStore mirrors the remote cart for one session. Every successful call
// replaces the whole collection with the server's snapshot.
//
// Operations may run concurrently from several goroutines. The lock is never
// held across a network call or a backup write, so when mutations for
// different products overlap, whichever response arrives last defines the
// collection. Responses that arrive after Discard or Close are dropped.
type CartStore struct {
	gateway port.CartGateway
	backup  *Backup
	notices *NotificationSink
	logger  *zap.Logger

	// backupMu serializes backup writes so an older snapshot never lands
	// after a newer one.
	backupMu sync.Mutex

	mu          sync.Mutex
	items       domain.Snapshot
	revision    uint64
	generation  uint64 // bumped by Discard; responses from older generations are stale
	backedUp    uint64 // revision last written to the backup
	loadingOps  int
	lastErr     error
	errMsg      string
	pending     map[string]struct{}
	subscribers map[uint64]func(View)
	nextSubID   uint64
	initialized bool
	closed      bool
}

// NewCartStore creates an empty store. backup must not be nil; a nil notices
// gets a sink with the default TTL.
func NewCartStore(gateway port.CartGateway, backup *Backup, notices *NotificationSink, logger *zap.Logger) *CartStore {
	if notices == nil {
		notices = NewNotificationSink(DefaultNotificationTTL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &CartStore{
		gateway:     gateway,
		backup:      backup,
		notices:     notices,
		logger:      logger,
		items:       domain.Snapshot{},
		pending:     make(map[string]struct{}),
		subscribers: make(map[uint64]func(View)),
	}
	notices.OnChange(s.publish)
	return s
}

// Initialize loads the cart once for the session. Later calls do nothing.
func (s *CartStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	return s.FetchCart(ctx)
}

// FetchCart replaces the collection with the server's cart. When the server
// returns nothing, the local backup (if any) becomes the collection instead.
func (s *CartStore) FetchCart(ctx context.Context) error {
	gen, err := s.beginLoad()
	if err != nil {
		return s.fail(opFetch, "", err)
	}
	defer s.endLoad()

	snap, err := s.gateway.List(ctx)
	if err != nil {
		return s.fail(opFetch, "", err)
	}

	if len(snap) == 0 {
		loadCtx, cancel := context.WithTimeout(ctx, backupTimeout)
		restored, ok, err := s.backup.Load(loadCtx)
		cancel()
		switch {
		case err != nil:
			s.logger.Warn("cart backup unavailable", zap.Error(err))
		case ok:
			s.logger.Info("restored cart from backup", zap.Int("lines", len(restored)))
			snap = restored
		}
	}

	if err := s.replace(ctx, gen, snap); err != nil {
		return err
	}
	s.logger.Info("cart fetched", zap.Int("lines", len(snap)))
	return nil
}

// Refresh is FetchCart under the name presentation layers use.
func (s *CartStore) Refresh(ctx context.Context) error {
	return s.FetchCart(ctx)
}

func (s *CartStore) AddToCart(ctx context.Context, productID string, quantity int) error {
	if err := validate(productID, quantity); err != nil {
		return s.fail(opAdd, productID, err)
	}
	return s.mutate(ctx, opAdd, productID, msgAdded, func(ctx context.Context) (domain.Snapshot, error) {
		return s.gateway.Add(ctx, productID, quantity)
	})
}

// RemoveFromCart forwards the removal even if productID is not in the local
// collection; the server's answer decides.
func (s *CartStore) RemoveFromCart(ctx context.Context, productID string) error {
	if productID == "" {
		return s.fail(opRemove, productID, ErrMissingProductID)
	}
	return s.mutate(ctx, opRemove, productID, msgRemoved, func(ctx context.Context) (domain.Snapshot, error) {
		return s.gateway.Remove(ctx, productID)
	})
}

// UpdateItemQuantity rejects quantities below 1 without calling the server;
// use RemoveFromCart to drop a line.
func (s *CartStore) UpdateItemQuantity(ctx context.Context, productID string, quantity int) error {
	if err := validate(productID, quantity); err != nil {
		return s.fail(opUpdate, productID, err)
	}
	return s.mutate(ctx, opUpdate, productID, msgUpdated, func(ctx context.Context) (domain.Snapshot, error) {
		return s.gateway.UpdateQuantity(ctx, productID, quantity)
	})
}

// ClearCart empties the remote cart, then the collection and the backup,
// whatever the server sent back.
func (s *CartStore) ClearCart(ctx context.Context) error {
	gen, err := s.beginLoad()
	if err != nil {
		return s.fail(opClear, "", err)
	}
	defer s.endLoad()

	if _, err := s.gateway.Clear(ctx); err != nil {
		return s.fail(opClear, "", err)
	}

	if err := s.replace(ctx, gen, domain.Snapshot{}); err != nil {
		return err
	}
	s.succeed(opClear, "", msgCleared)
	return nil
}

// Discard resets the collection and deletes the backup without contacting
// the server. Hosts call it at logout.
func (s *CartStore) Discard(ctx context.Context) {
	s.mu.Lock()
	s.items = domain.Snapshot{}
	s.revision++
	s.generation++
	gen := s.generation
	s.lastErr, s.errMsg = nil, ""
	s.initialized = false
	s.mu.Unlock()

	s.syncBackup(ctx, gen)
	s.notices.Dismiss()
	s.publish()
}

// Close ends the session: timers stop, subscribers are dropped and every
// later operation fails with ErrClosed.
func (s *CartStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.subscribers = make(map[uint64]func(View))
	s.mu.Unlock()

	s.notices.Close()
}

func (s *CartStore) DismissNotification() {
	s.notices.Dismiss()
}

// Subscribe registers fn to receive a View after every state change. fn runs
// on the goroutine that caused the change and must not block. The returned
// function unsubscribes.
func (s *CartStore) Subscribe(fn func(View)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *CartStore) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *CartStore) Items() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Clone()
}

func (s *CartStore) IsInCart(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.IsInCart(s.items, productID)
}

func (s *CartStore) QuantityOf(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.QuantityOf(s.items, productID)
}

func (s *CartStore) IsPending(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[productID]
	return ok
}

// Err returns the failure of the last settled operation, or nil if it succeeded.
func (s *CartStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *CartStore) mutate(ctx context.Context, op operation, productID, successMsg string, call func(context.Context) (domain.Snapshot, error)) error {
	gen, err := s.beginItem(productID)
	if err != nil {
		return s.fail(op, productID, err)
	}
	defer s.endItem(productID)

	snap, err := call(ctx)
	if err != nil {
		return s.fail(op, productID, err)
	}

	if err := s.replace(ctx, gen, snap); err != nil {
		return err
	}
	s.succeed(op, productID, successMsg)
	return nil
}

// beginItem marks productID pending. A second mutation for the same id is
// rejected while the first is in flight, leaving the first one's marker alone.
// The returned generation identifies the session the call started in.
func (s *CartStore) beginItem(productID string) (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if _, busy := s.pending[productID]; busy {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrOperationPending, productID)
	}
	s.pending[productID] = struct{}{}
	gen := s.generation
	s.mu.Unlock()

	s.publish()
	return gen, nil
}

func (s *CartStore) endItem(productID string) {
	s.mu.Lock()
	delete(s.pending, productID)
	s.mu.Unlock()

	s.publish()
}

func (s *CartStore) beginLoad() (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.loadingOps++
	gen := s.generation
	s.mu.Unlock()

	s.publish()
	return gen, nil
}

func (s *CartStore) endLoad() {
	s.mu.Lock()
	s.loadingOps--
	s.mu.Unlock()

	s.publish()
}

// replace installs snap as the collection and then brings the backup in
// line. A response from an earlier generation, or one arriving after Close,
// changes nothing.
func (s *CartStore) replace(ctx context.Context, gen uint64, snap domain.Snapshot) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		s.logger.Info("dropping cart response after close")
		return ErrClosed
	case gen != s.generation:
		s.mu.Unlock()
		s.logger.Info("dropping cart response from a discarded session")
		return ErrSessionDiscarded
	}
	s.items = snap.Clone()
	s.revision++
	s.lastErr, s.errMsg = nil, ""
	s.mu.Unlock()

	s.syncBackup(ctx, gen)
	return nil
}

// syncBackup writes the current collection to the backup, or deletes it once
// empty. It always writes the latest state, so callers racing here can only
// repeat a newer write, never undo one. Failures are logged only.
func (s *CartStore) syncBackup(ctx context.Context, gen uint64) {
	s.backupMu.Lock()
	defer s.backupMu.Unlock()

	s.mu.Lock()
	if gen != s.generation || s.backedUp >= s.revision {
		s.mu.Unlock()
		return
	}
	items, rev := s.items.Clone(), s.revision
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backupTimeout)
	defer cancel()

	var err error
	if len(items) > 0 {
		err = s.backup.Save(ctx, items)
	} else {
		err = s.backup.Clear(ctx)
	}
	if err != nil {
		s.logger.Warn("cart backup not updated", zap.Uint64("revision", rev), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.backedUp = rev
	s.mu.Unlock()
}

func (s *CartStore) succeed(op operation, productID, message string) {
	s.logger.Info("cart operation succeeded",
		zap.String("operation", string(op)),
		zap.String("product_id", productID),
	)
	s.notices.Post(message, domain.NotificationSuccess)
}

// fail records err, posts exactly one error notification and hands err back
// for the caller to return.
func (s *CartStore) fail(op operation, productID string, err error) error {
	msg := userMessage(err, failureMessages[op])

	s.mu.Lock()
	s.lastErr, s.errMsg = err, msg
	s.mu.Unlock()

	s.logger.Warn("cart operation failed",
		zap.String("operation", string(op)),
		zap.String("product_id", productID),
		zap.String("error_kind", string(domain.KindOf(err))),
		zap.Error(err),
	)
	s.notices.Post(msg, domain.NotificationError)
	return err
}

func (s *CartStore) publish() {
	s.mu.Lock()
	if len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	view := s.viewLocked()
	subs := make([]func(View), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
}

func (s *CartStore) viewLocked() View {
	pending := make([]string, 0, len(s.pending))
	for id := range s.pending {
		pending = append(pending, id)
	}
	sort.Strings(pending)

	v := View{
		Items:     s.items.Clone(),
		Total:     domain.Total(s.items),
		ItemCount: domain.ItemCount(s.items),
		Loading:   s.loadingOps > 0,
		Error:     s.errMsg,
		Pending:   pending,
		Revision:  s.revision,
	}
	if n, ok := s.notices.Current(); ok {
		v.Notification = &n
	}
	return v
}

func validate(productID string, quantity int) error {
	if productID == "" {
		return ErrMissingProductID
	}
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	return nil
}

// UserMessage is the short text shown for err when no operation-specific
// fallback applies.
func UserMessage(err error) string {
	return userMessage(err, domain.MsgUnknown)
}

func userMessage(err error, fallback string) string {
	var reqErr *domain.RequestError
	switch {
	case errors.As(err, &reqErr) && reqErr.Message != "":
		return reqErr.Message
	case errors.Is(err, ErrInvalidQuantity):
		return msgInvalidQuantity
	case errors.Is(err, ErrMissingProductID):
		return msgMissingProduct
	case errors.Is(err, ErrOperationPending):
		return msgPending
	}
	return fallback
}
