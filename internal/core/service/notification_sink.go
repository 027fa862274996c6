package service

import (
	"sync"
	"time"

	"github.com/rl1809/cartsync/internal/core/domain"
)

const DefaultNotificationTTL = 5 * time.Second

// NotificationSink holds at most one notification. Posting replaces the
// current one; each notification expires on its own after the TTL.
type NotificationSink struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	current  *domain.Notification
	timer    *time.Timer
	seq      uint64
	closed   bool
	onChange func()
}

func NewNotificationSink(ttl time.Duration) *NotificationSink {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationSink{ttl: ttl, now: time.Now}
}

// OnChange registers fn to run after every post, dismissal or expiry.
// It is called without the sink's lock held.
func (s *NotificationSink) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *NotificationSink) Post(message string, kind domain.NotificationKind) domain.Notification {
	n := domain.Notification{Message: message, Kind: kind, CreatedAt: s.now()}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return n
	}
	s.stopTimerLocked()
	s.seq++
	seq := s.seq
	s.current = &n
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(seq) })
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return n
}

func (s *NotificationSink) Dismiss() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.current = nil
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *NotificationSink) Current() (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Notification{}, false
	}
	return *s.current, true
}

// Close drops the current notification and stops its timer. Later posts are ignored.
func (s *NotificationSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.current = nil
	s.closed = true
	s.onChange = nil
}

// expire clears the notification only if it is still the one the timer was
// started for; a newer post owns its own timer.
func (s *NotificationSink) expire(seq uint64) {
	s.mu.Lock()
	if s.seq != seq || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.timer = nil
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *NotificationSink) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
