package checkout

import (
	"errors"
	"sync"
	"time"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
)

const (
	// SessionTTL is how long an idle checkout session is kept before
	// auto-expiring
	SessionTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = time.Minute
)

var ErrSessionNotFound = errors.New("checkout session not found")

// SessionStore keeps active checkout sessions in memory. One checkout
// session has exactly one writer; the store lock serializes access.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewSessionStore() *SessionStore {
	s := &SessionStore{
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *SessionStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireSessions()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *SessionStore) expireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
		}
	}
}

func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Get returns a snapshot copy of the session so readers never observe a
// concurrent mutation half-applied.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists || session.IsExpired() {
		return nil, ErrSessionNotFound
	}

	snapshot := *session
	snapshot.Lines = append([]domain.CartLine(nil), session.Lines...)
	if session.Schedules != nil {
		schedules := make(map[int64]domain.PaymentPlanSchedule, len(session.Schedules))
		for id, schedule := range session.Schedules {
			schedules[id] = schedule
		}
		snapshot.Schedules = schedules
	}
	if session.FieldErrors != nil {
		fieldErrors := make(map[string]string, len(session.FieldErrors))
		for field, msg := range session.FieldErrors {
			fieldErrors[field] = msg
		}
		snapshot.FieldErrors = fieldErrors
	}
	return &snapshot, nil
}

// Update runs fn on the live session under the store lock.
func (s *SessionStore) Update(id string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists || session.IsExpired() {
		return ErrSessionNotFound
	}

	if err := fn(session); err != nil {
		return err
	}
	session.UpdatedAt = time.Now()
	session.ExpiresAt = time.Now().Add(SessionTTL)
	return nil
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Close stops the background cleanup and waits for it to finish
func (s *SessionStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
