package app

import (
	"time"

	"tesouraria/internal/auth"
	"tesouraria/internal/cache"
)

// Sessions keeps one State per session token.
type Sessions struct {
	states *cache.LRUCache[State]
}

func NewSessions(maxSize int, ttl time.Duration) *Sessions {
	return &Sessions{states: cache.NewLRUCache[State](maxSize, ttl)}
}

// Cache exposes the backing cache so it can be registered for cleanup.
func (s *Sessions) Cache() *cache.LRUCache[State] {
	return s.states
}

// Get returns the state for token, or Initial when there is none.
func (s *Sessions) Get(token string) State {
	if st, ok := s.states.Get(token); ok {
		return st
	}
	return Initial()
}

// Dispatch applies actions to the state for token atomically and returns
// the result.
func (s *Sessions) Dispatch(token string, actions ...Action) State {
	return s.states.Update(token, func(cur State, ok bool) State {
		if !ok {
			cur = Initial()
		}
		return ReduceAll(cur, actions...)
	})
}

// TakeFlash returns and clears the pending notification for token.
func (s *Sessions) TakeFlash(token string) *FlashMessage {
	var flash *FlashMessage
	s.states.Update(token, func(cur State, ok bool) State {
		if !ok {
			cur = Initial()
		}
		flash = cur.Flash
		return Reduce(cur, ClearFlash{})
	})
	return flash
}

func (s *Sessions) Drop(token string) {
	s.states.Delete(token)
}

// HandleAuthEvent follows identity changes reported by the auth service.
func (s *Sessions) HandleAuthEvent(e auth.Event) {
	switch e.Kind {
	case auth.SignedIn:
		s.Dispatch(e.Session, IdentityChanged{Identity: e.Identity, SignedIn: true})
	case auth.SignedOut:
		s.Drop(e.Session)
	}
}
