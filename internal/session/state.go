// Package session owns the console's authentication state and the protocol
// that moves it between authenticated and unauthenticated.
package session

import (
	"sync"

	"consola.app/internal/auth"
)

// State is an immutable snapshot of the session. Readers always observe a
// fully consistent value; writers replace it whole.
type State struct {
	Token       string
	Identity    *auth.Identity
	Permissions auth.PermissionSet
	Loading     bool
	Err         string
}

// IsAuthenticated holds iff both a credential and an identity are present.
// A staged token without identity (mid-handshake) is not authenticated.
func (s State) IsAuthenticated() bool {
	return s.Token != "" && s.Identity != nil
}

// HasPermission reports whether the current identity holds name.
func (s State) HasPermission(name string) bool {
	return s.Identity != nil && s.Permissions.Has(name)
}

// HasAll reports whether the current identity holds every name.
func (s State) HasAll(names ...string) bool {
	return s.Identity != nil && s.Permissions.HasAll(names...)
}

func (s State) isZero() bool {
	return s.Token == "" && s.Identity == nil && !s.Loading && s.Err == ""
}

func (s State) clone() State {
	if s.Identity != nil {
		id := s.Identity.Clone()
		s.Identity = &id
	}
	return s
}

// Store is the observable cell holding the current State. Only Service writes it.
type Store struct {
	// pub serialises write+broadcast so subscribers see transitions in order.
	pub   sync.Mutex
	mu    sync.RWMutex
	state State
	subs  map[int]func(State)
	next  int
}

// NewStore returns a Store in the unauthenticated state.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// Current returns the latest snapshot.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Token returns the staged credential, or "" when none is staged.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Subscribe registers fn to receive every new snapshot. fn runs synchronously
// on the writer's goroutine before the transition returns and must not trigger
// another transition. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update replaces the state with fn(prev) and broadcasts the result.
// When fn reports ok=false nothing changes and nothing is broadcast.
func (s *Store) update(fn func(prev State) (State, bool)) (prev, next State, ok bool) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	prev = s.state
	next, ok = fn(prev)
	if !ok {
		s.mu.Unlock()
		return prev, prev, false
	}
	if next.Identity == nil {
		next.Permissions = auth.PermissionSet{}
	}
	s.state = next
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next.clone())
	}
	return prev, next, true
}

// begin marks an auth-affecting operation as started: loading on, error reset.
func (s *Store) begin() {
	s.update(func(prev State) (State, bool) {
		prev.Loading = true
		prev.Err = ""
		return prev, true
	})
}

// stage sets the credential while leaving identity as is, so the outbound
// augmenter can present it on the next call.
func (s *Store) stage(token string) {
	s.update(func(prev State) (State, bool) {
		prev.Token = token
		return prev, true
	})
}

// commit installs a verified identity for token. It is refused if the staged
// token changed in the meantime (for example a concurrent teardown).
func (s *Store) commit(token string, id auth.Identity, perms auth.PermissionSet) bool {
	_, _, ok := s.update(func(prev State) (State, bool) {
		if token == "" || prev.Token != token {
			return prev, false
		}
		return State{Token: token, Identity: &id, Permissions: perms}, true
	})
	return ok
}

// fail clears the session and records a user-facing message.
func (s *Store) fail(msg string) {
	s.update(func(State) (State, bool) {
		return State{Err: msg}, true
	})
}

// reset clears the session and returns the state it replaced.
func (s *Store) reset() State {
	prev, _, _ := s.update(func(prev State) (State, bool) {
		if prev.isZero() {
			return prev, false
		}
		return State{}, true
	})
	return prev
}
