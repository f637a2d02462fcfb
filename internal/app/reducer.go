package app

import (
	"tesouraria/internal/auth"
	"tesouraria/internal/core"
	"tesouraria/internal/live"
)

// Action is a state transition request. The set is closed.
type Action interface {
	isAction()
}

type (
	SetTab struct{ Tab Tab }

	IdentityChanged struct {
		Identity auth.Identity
		SignedIn bool
	}

	SnapshotReceived struct{ Snapshot live.Snapshot }

	SetFilter struct{ Filter core.TypeFilter }

	SetQuery struct{ Query string }

	SetDarkMode struct{ Enabled bool }

	Flash struct {
		Kind    FlashKind
		Message string
	}

	ClearFlash struct{}
)

func (SetTab) isAction()           {}
func (IdentityChanged) isAction()  {}
func (SnapshotReceived) isAction() {}
func (SetFilter) isAction()        {}
func (SetQuery) isAction()         {}
func (SetDarkMode) isAction()      {}
func (Flash) isAction()            {}
func (ClearFlash) isAction()       {}

// Reduce returns the state that follows s after a. It never modifies s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetTab:
		if _, ok := ParseTab(string(a.Tab)); ok {
			s.Tab = a.Tab
		}
	case IdentityChanged:
		if !a.SignedIn {
			dark := s.DarkMode
			s = Initial()
			s.DarkMode = dark
			return s
		}
		if s.SignedIn && s.Identity.UserID != a.Identity.UserID {
			s = Initial()
		}
		s.Identity = a.Identity
		s.SignedIn = true
	case SnapshotReceived:
		// Snapshots can arrive out of order from concurrent refreshes.
		if a.Snapshot.Version < s.Version {
			return s
		}
		s.Transactions = a.Snapshot.Transactions
		s.Version = a.Snapshot.Version
	case SetFilter:
		s.Filter = core.ParseTypeFilter(string(a.Filter))
	case SetQuery:
		s.Query = a.Query
	case SetDarkMode:
		s.DarkMode = a.Enabled
	case Flash:
		if a.Message == "" {
			s.Flash = nil
			break
		}
		s.Flash = &FlashMessage{Kind: a.Kind, Message: a.Message}
	case ClearFlash:
		s.Flash = nil
	}
	return s
}

// ReduceAll folds actions over s in order.
func ReduceAll(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}
