// Package app holds the per-session UI state of the treasury pages and the
// reducer that moves it forward. Handlers never mutate State directly; they
// dispatch actions and render whatever Reduce returns.
package app

import (
	"tesouraria/internal/auth"
	"tesouraria/internal/core"
)

// Tab is one of the four top-level pages.
type Tab string

const (
	TabDashboard Tab = "dashboard"
	TabNew       Tab = "nova"
	TabHistory   Tab = "historico"
	TabConfig    Tab = "config"
)

// Tabs in navigation order.
var Tabs = []Tab{TabDashboard, TabNew, TabHistory, TabConfig}

func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return TabDashboard, false
}

// Label is the navigation text for the tab.
func (t Tab) Label() string {
	switch t {
	case TabNew:
		return "Nova Transação"
	case TabHistory:
		return "Histórico"
	case TabConfig:
		return "Configurações"
	default:
		return "Dashboard"
	}
}

// Path is the page route for the tab.
func (t Tab) Path() string {
	if t == TabDashboard {
		return "/"
	}
	return "/" + string(t)
}

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// FlashMessage is a one-shot notification shown on the next render.
type FlashMessage struct {
	Kind    FlashKind
	Message string
}

type State struct {
	Tab      Tab
	Identity auth.Identity
	SignedIn bool

	// Transactions is the latest snapshot received, newest date first.
	Transactions []core.Transaction
	Version      uint64

	Filter   core.TypeFilter
	Query    string
	DarkMode bool

	Flash *FlashMessage
}

// Initial is the state of a fresh session.
func Initial() State {
	return State{
		Tab:    TabDashboard,
		Filter: core.FilterAll,
	}
}
