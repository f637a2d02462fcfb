package http

import (
	"net/http"

	"tesouraria/internal/app"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, flash := s.pageState(r, app.SetTab{Tab: app.TabDashboard})
	s.render(w, r, http.StatusOK, "dashboard", s.newPageData(st, flash))
}

// handleDashboardPartial re-renders the totals, recent list and category
// breakdown when the ledger changes.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	st, _ := s.pageState(r)
	s.renderPartial(w, r, NewHTMXResponse(), "dashboard-content", s.newPageData(st, nil))
}
