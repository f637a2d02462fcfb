package http

import (
	"errors"
	"net/http"
	"time"

	"tesouraria/internal/app"
	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
)

func (s *Server) handleNewTransactionPage(w http.ResponseWriter, r *http.Request) {
	st, flash := s.pageState(r, app.SetTab{Tab: app.TabNew})
	data := s.newPageData(st, flash)
	data.TxType = core.Income
	data.Categories = core.Categories(core.Income)
	data.Today = core.DateOf(time.Now()).String()
	s.render(w, r, http.StatusOK, "nova", data)
}

// handleCategoryOptions returns the <option> list for the selected type.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	var data pageData
	v := r.URL.Query().Get("tipo")
	if v == "" {
		v = r.URL.Query().Get("type")
	}
	if t, err := core.ParseTxType(v); err == nil {
		data.TxType = t
		data.Categories = core.Categories(t)
	}
	s.renderPartial(w, r, NewHTMXResponse(), "category-options", data)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	sess := sessionFrom(ctx)

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		logger.WarnContext(ctx, "Failed to parse transaction form",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldOperation, log.OpParse)
		BadRequestError("Formato de requisição inválido.").Write(w)
		return
	}

	t, err := s.deps.Transactions.Create(ctx, sess.identity, parser.Draft())
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			UnprocessableEntityError(core.UserMessage(err)).Write(w)
			return
		}
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to create transaction", err,
			log.ComponentLedger, log.OpCreate, log.ErrorTypeDatabase, log.NewFields())
		msg := "Erro ao salvar no banco de dados: " + err.Error()
		InternalServerError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	s.metrics.transactionsCreated.Add(1)
	log.NewStructuredLogger(logger).LogTransactionCreated(ctx,
		t.ID, t.Type.Code(), t.Category, t.Amount.StringFixed(2), sess.identity.UserID)

	msg := t.Type.Label() + " registrada com sucesso!"
	s.deps.Sessions.Dispatch(sess.token,
		app.SetTab{Tab: app.TabHistory},
		app.Flash{Kind: app.FlashSuccess, Message: msg},
	)

	NewHTMXResponse().
		TriggerLedgerChanged(s.deps.Feed.Current().Version).
		TriggerFormReset().
		Redirect(app.TabHistory.Path()).
		Write(w)
}

func (s *Server) historyActions(r *http.Request) []app.Action {
	actions := []app.Action{}
	p := ParseHistoryParams(r.URL.Query())
	if p.Type != nil {
		actions = append(actions, app.SetFilter{Filter: *p.Type})
	}
	if p.Query != nil {
		actions = append(actions, app.SetQuery{Query: *p.Query})
	}
	return actions
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	actions := append([]app.Action{app.SetTab{Tab: app.TabHistory}}, s.historyActions(r)...)
	st, flash := s.pageState(r, actions...)
	s.render(w, r, http.StatusOK, "historico", s.newPageData(st, flash))
}

// handleHistoryPartial serves the filtered list for search and filter changes.
func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	st, _ := s.pageState(r, s.historyActions(r)...)
	s.renderPartial(w, r, NewHTMXResponse(), "history-list", s.newPageData(st, nil))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	id := r.PathValue("id")

	if err := s.deps.Transactions.Delete(ctx, id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			NotFoundError("Transação não encontrada.").Write(w)
			return
		}
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to delete transaction", err,
			log.ComponentLedger, log.OpDelete, log.ErrorTypeDatabase, log.NewFields())
		msg := "Erro ao excluir a transação: " + err.Error()
		InternalServerError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	s.metrics.transactionsDeleted.Add(1)
	logger.InfoContext(ctx, "Transaction deleted", log.FieldTxID, id)

	// The row swaps itself out with the empty body.
	NewHTMXResponse().
		TriggerLedgerChanged(s.deps.Feed.Current().Version).
		TriggerSuccessNotification("Transação excluída com sucesso!").
		Write(w)
}
