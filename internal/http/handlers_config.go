package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tesouraria/internal/app"
	"tesouraria/internal/core"
	"tesouraria/internal/log"
	"tesouraria/internal/services"
)

const multipartMemory = 1 << 20

type importFailure struct {
	Position int
	Message  string
}

type importReportView struct {
	Success  bool
	Message  string
	Imported int
	Failures []importFailure
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	st, flash := s.pageState(r, app.SetTab{Tab: app.TabConfig})
	data := s.newPageData(st, flash)
	s.loadAttachments(r, &data)
	s.render(w, r, http.StatusOK, "config", data)
}

// handleDarkMode stores the preference and reloads the page so the layout
// picks up the new theme. A missing "enabled" field toggles.
func (s *Server) handleDarkMode(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	ctx := r.Context()
	sess := sessionFrom(ctx)

	enabled := !s.deps.Sessions.Get(sess.token).DarkMode
	if v := r.PostForm.Get("enabled"); v != "" {
		enabled = v == "on" || v == "1" || v == "true"
	}

	if err := s.deps.Prefs.SetDarkMode(ctx, sess.identity.UserID, enabled); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to save dark mode preference",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase)
		InternalServerError("Erro ao salvar a preferência.").Write(w)
		return
	}
	s.deps.Sessions.Dispatch(sess.token, app.SetDarkMode{Enabled: enabled})
	NewHTMXResponse().Refresh().Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	data, filename, err := s.deps.Transactions.Export(ctx)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Export failed", err,
			log.ComponentLedger, log.OpExport, log.ErrorTypeDatabase, log.NewFields())
		InternalServerError("Erro ao exportar os dados.").Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImport accepts a backup file in the "file" field and renders the
// per-record report.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	sess := sessionFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImportBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.importResult(w, r, http.StatusRequestEntityTooLarge, importReportView{Message: "Arquivo muito grande. O limite é de 5 MB."})
			return
		}
		BadRequestError("Formato de requisição inválido.").Write(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		s.importResult(w, r, http.StatusUnprocessableEntity, importReportView{Message: "Selecione um arquivo de backup (.json)."})
		return
	}
	defer file.Close()

	records, err := services.DecodeImport(file)
	if err != nil {
		logger.WarnContext(ctx, "Import file rejected",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldOperation, log.OpImport)
		status, msg := http.StatusUnprocessableEntity, "Arquivo inválido. Use um backup JSON exportado pelo sistema."
		if errors.Is(err, services.ErrImportTooLarge) {
			status, msg = http.StatusRequestEntityTooLarge, "Arquivo muito grande. O limite é de 5 MB."
		}
		s.importResult(w, r, status, importReportView{Message: msg})
		return
	}

	report, err := s.deps.Transactions.Import(ctx, sess.identity, records)
	switch {
	case errors.Is(err, services.ErrTooManyRecords):
		s.importResult(w, r, http.StatusUnprocessableEntity, importReportView{
			Message: fmt.Sprintf("O arquivo tem registros demais (máximo %d).", services.MaxImportRecords),
		})
		return
	case errors.Is(err, services.ErrImportInvalid):
		view := importReportView{Message: "Nenhuma transação foi importada. Corrija os registros abaixo e tente novamente."}
		for _, it := range report.Failed() {
			view.Failures = append(view.Failures, importFailure{Position: it.Index + 1, Message: core.UserMessage(it.Err)})
		}
		s.importResult(w, r, http.StatusUnprocessableEntity, view)
		return
	case err != nil:
		msg := "Erro ao salvar no banco de dados: " + err.Error()
		s.importResult(w, r, http.StatusInternalServerError, importReportView{Message: msg})
		return
	}

	s.metrics.transactionsImported.Add(int64(report.Imported))
	msg := fmt.Sprintf("%d transações importadas com sucesso!", report.Imported)
	b := NewHTMXResponse().TriggerSuccessNotification(msg)
	if report.Imported > 0 {
		b.TriggerLedgerChanged(s.deps.Feed.Current().Version)
	}
	s.renderPartial(w, r, b, "import-report", pageData{Report: &importReportView{
		Success:  true,
		Message:  msg,
		Imported: report.Imported,
	}})
}

func (s *Server) importResult(w http.ResponseWriter, r *http.Request, status int, view importReportView) {
	b := NewHTMXResponse().Status(status).TriggerErrorNotification(view.Message)
	s.renderPartial(w, r, b, "import-report", pageData{Report: &view})
}
