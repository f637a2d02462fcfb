package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"tesouraria/internal/attachments"
	"tesouraria/internal/log"
)

// PDFSavedMessage is shown after a successful upload.
const PDFSavedMessage = "✅ PDF salvo como comprovante no sistema. Ele não cria lançamentos automáticos; use-o apenas como anexo/arquivo de consulta."

func (s *Server) loadAttachments(r *http.Request, data *pageData) {
	if s.deps.Attachments == nil {
		return
	}
	ctx := r.Context()
	user := sessionFrom(ctx).identity.UserID

	list, err := s.deps.Attachments.List(ctx, user)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to list attachments",
			log.FieldError, err.Error(),
			log.FieldUserID, user)
	}
	data.Attachments = list
	data.Limits = s.deps.Attachments.Limits()
	for _, a := range list {
		data.Usage += a.Size
	}
}

func (s *Server) attachmentList(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder) {
	var data pageData
	s.loadAttachments(r, &data)
	s.renderPartial(w, r, b, "attachment-list", data)
}

func (s *Server) handleAttachmentList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Attachments == nil {
		http.NotFound(w, r)
		return
	}
	s.attachmentList(w, r, NewHTMXResponse())
}

// handleUploadAttachment stores the PDF sent in the "file" field and answers
// with the refreshed attachment list.
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Attachments == nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	user := sessionFrom(ctx).identity.UserID
	limits := s.deps.Attachments.Limits()

	fail := func(status int, msg string) {
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFileBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(http.StatusRequestEntityTooLarge, attachments.Message(attachments.ErrTooLarge))
			return
		}
		BadRequestError("Formato de requisição inválido.").Write(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(http.StatusUnprocessableEntity, attachments.Message(attachments.ErrNotPDF))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limits.MaxFileBytes+1))
	if err != nil {
		BadRequestError("Falha ao ler o arquivo enviado.").Write(w)
		return
	}

	a, err := s.deps.Attachments.Add(ctx, user, header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, attachments.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, attachments.ErrNotPDF), errors.Is(err, attachments.ErrQuotaExceeded):
		default:
			status = http.StatusInternalServerError
			log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to store attachment", err,
				log.ComponentAttachments, log.OpUpload, log.ErrorTypeInternal, log.NewFields().WithUser(user))
		}
		fail(status, attachments.Message(err))
		return
	}

	s.metrics.attachmentsUploaded.Add(1)
	log.FromContext(ctx).InfoContext(ctx, "Attachment uploaded", log.FieldAttachmentID, a.ID, "size", a.Size)

	s.attachmentList(w, r, NewHTMXResponse().
		TriggerSuccessNotification(PDFSavedMessage).
		TriggerFormReset())
}

func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Attachments == nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	user := sessionFrom(ctx).identity.UserID

	a, content, err := s.deps.Attachments.Get(ctx, user, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, attachments.ErrNotFound) {
			NotFoundError(attachments.Message(err)).Write(w)
			return
		}
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to load attachment", err,
			log.ComponentAttachments, log.OpRead, log.ErrorTypeInternal, log.NewFields().WithUser(user))
		InternalServerError("Erro ao abrir o comprovante.").Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Attachments == nil {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	user := sessionFrom(ctx).identity.UserID
	id := r.PathValue("id")

	if err := s.deps.Attachments.Delete(ctx, user, id); err != nil {
		if errors.Is(err, attachments.ErrNotFound) {
			NotFoundError(attachments.Message(err)).Write(w)
			return
		}
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to delete attachment", err,
			log.ComponentAttachments, log.OpDelete, log.ErrorTypeInternal,
			log.NewFields().WithUser(user))
		msg := fmt.Sprintf("Erro ao excluir o comprovante: %v", err)
		InternalServerError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	s.attachmentList(w, r, NewHTMXResponse().TriggerSuccessNotification("Comprovante excluído."))
}
