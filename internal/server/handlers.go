package server

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/async"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
	"github.com/freightdocs/bol-pipeline/internal/export"
	"github.com/freightdocs/bol-pipeline/internal/store"
	"github.com/freightdocs/bol-pipeline/internal/triage"
)

// Handler exposes the triage pipeline over HTTP. It is deliberately
// thin: validation of the transport payload, then delegation to the
// engine, store, and export service.
type Handler struct {
	store    store.DocumentStore
	engine   *triage.Engine
	queue    async.Queue
	exporter *export.Service
	logger   *zap.Logger
}

func NewHandler(st store.DocumentStore, engine *triage.Engine, queue async.Queue, exporter *export.Service, logger *zap.Logger) *Handler {
	return &Handler{
		store:    st,
		engine:   engine,
		queue:    queue,
		exporter: exporter,
		logger:   logger,
	}
}

// Upload accepts a multipart file, creates the document record, and
// queues it for asynchronous triage.
func (h *Handler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > constants.MaxUploadBytes {
		return fiber.NewError(fiber.StatusBadRequest, "file too large")
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !constants.IsAllowedUpload(fileHeader.Filename, contentType) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported file type")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
	}

	doc, err := h.engine.IngestUpload(c.Context(), fileHeader.Filename, fileHeader.Size, contentType)
	if err != nil {
		h.logger.Error("ingest failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create document")
	}

	_ = h.queue.Enqueue(c.Context(), async.Job{
		DocID:       doc.ID,
		Generation:  doc.Generation,
		Content:     content,
		Filename:    doc.Filename,
		ContentType: contentType,
		SubmittedAt: time.Now().UTC(),
	})

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// List returns all documents, optionally filtered by ?status=.
func (h *Handler) List(c *fiber.Ctx) error {
	if raw := c.Query("status"); raw != "" {
		status := constants.DocStatus(raw)
		if !status.IsValid() {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
		}
		docs, err := h.store.ListByStatus(c.Context(), status)
		if err != nil {
			h.logger.Error("list by status failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "list failed")
		}
		return c.JSON(docs)
	}
	docs, err := h.store.ListAll(c.Context())
	if err != nil {
		h.logger.Error("list failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "list failed")
	}
	return c.JSON(docs)
}

// Get returns one document.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	doc, err := h.store.Get(c.Context(), id)
	if err != nil {
		return notFoundOr500(h.logger, err)
	}
	return c.JSON(doc)
}

// patchRequest is the shallow-merge partial accepted by PATCH. Only
// these fields are caller-writable; triage state stays engine-owned.
type patchRequest struct {
	Filename      *string           `json:"filename"`
	ExtractedData *entity.BOLRecord `json:"extracted_data"`
}

// Patch shallow-merges the provided fields onto the document. The store
// never re-derives invariants here; the caller owns consistency.
func (h *Handler) Patch(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req patchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	doc, err := h.store.Update(c.Context(), id, func(d *entity.Document) error {
		if req.Filename != nil {
			d.Filename = *req.Filename
		}
		if req.ExtractedData != nil {
			d.ExtractedData = req.ExtractedData.Clone()
		}
		return nil
	})
	if err != nil {
		return notFoundOr500(h.logger, err)
	}
	return c.JSON(doc)
}

// Delete removes a document. Deleted documents are never resurrected.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ok, err := h.store.Delete(c.Context(), id)
	if err != nil {
		h.logger.Error("delete failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "delete failed")
	}
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "document not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Retry re-queues an unprocessed document. The original bytes are not
// retained, so the run resolves through the deterministic fallback.
func (h *Handler) Retry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	doc, err := h.engine.Retry(c.Context(), id)
	if err != nil {
		return transitionError(h.logger, err)
	}
	_ = h.queue.Enqueue(c.Context(), async.Job{
		DocID:       doc.ID,
		Generation:  doc.Generation,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		SubmittedAt: time.Now().UTC(),
	})
	return c.JSON(doc)
}

// Approve accepts the human-edited record for a document awaiting
// validation.
func (h *Handler) Approve(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var edited entity.BOLRecord
	if err := c.BodyParser(&edited); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid record body")
	}
	doc, err := h.engine.Approve(c.Context(), id, &edited)
	if err != nil {
		return transitionError(h.logger, err)
	}
	return c.JSON(doc)
}

// Reject declines a document awaiting validation.
func (h *Handler) Reject(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	doc, err := h.engine.Reject(c.Context(), id)
	if err != nil {
		return transitionError(h.logger, err)
	}
	return c.JSON(doc)
}

// BulkExport serializes every processed document in the requested
// format.
func (h *Handler) BulkExport(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	b, err := h.exporter.BulkExport(c.Context(), format)
	if err != nil {
		h.logger.Error("bulk export failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "export failed")
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="bol_export.%s"`, format))
	return c.Send(b)
}

// SingleExport serializes one document's records.
func (h *Handler) SingleExport(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	b, err := h.exporter.SingleExport(c.Context(), id, format)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "document not found")
		}
		if errors.Is(err, common.ErrInvalidInput) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		h.logger.Error("single export failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "export failed")
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.%s"`, id, format))
	return c.Send(b)
}

// Health is the liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}
	return id, nil
}

func notFoundOr500(logger *zap.Logger, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "document not found")
	}
	logger.Error("store operation failed", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "internal error")
}

func transitionError(logger *zap.Logger, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "document not found")
	case errors.Is(err, common.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, common.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	logger.Error("transition failed", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "internal error")
}
