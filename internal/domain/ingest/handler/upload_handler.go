// Package handler exposes ingestion over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/common"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/entities"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/service"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/sheet"
	"github.com/FACorreiaa/sukhavati-ingest/pkg/middleware"
)

const multipartMemory = 32 << 20

var successMessages = map[string]string{
	"payments":      "payments updated successfully",
	"partners":      "members updated successfully",
	"members":       "members updated successfully",
	"subscriptions": "subscriptions updated successfully",
	"products":      "products updated successfully",
	"activities":    "activities updated successfully",
}

// Ingester runs one upload through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req service.Request) (*service.Summary, error)
}

// UploadHandler handles spreadsheet uploads
type UploadHandler struct {
	svc      Ingester
	logger   *slog.Logger
	maxBytes int64
	timeout  time.Duration
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(svc Ingester, logger *slog.Logger, maxBytes int64, timeout time.Duration) *UploadHandler {
	return &UploadHandler{
		svc:      svc,
		logger:   logger,
		maxBytes: maxBytes,
		timeout:  timeout,
	}
}

// Upload handles POST /v1/uploads: multipart form with "schema", "table", optional "key=natural" and
// one or two files.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		middleware.WriteJSON(w, http.StatusMethodNotAllowed, common.Response{Error: "method not allowed"})
		return
	}

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			middleware.WriteJSON(w, http.StatusRequestEntityTooLarge, common.Response{Error: common.ErrTooLarge.Error()})
			return
		}
		middleware.WriteJSON(w, http.StatusBadRequest, common.Response{Error: "invalid multipart form"})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart files", "error", err)
		}
	}()

	table := strings.ToLower(strings.TrimSpace(r.FormValue("table")))
	if table == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, common.Response{Error: "table is required"})
		return
	}
	schema := strings.TrimSpace(r.FormValue("schema"))
	if schema == "" {
		schema = service.DefaultSchema
	}

	files, err := readFiles(r.MultipartForm)
	if err != nil {
		h.logger.Error("failed to read uploaded files", "error", err)
		middleware.WriteJSON(w, http.StatusBadRequest, common.Response{Error: "failed to read uploaded files"})
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	summary, err := h.svc.Ingest(ctx, service.Request{
		Schema:     schema,
		Table:      table,
		Files:      files,
		Admin:      claims.IsAdmin(),
		NaturalKey: r.FormValue("key") == "natural",
	})
	if err != nil {
		h.writeError(w, table, err)
		return
	}

	if summary.OK {
		summary.Message = successMessages[table]
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

func (h *UploadHandler) writeError(w http.ResponseWriter, table string, err error) {
	var headerErr *entities.HeaderError
	switch {
	case errors.As(err, &headerErr):
		middleware.WriteJSON(w, http.StatusBadRequest, service.HeaderMismatch(headerErr))
	case errors.Is(err, service.ErrUnknownTable),
		errors.Is(err, service.ErrNotEnoughFiles),
		errors.Is(err, service.ErrSchemaNotAllowed),
		errors.Is(err, sheet.ErrEmptyWorkbook),
		errors.Is(err, sheet.ErrUnreadable):
		middleware.WriteJSON(w, http.StatusBadRequest, common.Response{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("ingestion timed out", "table", table, "error", err)
		middleware.WriteJSON(w, http.StatusGatewayTimeout, common.Response{Error: "ingestion timed out"})
	default:
		h.logger.Error("ingestion failed", "table", table, "error", err)
		middleware.WriteJSON(w, http.StatusInternalServerError, common.Response{Error: fmt.Sprintf("failed to ingest %s", table)})
	}
}

// readFiles collects every uploaded file, ordered by form field then upload order.
func readFiles(form *multipart.Form) ([]service.Upload, error) {
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var uploads []service.Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			data, err := readFile(fh)
			if err != nil {
				return nil, fmt.Errorf("failed to read %q: %w", fh.Filename, err)
			}
			uploads = append(uploads, service.Upload{Filename: fh.Filename, Data: data})
		}
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
