package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"fjacquet/statement-ledger/internal/detector"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
	"fjacquet/statement-ledger/internal/pipeline"
	"fjacquet/statement-ledger/internal/store"
	"fjacquet/statement-ledger/internal/writer"

	"github.com/go-chi/chi/v5"
)

// maxMultipartMemory is the part of a multipart upload kept in memory.
const maxMultipartMemory = 32 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TemplateInfo describes one registry template.
type TemplateInfo struct {
	Name     string          `json:"name"`
	Bank     string          `json:"bank,omitempty"`
	Priority int             `json:"priority"`
	Generic  bool            `json:"generic"`
	Formats  []models.Format `json:"formats"`
}

// DetectResponse is the body of a detection request.
type DetectResponse struct {
	Template   string           `json:"template,omitempty"`
	Confidence float64          `json:"confidence"`
	Unknown    bool             `json:"unknown"`
	Scores     []detector.Score `json:"scores"`
}

// Handler serves the statement endpoints.
type Handler struct {
	engine   *pipeline.Engine
	store    store.LedgerStore
	maxBytes int64
	logger   logging.Logger
}

// NewHandler creates a Handler. store may be nil.
func NewHandler(engine *pipeline.Engine, ledgers store.LedgerStore, maxBytes int64, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{engine: engine, store: ledgers, maxBytes: maxBytes, logger: logger}
}

// Health returns 200 while the service is alive.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"templates": h.engine.Registry().Len(),
	})
}

// Templates lists the registry in detection order.
func (h *Handler) Templates(w http.ResponseWriter, _ *http.Request) {
	list := make([]TemplateInfo, 0, h.engine.Registry().Len())
	for _, t := range h.engine.Registry().Templates() {
		list = append(list, TemplateInfo{
			Name:     t.Name,
			Bank:     t.Bank,
			Priority: t.Priority,
			Generic:  t.Generic,
			Formats:  t.Formats,
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// Process runs an uploaded statement through the pipeline. The "template"
// query parameter forces a template.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := h.readStatement(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var ledger *models.Ledger
	if name := r.URL.Query().Get("template"); name != "" {
		ledger, err = h.engine.ProcessWithTemplate(r.Context(), data, mimeType, name)
	} else {
		ledger, err = h.engine.Process(r.Context(), data, mimeType)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doc := writer.NewDocument(ledger, time.Now())
	if h.store != nil {
		id, err := h.store.Save(r.Context(), ledger)
		if err != nil {
			h.fail(w, r, fmt.Errorf("failed to store ledger: %w", err))
			return
		}
		doc.ID = id
	}
	writeJSON(w, http.StatusOK, doc)
}

// Detect scores the registry templates against an uploaded statement.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := h.readStatement(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	det, err := h.engine.Detect(r.Context(), data, mimeType)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := DetectResponse{Confidence: det.Confidence, Unknown: det.Unknown, Scores: det.Scores}
	if det.Template != nil {
		resp.Template = det.Template.Name
	}
	if resp.Scores == nil {
		resp.Scores = []detector.Score{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLedger returns a stored ledger.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "not_found", "ledger store is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	ledger, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc := writer.NewDocument(ledger, time.Now())
	doc.ID = id
	writeJSON(w, http.StatusOK, doc)
}

// readStatement returns the uploaded bytes and their declared MIME type: the
// "format" query parameter, else the part or request Content-Type.
func (h *Handler) readStatement(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	mimeType := r.URL.Query().Get("format")
	contentType := r.Header.Get("Content-Type")

	var data []byte
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, "", h.bodyError(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("%w: missing multipart field \"file\"", errBadRequest)
		}
		defer func() { _ = file.Close() }()
		if data, err = io.ReadAll(file); err != nil {
			return nil, "", h.bodyError(err)
		}
		if mimeType == "" {
			mimeType = header.Header.Get("Content-Type")
		}
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			return nil, "", h.bodyError(err)
		}
		if mimeType == "" {
			mimeType = contentType
		}
	}
	return data, mimeType, nil
}

var errBadRequest = errors.New("bad request")

func (h *Handler) bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &parsererror.ResourceLimitError{Resource: "bytes", Limit: tooLarge.Limit}
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("Request failed", logging.F(logging.FieldPath, r.URL.Path))
	}
	writeError(w, status, errorKind(err), err.Error())
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parsererror.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, parsererror.ErrCorruptFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, parsererror.ErrResourceLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, parsererror.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, store.ErrLedgerNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrUnknownTemplate), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrLedgerNotFound):
		return "not_found"
	case errors.Is(err, pipeline.ErrUnknownTemplate):
		return "unknown_template"
	case errors.Is(err, errBadRequest):
		return "bad_request"
	}
	return parsererror.Kind(err)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}
