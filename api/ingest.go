package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/quantfolio/guidelines/internal/backfill"
	"github.com/quantfolio/guidelines/internal/extract"
	"github.com/quantfolio/guidelines/internal/ingest"
)

// MaxDocumentBytes caps uploaded document size (32 MiB).
const MaxDocumentBytes = 32 << 20

// IngestHandler serves document ingestion and embedding backfill.
type IngestHandler struct {
	ingestor   Ingestor
	backfiller Backfiller
	logger     *slog.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(ingestor Ingestor, backfiller Backfiller, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, backfiller: backfiller, logger: logger}
}

// RegisterRoutes registers ingestion routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.ingestDocument)
	mux.HandleFunc("POST /api/backfill", h.backfill)
}

// ingestDocument accepts a multipart upload with a "document" file part
// and optional identity overrides (collection_id, collection_name,
// doc_id, doc_name) as form fields.
func (h *IngestHandler) ingestDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxDocumentBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "expected a multipart form upload")
		return
	}

	file, _, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_document", `form file "document" is required`)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxDocumentBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_document", err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty_document", "uploaded document is empty")
		return
	}
	if len(data) > MaxDocumentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "document_too_large", "document exceeds 32 MiB")
		return
	}

	hints := extract.Hints{
		CollectionID:   r.FormValue("collection_id"),
		CollectionName: r.FormValue("collection_name"),
		DocumentID:     r.FormValue("doc_id"),
		DocumentName:   r.FormValue("doc_name"),
	}

	result, err := h.ingestor.Ingest(r.Context(), data, hints)
	switch {
	case errors.Is(err, ingest.ErrValidationRejected):
		writeError(w, http.StatusUnprocessableEntity, "document_rejected", err.Error())
		return
	case errors.Is(err, ingest.ErrNoIdentity):
		writeError(w, http.StatusUnprocessableEntity, "missing_identity", err.Error())
		return
	case err != nil:
		h.logger.Error("ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingestion_failed", "document could not be ingested")
		return
	}

	resp := IngestResponse{Result: result}
	if r.FormValue("embed") == "true" {
		report, err := h.backfiller.Run(r.Context(), result.DocumentID)
		if err != nil {
			// Rules are stored; only the embedding pass failed. Report
			// partial success rather than discarding the ingestion.
			h.logger.Error("post-ingest backfill failed", "doc_id", result.DocumentID, "error", err)
		} else {
			resp.Backfill = report
		}
	}

	status := http.StatusCreated
	if result.Reingested {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// IngestResponse is the JSON reply for a document upload. Backfill is
// present when the upload requested synchronous embedding (embed=true)
// and the embedding pass ran.
type IngestResponse struct {
	*ingest.Result
	Backfill *backfill.Report `json:"backfill,omitempty"`
}

// BackfillRequest optionally scopes a backfill run to one document.
type BackfillRequest struct {
	DocID string `json:"doc_id,omitempty"`
}

func (h *IngestHandler) backfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}

	report, err := h.backfiller.Run(r.Context(), req.DocID)
	if err != nil {
		h.logger.Error("backfill failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backfill_failed", "backfill run failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
