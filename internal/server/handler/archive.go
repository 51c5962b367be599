package handler

import (
	"log/slog"
	"net/http"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// ArchiveHandler lists cold-storage archive files so operators can locate
// aged-out decision logs without S3 console access.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		reader: reader,
		logger: logHandler(logger, "archive"),
	}
}

// List returns metadata for all archived decision files.
// GET /api/v1/archives
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	infos, err := h.reader.List(r.Context(), "archive/decisions/")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not list archives")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": infos})
}
