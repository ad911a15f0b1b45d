package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/importer"
	"github.com/Spok95/stone-stock/internal/report"
)

const maxUploadBytes = 20 << 20

type Importer interface {
	Import(ctx context.Context, userID uuid.UUID, data []byte) (importer.Result, error)
}

type ProgressSource interface {
	Snapshot() (importer.Progress, bool)
}

type Exporter interface {
	Export(ctx context.Context, userID uuid.UUID) (*report.Export, error)
}

type Matcher interface {
	Find(ctx context.Context, userID uuid.UUID, req slabs.Requirement) ([]slabs.MatchResult, error)
}

type Purger interface {
	DeleteAll(ctx context.Context, userID uuid.UUID) (slabs.DeleteResult, error)
}

type UserEnsurer interface {
	Ensure(ctx context.Context, id uuid.UUID) error
}

type Archiver interface {
	SaveImport(ctx context.Context, userID uuid.UUID, name string, data []byte)
	SaveExport(ctx context.Context, userID uuid.UUID, name string, data []byte)
}

type LiveServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

type handlers struct {
	importer Importer
	progress ProgressSource
	exporter Exporter
	matcher  Matcher
	purger   Purger
	users    UserEnsurer
	archive  Archiver
	live     LiveServer
	log      *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *handlers) postImport(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "fichier manquant (champ \"file\")")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "fichier trop volumineux")
		return
	}
	if err := h.users.Ensure(r.Context(), userID); err != nil {
		h.log.Error("ensure user", "user_id", userID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "erreur interne")
		return
	}
	if h.archive != nil {
		h.archive.SaveImport(r.Context(), userID, hdr.Filename, data)
	}

	res, err := h.importer.Import(r.Context(), userID, data)
	var headerErr *importer.HeaderError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, importer.ErrImportInProgress):
		writeError(w, r, http.StatusConflict, "import_in_progress", err.Error())
	case errors.Is(err, importer.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.As(err, &headerErr), errors.Is(err, importer.ErrUnreadable), errors.Is(err, importer.ErrTooManyUnits):
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_file", err.Error())
	default:
		h.log.Error("import failed", "user_id", userID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "import_failed", err.Error())
	}
}

// getProgress отдаёт снимок только владельцу прогона.
func (h *handlers) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	p, ok := h.progress.Snapshot()
	if !ok || p.UserID != userID {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) websocket(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	h.live.Serve(w, r, userID)
}

func (h *handlers) exportSlabs(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	exp, err := h.exporter.Export(r.Context(), userID)
	if err != nil {
		h.log.Error("export failed", "user_id", userID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	if h.archive != nil {
		h.archive.SaveExport(r.Context(), userID, exp.FileName, exp.Data)
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}

func (h *handlers) compatible(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	req, err := requirementFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.matcher.Find(r.Context(), userID, req)
	if err != nil {
		h.log.Error("match failed", "user_id", userID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "match_failed", err.Error())
		return
	}
	if res == nil {
		res = []slabs.MatchResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

func requirementFromQuery(q url.Values) (slabs.Requirement, error) {
	var req slabs.Requirement
	fields := []struct {
		key string
		dst **float64
	}{
		{"length", &req.Length},
		{"width", &req.Width},
		{"thickness", &req.Thickness},
		{"tolerance", &req.Tolerance},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(q.Get(f.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return req, fmt.Errorf("paramètre %s invalide: %q", f.key, raw)
		}
		*f.dst = &v
	}
	req.Material = strings.TrimSpace(q.Get("material"))
	return req, nil
}

func (h *handlers) deleteSlabs(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	res, err := h.purger.DeleteAll(r.Context(), userID)
	if err != nil {
		h.log.Error("delete all failed", "user_id", userID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	h.log.Info("slabs deleted", "user_id", userID, "count", res.DeletedCount)
	writeJSON(w, http.StatusOK, res)
}
