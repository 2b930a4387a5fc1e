package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/schema"
	mw "github.com/JonMunkholm/gradebook/internal/web/middleware"
	"github.com/JonMunkholm/gradebook/internal/web/templates"
)

// handleStageImport parses and classifies an uploaded file and keeps it
// staged until the professor confirms the import.
func (s *Server) handleStageImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, fmt.Errorf("%w (limit %d bytes)", errFileTooBig, maxSize))
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		respondError(w, r, fmt.Errorf("%w (limit %d bytes)", errFileTooBig, maxSize))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	stage, err := s.service.Stage(r.Context(), mw.OwnerFrom(r.Context()), header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		s.render(w, r, http.StatusOK, templates.StagePreview(stage))
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

func (s *Server) handleGetStage(w http.ResponseWriter, r *http.Request) {
	stage, err := s.service.GetStage(mw.OwnerFrom(r.Context()), chi.URLParam(r, "stageID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// handleRunImport starts the import of a staged batch. An optional ?kind=
// overrides the detected record kind.
func (s *Server) handleRunImport(w http.ResponseWriter, r *http.Request) {
	var force *core.RecordKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, ok := schema.ParseKind(raw)
		if !ok {
			respondError(w, r, fmt.Errorf("invalid record kind %q", raw))
			return
		}
		force = &kind
	}

	runID, err := s.service.StartImport(r.Context(), mw.OwnerFrom(r.Context()), chi.URLParam(r, "stageID"), force)
	if err != nil {
		respondError(w, r, err)
		return
	}
	mw.SetRunID(r.Context(), runID)
	logging.FromContext(r.Context()).Info("import started", "run_id", runID)

	if isHTMX(r) {
		status, err := s.service.RunStatus(mw.OwnerFrom(r.Context()), runID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		s.render(w, r, http.StatusAccepted, templates.ImportSummary(status))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleImportProgress streams a run's state transitions via Server-Sent
// Events and ends with a "complete" event carrying the result.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	owner := mw.OwnerFrom(r.Context())
	runID := chi.URLParam(r, "runID")
	mw.SetRunID(r.Context(), runID)

	progressCh, err := s.service.SubscribeProgress(owner, runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// The controller reaches the Flusher through wrapping middleware.
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventID := 0
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data := []byte("{}")
				if res, err := s.service.RunStatus(owner, runID); err == nil {
					data, _ = json.Marshal(res)
				}
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				_ = rc.Flush()
				return
			}

			eventID++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			if err := rc.Flush(); err != nil {
				slog.Warn("progress stream flush failed", "run_id", runID, "error", err)
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.RunStatus(mw.OwnerFrom(r.Context()), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		s.render(w, r, http.StatusOK, templates.ImportSummary(res))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleImportErrors downloads the plain-text error report of a run,
// waiting for the run to finish if it is still going.
func (s *Server) handleImportErrors(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	res, err := s.service.GetResult(r.Context(), mw.OwnerFrom(r.Context()), runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var report string
	if res.Outcome != nil {
		report = res.Outcome.ErrorsText()
	}
	if report == "" && res.Error != "" {
		report = res.Error + "\n"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "import-errors-"+runID+".txt"))
	if _, err := io.WriteString(w, report); err != nil {
		slog.Error("write error report", "run_id", runID, "error", err)
	}
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.service.History(r.Context(), mw.OwnerFrom(r.Context()), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		s.render(w, r, http.StatusOK, templates.History(runs))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
