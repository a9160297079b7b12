package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/exercises"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/training"
	"github.com/meltforce/repcycle/internal/transfer"
)

// maxImportBytes bounds an uploaded snapshot.
const maxImportBytes = 5 << 20

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profiles.Catalog())
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	list, err := s.service(r).Exercises.List(r.Context())
	if err != nil {
		s.serverError(w, "list exercises", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var draft models.ExerciseDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	defer s.lock(r)()
	e, err := s.service(r).AddExercise(r.Context(), draft)
	if errors.Is(err, training.ErrInvalidExercise) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.serverError(w, "add exercise", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var patch models.ExercisePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	defer s.lock(r)()
	err := s.service(r).UpdateExercise(r.Context(), chi.URLParam(r, "id"), patch)
	if errors.Is(err, training.ErrInvalidExercise) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.serverError(w, "update exercise", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	defer s.lock(r)()
	if err := s.service(r).DeleteExercise(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.serverError(w, "delete exercise", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTargetWeight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	weight, c, err := s.service(r).TargetWeight(r.Context(), id, models.Cycle(r.URL.Query().Get("cycle")))
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, models.TargetWeight{ExerciseID: id, Cycle: c, Weight: weight})
}

func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service(r).Status(r.Context())
	if err != nil {
		s.serverError(w, "training status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGroupDone(w http.ResponseWriter, r *http.Request) {
	defer s.lock(r)()
	groups, err := s.service(r).MarkGroupDone(r.Context(), models.Group(chi.URLParam(r, "group")))
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trainedGroups": groups})
}

func (s *Server) handleGroupRetrain(w http.ResponseWriter, r *http.Request) {
	defer s.lock(r)()
	groups, err := s.service(r).MarkGroupRetrain(r.Context(), models.Group(chi.URLParam(r, "group")))
	if s.writeDomainError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trainedGroups": groups})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	confirmed, err := parseConfirm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	defer s.lock(r)()
	res, err := s.service(r).Finish(r.Context(), confirmed)
	var ue *training.UntrainedError
	if errors.As(err, &ue) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "untrained": ue.Groups})
		return
	}
	if err != nil {
		s.serverError(w, "finish cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.service(r).Plan(r.Context())
	if err != nil {
		s.serverError(w, "training plan", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service(r).Transfer.Export(r.Context())
	if err != nil {
		s.serverError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="repcycle-export.json"`)
	if err := transfer.Encode(w, snap); err != nil {
		s.log.Error("writing export", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	snap, err := transfer.Decode(http.MaxBytesReader(w, r.Body, maxImportBytes), s.profiles.Catalog())
	var me *transfer.MalformedImportError
	if errors.As(err, &me) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "missing": me.Missing})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	defer s.lock(r)()
	if err := s.service(r).Import(r.Context(), snap); err != nil {
		s.serverError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exercises":     len(snap.Exercises),
		"trainedGroups": snap.TrainedGroups,
		"currentCycle":  snap.CurrentCycle,
	})
}

func (s *Server) handleDefaultPlan(w http.ResponseWriter, r *http.Request) {
	confirmed, err := parseConfirm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	defer s.lock(r)()
	snap, err := s.service(r).LoadDefaultPlan(r.Context(), confirmed)
	if errors.Is(err, training.ErrConfirmOverwrite) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.serverError(w, "default plan", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) service(r *http.Request) *training.Service {
	return s.profiles.Service(userIDFromContext(r))
}

func (s *Server) lock(r *http.Request) func() {
	return s.profiles.Lock(userIDFromContext(r))
}

// writeDomainError maps the lookup and validation errors shared by several
// handlers. It reports whether a response was written.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	var ice *models.InvalidCycleError
	switch {
	case errors.Is(err, exercises.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, cycle.ErrUnknownGroup), errors.As(err, &ice):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.serverError(w, "request failed", err)
	}
	return true
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func parseConfirm(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("confirm")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("confirm: %q is not a boolean", v)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
