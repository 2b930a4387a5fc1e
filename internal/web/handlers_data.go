package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/analytics"
	"github.com/JonMunkholm/gradebook/internal/core"
	mw "github.com/JonMunkholm/gradebook/internal/web/middleware"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "path", r.URL.Path, "error", err)
	}
}

// decode reads a JSON body into v. Decode failures surface as invalid input.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &core.ValidationError{Invalid: []string{fmt.Sprintf("request body (%v)", err)}}
	}
	return nil
}

func filterFrom(r *http.Request) core.GradeFilter {
	q := r.URL.Query()
	return core.GradeFilter{CourseID: q.Get("course"), SubjectID: q.Get("subject")}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	}
	code := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			slog.Warn("health: database unreachable", "error", err)
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}
	writeJSON(w, code, status)
}

// handleDashboard serves the chart series for the owner's students and
// grades, optionally narrowed by ?course= or ?subject=.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	owner := mw.OwnerFrom(r.Context())
	filter := filterFrom(r)

	students, err := s.service.ListStudents(r.Context(), owner, filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	grades, err := s.service.ListGrades(r.Context(), owner, filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Build(students, grades))
}

// Courses

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.service.ListCourses(r.Context(), mw.OwnerFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	s.deleteRecord(w, r, s.service.DeleteCourse)
}

// Subjects

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.service.ListSubjects(r.Context(), mw.OwnerFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var in core.SubjectInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	subject, err := s.service.CreateSubject(r.Context(), mw.OwnerFrom(r.Context()), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	var in core.SubjectInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	subject, err := s.service.UpdateSubject(r.Context(), mw.OwnerFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (s *Server) handleDeleteSubject(w http.ResponseWriter, r *http.Request) {
	s.deleteRecord(w, r, s.service.DeleteSubject)
}

// Students

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.service.ListStudents(r.Context(), mw.OwnerFrom(r.Context()), filterFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	s.deleteRecord(w, r, s.service.DeleteStudent)
}

// Grades

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := s.service.ListGrades(r.Context(), mw.OwnerFrom(r.Context()), filterFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grades)
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	var in core.GradeInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	grade, err := s.service.CreateGrade(r.Context(), mw.OwnerFrom(r.Context()), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, grade)
}

func (s *Server) handleUpdateGrade(w http.ResponseWriter, r *http.Request) {
	var in core.GradeInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	grade, err := s.service.UpdateGrade(r.Context(), mw.OwnerFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grade)
}

func (s *Server) handleDeleteGrade(w http.ResponseWriter, r *http.Request) {
	s.deleteRecord(w, r, s.service.DeleteGrade)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, owner, id string) error) {
	if err := del(r.Context(), mw.OwnerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
