package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/analytics"
	"github.com/JonMunkholm/gradebook/internal/config"
	"github.com/JonMunkholm/gradebook/internal/core"
	mw "github.com/JonMunkholm/gradebook/internal/web/middleware"
)

const owner = "6f1c2a39-5d0e-4d8b-9a51-0b7db9e0c001"

const grades = "Matricula;Disciplina;Nota;Avaliacao;Data\n" +
	"2024001;MAT101;7,5;Prova 1;2024-03-10\n" +
	"X999;MAT101;8;Prova 1;2024-03-10\n" +
	"2024003;mat101;9;Prova 1;10/03/2024\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	ctx := context.Background()
	store := core.NewMemStore()

	courses, err := store.InsertCourses(ctx, owner, []core.Course{{Name: "Sistemas de Informação", Code: "SI"}})
	require.NoError(t, err)
	_, err = store.InsertSubjects(ctx, owner, []core.Subject{{Name: "Cálculo I", Code: "MAT101", Semester: 1, Year: 2024}})
	require.NoError(t, err)
	_, err = store.InsertStudents(ctx, owner, []core.Student{
		{Name: "Ana", StudentID: "2024001", CourseID: courses[0].ID},
		{Name: "Bruno", StudentID: "2024003", CourseID: courses[0].ID},
	})
	require.NoError(t, err)

	svc := core.NewService(store, core.ServiceConfig{MaxConcurrent: 2, MaxWait: time.Second})
	return NewServer(svc, cfg, nil)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get(mw.OwnerHeader) == "" {
		req.Header.Set(mw.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mp := multipart.NewWriter(&body)
	part, err := mp.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/stage", &body)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAPI_RequiresOwner(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name  string
		path  string
		owner string
		want  int
	}{
		{"missing", "/api/courses", "", http.StatusUnauthorized},
		{"not a uuid", "/api/courses", "prof-1", http.StatusUnauthorized},
		{"header", "/api/courses", owner, http.StatusOK},
		{"query", "/api/courses?owner=" + owner, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.owner != "" {
				req.Header.Set(mw.OwnerHeader, tt.owner)
			}
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestImportFlow(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, upload(t, "notas.csv", grades))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stage := decodeBody[core.StagedBatch](t, rec)
	assert.Equal(t, core.KindGrade, stage.Classification.Kind)
	assert.Equal(t, 3, stage.RowCount)

	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/api/imports/"+stage.ID+"/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	runID := decodeBody[map[string]string](t, rec)["run_id"]
	require.NotEmpty(t, runID)

	// The error report waits for the run to finish.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/runs/"+runID+"/errors.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Line 3: X999"), rec.Body.String())

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/runs/"+runID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[core.RunResult](t, rec)
	assert.Equal(t, "2 new, 0 updated, 1 error(s)", res.Summary)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]core.ImportRun](t, rec), 1)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decodeBody[analytics.Dashboard](t, rec)
	assert.Equal(t, 2, dash.TotalStudents)
	assert.Equal(t, 2, dash.TotalGrades)
	assert.Equal(t, 8.25, dash.AverageGrade)
}

func TestImportProgress_StreamsCompletion(t *testing.T) {
	s := newTestServer(t, testConfig())

	stage := decodeBody[core.StagedBatch](t, do(t, s, upload(t, "notas.csv", grades)))
	runID := decodeBody[map[string]string](t, do(t, s, httptest.NewRequest(http.MethodPost, "/api/imports/"+stage.ID+"/run", nil)))["run_id"]

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/imports/runs/"+runID+"/progress", nil))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: progress")
	assert.Contains(t, rec.Body.String(), "event: complete")
	assert.Contains(t, rec.Body.String(), `"state":"reported"`)
}

func TestImportErrors(t *testing.T) {
	small := testConfig()
	small.Import.MaxFileSize = 16

	tests := []struct {
		name     string
		cfg      *config.Config
		req      func(t *testing.T, s *Server) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name: "no file",
			cfg:  testConfig(),
			req: func(t *testing.T, s *Server) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/imports/stage", nil)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "PRS005",
		},
		{
			name:     "too large",
			cfg:      small,
			req:      func(t *testing.T, s *Server) *http.Request { return upload(t, "notas.csv", grades) },
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "PRS004",
		},
		{
			name:     "unsupported type",
			cfg:      testConfig(),
			req:      func(t *testing.T, s *Server) *http.Request { return upload(t, "notas.pdf", grades) },
			wantCode: http.StatusBadRequest,
			wantErr:  "PRS003",
		},
		{
			name: "invalid kind",
			cfg:  testConfig(),
			req: func(t *testing.T, s *Server) *http.Request {
				stage := decodeBody[core.StagedBatch](t, do(t, s, upload(t, "notas.csv", grades)))
				return httptest.NewRequest(http.MethodPost, "/api/imports/"+stage.ID+"/run?kind=teachers", nil)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL003",
		},
		{
			name: "unrecognized without kind",
			cfg:  testConfig(),
			req: func(t *testing.T, s *Server) *http.Request {
				stage := decodeBody[core.StagedBatch](t, do(t, s, upload(t, "dados.csv", "Coluna A,Coluna B\n1,2\n")))
				return httptest.NewRequest(http.MethodPost, "/api/imports/"+stage.ID+"/run", nil)
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "IMP004",
		},
		{
			name: "unknown stage",
			cfg:  testConfig(),
			req: func(t *testing.T, s *Server) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/imports/"+uuid.NewString()+"/run", nil)
			},
			wantCode: http.StatusNotFound,
			wantErr:  "IMP006",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.cfg)
			rec := do(t, s, tt.req(t, s))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decodeBody[ErrorResponse](t, rec).Code; got != tt.wantErr {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestStage_HTMXRendersPreview(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := upload(t, "notas.csv", grades)
	req.Header.Set("HX-Request", "true")

	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `<section class="stage"`)
	assert.Contains(t, rec.Body.String(), "<td>X999</td>")
}

func TestSubjects(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/subjects", strings.NewReader(`{"semester":2}`))
	rec := do(t, s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"name", "code"}, decodeBody[ErrorResponse](t, rec).Fields)

	req = httptest.NewRequest(http.MethodPost, "/api/subjects", strings.NewReader(`{"name":"Física I","code":"FIS101"}`))
	rec = do(t, s, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	subject := decodeBody[core.Subject](t, rec)
	assert.Equal(t, 1, subject.Semester)

	req = httptest.NewRequest(http.MethodPost, "/api/subjects", strings.NewReader(`{"name":"Outra","code":"fis101"}`))
	rec = do(t, s, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/subjects/"+subject.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/subjects/"+subject.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidOwner, http.StatusBadRequest},
		{&core.ValidationError{Missing: []string{"name"}}, http.StatusBadRequest},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{&core.PreconditionError{Entity: "courses", Msg: "no courses registered"}, http.StatusUnprocessableEntity},
		{core.ErrNoValidRows, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
