package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, studentIDs ...string) (*Service, *fixture) {
	t.Helper()
	f := newFixture(t, studentIDs...)
	svc := NewService(f.store, ServiceConfig{MaxConcurrent: 2, MaxWait: time.Second})
	return svc, f
}

func TestService_StageAndRun(t *testing.T) {
	svc, _ := newTestService(t, "2024001", "2024003")
	ctx := context.Background()

	stage, err := svc.Stage(ctx, owner, "notas.csv", []byte(threeGrades))
	require.NoError(t, err)
	assert.Equal(t, KindGrade, stage.Classification.Kind)
	assert.Equal(t, 3, stage.RowCount)
	assert.Len(t, stage.Preview, 3)
	assert.Equal(t, "X999", stage.Preview[1]["Matricula"])

	runID, err := svc.StartImport(ctx, owner, stage.ID, nil)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := svc.GetResult(waitCtx, owner, runID)
	require.NoError(t, err)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, "2 new, 0 updated, 1 error(s)", res.Summary)
	assert.Equal(t, StateReported, res.Progress.State)

	// The stage is consumed by the run.
	_, err = svc.GetStage(owner, stage.ID)
	assert.ErrorIs(t, err, ErrStageNotFound)

	runs, err := svc.History(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "notas.csv", runs[0].FileName)
	assert.Equal(t, 2, runs[0].Inserted)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Contains(t, runs[0].ErrorReport, "Line 3:")
}

func TestService_SubscribeAfterFinish(t *testing.T) {
	svc, _ := newTestService(t, "2024001", "2024003")
	ctx := context.Background()

	stage, err := svc.Stage(ctx, owner, "notas.csv", []byte(threeGrades))
	require.NoError(t, err)
	runID, err := svc.StartImport(ctx, owner, stage.ID, nil)
	require.NoError(t, err)
	_, err = svc.GetResult(ctx, owner, runID)
	require.NoError(t, err)

	ch, err := svc.SubscribeProgress(owner, runID)
	require.NoError(t, err)

	var states []ImportState
	for p := range ch {
		states = append(states, p.State)
	}
	assert.Equal(t, []ImportState{StateReported}, states)
}

func TestService_UnrecognizedNeedsOverride(t *testing.T) {
	svc, _ := newTestService(t, "2024001")
	ctx := context.Background()

	data := "Coluna A,Coluna B\n2024001,MAT101\n"
	stage, err := svc.Stage(ctx, owner, "dados.csv", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, KindUnrecognized, stage.Classification.Kind)
	assert.NotEmpty(t, stage.Classification.Rationale)

	_, err = svc.StartImport(ctx, owner, stage.ID, nil)
	assert.ErrorIs(t, err, ErrUnrecognizedBatch)

	// A failed start leaves the stage in place.
	_, err = svc.GetStage(owner, stage.ID)
	assert.NoError(t, err)
}

func TestService_StageStartsOneRun(t *testing.T) {
	svc, _ := newTestService(t, "2024001", "2024003")
	ctx := context.Background()

	stage, err := svc.Stage(ctx, owner, "notas.csv", []byte(threeGrades))
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		runIDs = make([]string, 2)
		errs   = make([]error, 2)
	)
	for i := range runIDs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runIDs[i], errs[i] = svc.StartImport(ctx, owner, stage.ID, nil)
		}(i)
	}
	wg.Wait()

	started := 0
	for i, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrStageNotFound)
			continue
		}
		started++
		_, err := svc.GetResult(ctx, owner, runIDs[i])
		require.NoError(t, err)
	}
	assert.Equal(t, 1, started)

	runs, err := svc.History(ctx, owner, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestService_BusyLimiterKeepsStage(t *testing.T) {
	f := newFixture(t, "2024001", "2024003")
	svc := NewService(f.store, ServiceConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	ctx := context.Background()

	stage, err := svc.Stage(ctx, owner, "notas.csv", []byte(threeGrades))
	require.NoError(t, err)

	require.NoError(t, svc.Limiter().Acquire(ctx))
	_, err = svc.StartImport(ctx, owner, stage.ID, nil)
	assert.ErrorIs(t, err, ErrTooManyImports)

	_, err = svc.GetStage(owner, stage.ID)
	require.NoError(t, err)

	svc.Limiter().Release()
	runID, err := svc.StartImport(ctx, owner, stage.ID, nil)
	require.NoError(t, err)
	_, err = svc.GetResult(ctx, owner, runID)
	require.NoError(t, err)
}

func TestService_OwnerScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Stage(ctx, "not-a-uuid", "notas.csv", []byte(threeGrades))
	assert.ErrorIs(t, err, ErrInvalidOwner)

	stage, err := svc.Stage(ctx, owner, "notas.csv", []byte(threeGrades))
	require.NoError(t, err)

	other := "0b6a4f7e-2c39-4e1d-8f55-7a8b9c0d1e2f"
	_, err = svc.StartImport(ctx, other, stage.ID, nil)
	assert.ErrorIs(t, err, ErrStageNotFound)

	_, err = svc.GetResult(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestService_StageRejectsLegacyXLS(t *testing.T) {
	svc, _ := newTestService(t)

	ole := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}
	_, err := svc.Stage(context.Background(), owner, "notas.xls", ole)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "PRS002", MapError(err).Code)
}

func TestService_ImportSync(t *testing.T) {
	svc, f := newTestService(t, "2024001", "2024003")
	ctx := context.Background()

	force := KindGrade
	class, out, err := svc.Import(ctx, owner, "notas.csv", []byte(threeGrades), &force)
	require.NoError(t, err)
	assert.True(t, class.Forced)
	assert.Equal(t, 2, out.Inserted)

	grades, err := f.store.ListGrades(ctx, owner, GradeFilter{})
	require.NoError(t, err)
	assert.Len(t, grades, 2)

	runs, err := svc.History(ctx, owner, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestService_PreconditionRecordedAsFailedRun(t *testing.T) {
	svc := NewService(NewMemStore(), ServiceConfig{})
	ctx := context.Background()

	_, out, err := svc.Import(ctx, owner, "notas.csv", []byte(threeGrades), nil)
	assert.Nil(t, out)
	assert.True(t, IsPrecondition(err))

	runs, err := svc.History(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StateFailed, runs[0].State)
	assert.Contains(t, runs[0].Error, "precondition failed")
}

func TestService_SubjectCRUD(t *testing.T) {
	svc, f := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSubject(ctx, owner, SubjectInput{Code: "FIS101"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name"}, ve.Missing)

	created, err := svc.CreateSubject(ctx, owner, SubjectInput{Name: "Física I", Code: "FIS101", CourseID: f.course.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Semester)
	assert.NotEmpty(t, created.ID)

	updated, err := svc.UpdateSubject(ctx, owner, created.ID, SubjectInput{Name: "Física I", Code: "FIS101", Semester: 2, Year: 2025})
	require.NoError(t, err)
	assert.Nil(t, updated.CourseID)

	subjects, err := svc.ListSubjects(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)

	require.NoError(t, svc.DeleteSubject(ctx, owner, created.ID))
	assert.ErrorIs(t, svc.DeleteSubject(ctx, owner, created.ID), ErrNotFound)
}

func TestService_GradeCRUD(t *testing.T) {
	svc, f := newTestService(t, "2024001")
	ctx := context.Background()
	svc.Importer().Normalizer.Now = fixedNow

	students, err := svc.ListStudents(ctx, owner, GradeFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)

	_, err = svc.CreateGrade(ctx, owner, GradeInput{StudentID: students[0].ID, SubjectID: f.subject.ID, DateAssigned: "10/03/2024"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"date"}, ve.Invalid)

	g, err := svc.CreateGrade(ctx, owner, GradeInput{StudentID: students[0].ID, SubjectID: f.subject.ID, Grade: 6.5, AssessmentName: "Trabalho 2"})
	require.NoError(t, err)
	assert.Equal(t, "Trabalho", g.AssessmentType)
	assert.Equal(t, DefaultMaxGrade, g.MaxGrade)
	assert.Equal(t, fixedNow().Format(time.DateOnly), g.DateAssigned)

	_, err = svc.UpdateGrade(ctx, owner, g.ID, GradeInput{StudentID: students[0].ID, SubjectID: f.subject.ID, Grade: 8, AssessmentName: "Trabalho 2"})
	require.NoError(t, err)

	views, err := svc.ListGrades(ctx, owner, GradeFilter{SubjectID: f.subject.ID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 8.0, views[0].Grade.Grade)
	assert.Equal(t, "MAT101", views[0].SubjectCode)

	require.NoError(t, svc.DeleteGrade(ctx, owner, g.ID))
	require.NoError(t, svc.DeleteStudent(ctx, owner, students[0].ID))
	require.NoError(t, svc.DeleteCourse(ctx, owner, f.course.ID))

	courses, err := svc.ListCourses(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, courses)
}
