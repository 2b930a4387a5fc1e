package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	db "github.com/JonMunkholm/gradebook/internal/database"
)

// PgStore is the PostgreSQL Store. Batch inserts run inside one transaction,
// so a failing row rolls back the whole batch.
type PgStore struct {
	pool *pgxpool.Pool
	q    *db.Queries
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, q: db.New(pool)}
}

var _ Store = (*PgStore)(nil)

func (s *PgStore) inTx(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.q.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ownership turns the no-row result of an owner-guarded insert into the
// same error a foreign key violation would give.
func ownership(err error, constraint string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("insert or update violates foreign key constraint %q", constraint)
	}
	return err
}

func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func int32Of(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

// ---- courses

func courseFromDB(c db.Course) Course {
	return Course{
		ID:             PgUUIDToString(c.ID),
		OwnerID:        PgUUIDToString(c.OwnerID),
		Name:           c.Name,
		Code:           c.Code,
		TotalSemesters: int(c.TotalSemesters),
		StartDate:      PgDateToIso(c.StartDate),
	}
}

func coursesFromDB(rows []db.Course, err error) ([]Course, error) {
	if err != nil {
		return nil, err
	}
	out := make([]Course, len(rows))
	for i, c := range rows {
		out[i] = courseFromDB(c)
	}
	return out, nil
}

func (s *PgStore) ListCourses(ctx context.Context, owner string) ([]Course, error) {
	return coursesFromDB(s.q.ListCourses(ctx, ToPgUUID(owner)))
}

func (s *PgStore) FindCoursesByCode(ctx context.Context, owner string, codes []string) ([]Course, error) {
	return coursesFromDB(s.q.FindCoursesByCode(ctx, db.FindCoursesByCodeParams{
		OwnerID: ToPgUUID(owner),
		Codes:   lowerAll(codes),
	}))
}

func (s *PgStore) InsertCourses(ctx context.Context, owner string, courses []Course) ([]Course, error) {
	params := make([]db.InsertCourseParams, len(courses))
	for i, c := range courses {
		params[i] = db.InsertCourseParams{
			OwnerID:        ToPgUUID(owner),
			Name:           c.Name,
			Code:           c.Code,
			TotalSemesters: int32Of(c.TotalSemesters),
			StartDate:      ToPgIsoDate(c.StartDate),
		}
	}

	var out []Course
	err := s.inTx(ctx, func(q *db.Queries) error {
		rows, err := q.InsertCourses(ctx, params)
		out, err = coursesFromDB(rows, err)
		return err
	})
	return out, err
}

func (s *PgStore) UpdateCourse(ctx context.Context, owner string, c Course) error {
	return affected(s.q.UpdateCourse(ctx, db.UpdateCourseParams{
		ID:             ToPgUUID(c.ID),
		OwnerID:        ToPgUUID(owner),
		Name:           c.Name,
		Code:           c.Code,
		TotalSemesters: int32Of(c.TotalSemesters),
		StartDate:      ToPgIsoDate(c.StartDate),
	}))
}

func (s *PgStore) DeleteCourse(ctx context.Context, owner, id string) error {
	return affected(s.q.DeleteCourse(ctx, ToPgUUID(id), ToPgUUID(owner)))
}

// ---- subjects

func subjectFromDB(r db.Subject) Subject {
	return Subject{
		ID:       PgUUIDToString(r.ID),
		OwnerID:  PgUUIDToString(r.OwnerID),
		CourseID: PgUUIDToPtr(r.CourseID),
		Name:     r.Name,
		Code:     r.Code,
		Semester: int(r.Semester),
		Year:     int(r.Year),
	}
}

func subjectsFromDB(rows []db.Subject, err error) ([]Subject, error) {
	if err != nil {
		return nil, err
	}
	out := make([]Subject, len(rows))
	for i, r := range rows {
		out[i] = subjectFromDB(r)
	}
	return out, nil
}

func (s *PgStore) ListSubjects(ctx context.Context, owner string) ([]Subject, error) {
	return subjectsFromDB(s.q.ListSubjects(ctx, ToPgUUID(owner)))
}

func (s *PgStore) FindSubjectsByCode(ctx context.Context, owner string, codes []string) ([]Subject, error) {
	return subjectsFromDB(s.q.FindSubjectsByCode(ctx, db.FindSubjectsByCodeParams{
		OwnerID: ToPgUUID(owner),
		Codes:   lowerAll(codes),
	}))
}

func (s *PgStore) InsertSubjects(ctx context.Context, owner string, subjects []Subject) ([]Subject, error) {
	params := make([]db.InsertSubjectParams, len(subjects))
	for i, sub := range subjects {
		params[i] = db.InsertSubjectParams{
			OwnerID:  ToPgUUID(owner),
			CourseID: ToPgOptionalUUID(sub.CourseID),
			Name:     sub.Name,
			Code:     sub.Code,
			Semester: int32Of(sub.Semester),
			Year:     int32Of(sub.Year),
		}
	}

	var out []Subject
	err := s.inTx(ctx, func(q *db.Queries) error {
		rows, err := q.InsertSubjects(ctx, params)
		out, err = subjectsFromDB(rows, ownership(err, "subjects_course_id_fkey"))
		return err
	})
	return out, err
}

func (s *PgStore) UpdateSubject(ctx context.Context, owner string, sub Subject) error {
	return affected(s.q.UpdateSubject(ctx, db.UpdateSubjectParams{
		ID:       ToPgUUID(sub.ID),
		OwnerID:  ToPgUUID(owner),
		CourseID: ToPgOptionalUUID(sub.CourseID),
		Name:     sub.Name,
		Code:     sub.Code,
		Semester: int32Of(sub.Semester),
		Year:     int32Of(sub.Year),
	}))
}

func (s *PgStore) DeleteSubject(ctx context.Context, owner, id string) error {
	return affected(s.q.DeleteSubject(ctx, ToPgUUID(id), ToPgUUID(owner)))
}

// ---- students

func studentFromDB(r db.Student) Student {
	return Student{
		ID:            PgUUIDToString(r.ID),
		CourseID:      PgUUIDToString(r.CourseID),
		Name:          r.Name,
		StudentID:     r.StudentID,
		Email:         PgTextToPtr(r.Email),
		Gender:        PgTextToPtr(r.Gender),
		Ethnicity:     PgTextToPtr(r.Ethnicity),
		AverageIncome: PgFloat8ToPtr(r.AverageIncome),
	}
}

func studentsFromDB(rows []db.Student, err error) ([]Student, error) {
	if err != nil {
		return nil, err
	}
	out := make([]Student, len(rows))
	for i, r := range rows {
		out[i] = studentFromDB(r)
	}
	return out, nil
}

func (s *PgStore) ListStudents(ctx context.Context, owner string, filter GradeFilter) ([]Student, error) {
	return studentsFromDB(s.q.ListStudents(ctx, db.ListStudentsParams{
		OwnerID:   ToPgUUID(owner),
		CourseID:  ToPgUUID(filter.CourseID),
		SubjectID: ToPgUUID(filter.SubjectID),
	}))
}

func (s *PgStore) FindStudentsByStudentID(ctx context.Context, owner string, ids []string) ([]Student, error) {
	return studentsFromDB(s.q.FindStudentsByStudentID(ctx, db.FindStudentsByStudentIDParams{
		OwnerID:    ToPgUUID(owner),
		StudentIDs: lowerAll(ids),
	}))
}

func (s *PgStore) InsertStudents(ctx context.Context, owner string, students []Student) ([]Student, error) {
	params := make([]db.InsertStudentParams, len(students))
	for i, st := range students {
		params[i] = db.InsertStudentParams{
			OwnerID:       ToPgUUID(owner),
			CourseID:      ToPgUUID(st.CourseID),
			Name:          st.Name,
			StudentID:     st.StudentID,
			Email:         ToPgOptionalText(st.Email),
			Gender:        ToPgOptionalText(st.Gender),
			Ethnicity:     ToPgOptionalText(st.Ethnicity),
			AverageIncome: ToPgFloat8(st.AverageIncome),
		}
	}

	var out []Student
	err := s.inTx(ctx, func(q *db.Queries) error {
		rows, err := q.InsertStudents(ctx, params)
		out, err = studentsFromDB(rows, ownership(err, "students_course_id_fkey"))
		return err
	})
	return out, err
}

func (s *PgStore) UpdateStudent(ctx context.Context, owner string, st Student) error {
	return affected(s.q.UpdateStudent(ctx, db.UpdateStudentParams{
		ID:            ToPgUUID(st.ID),
		OwnerID:       ToPgUUID(owner),
		CourseID:      ToPgUUID(st.CourseID),
		Name:          st.Name,
		StudentID:     st.StudentID,
		Email:         ToPgOptionalText(st.Email),
		Gender:        ToPgOptionalText(st.Gender),
		Ethnicity:     ToPgOptionalText(st.Ethnicity),
		AverageIncome: ToPgFloat8(st.AverageIncome),
	}))
}

func (s *PgStore) DeleteStudent(ctx context.Context, owner, id string) error {
	return affected(s.q.DeleteStudent(ctx, ToPgUUID(id), ToPgUUID(owner)))
}

// ---- grades

func gradeFromDB(r db.Grade) Grade {
	return Grade{
		ID:             PgUUIDToString(r.ID),
		StudentID:      PgUUIDToString(r.StudentID),
		SubjectID:      PgUUIDToString(r.SubjectID),
		Grade:          r.Grade,
		MaxGrade:       r.MaxGrade,
		AssessmentType: r.AssessmentType,
		AssessmentName: r.AssessmentName,
		DateAssigned:   PgDateToIso(r.DateAssigned),
	}
}

func (s *PgStore) ListGrades(ctx context.Context, owner string, filter GradeFilter) ([]GradeView, error) {
	rows, err := s.q.ListGrades(ctx, db.ListGradesParams{
		OwnerID:   ToPgUUID(owner),
		CourseID:  ToPgUUID(filter.CourseID),
		SubjectID: ToPgUUID(filter.SubjectID),
	})
	if err != nil {
		return nil, err
	}
	out := make([]GradeView, len(rows))
	for i, r := range rows {
		out[i] = GradeView{
			Grade:         gradeFromDB(r.Grade),
			StudentName:   r.StudentName,
			StudentNumber: r.StudentNumber,
			SubjectName:   r.SubjectName,
			SubjectCode:   r.SubjectCode,
			CourseID:      PgUUIDToString(r.CourseID),
		}
	}
	return out, nil
}

func (s *PgStore) FindGrades(ctx context.Context, owner string, studentIDs, subjectIDs []string) ([]Grade, error) {
	rows, err := s.q.FindGrades(ctx, db.FindGradesParams{
		StudentIDs: ToPgUUIDs(studentIDs),
		OwnerID:    ToPgUUID(owner),
		SubjectIDs: ToPgUUIDs(subjectIDs),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Grade, len(rows))
	for i, r := range rows {
		out[i] = gradeFromDB(r)
	}
	return out, nil
}

func (s *PgStore) InsertGrades(ctx context.Context, owner string, grades []Grade) ([]Grade, error) {
	params := make([]db.InsertGradeParams, len(grades))
	for i, g := range grades {
		params[i] = db.InsertGradeParams{
			OwnerID:        ToPgUUID(owner),
			StudentID:      ToPgUUID(g.StudentID),
			SubjectID:      ToPgUUID(g.SubjectID),
			Grade:          g.Grade,
			MaxGrade:       g.MaxGrade,
			AssessmentType: g.AssessmentType,
			AssessmentName: g.AssessmentName,
			DateAssigned:   ToPgIsoDate(g.DateAssigned),
		}
	}

	var out []Grade
	err := s.inTx(ctx, func(q *db.Queries) error {
		rows, err := q.InsertGrades(ctx, params)
		if err != nil {
			return ownership(err, "grades_student_id_fkey")
		}
		out = make([]Grade, len(rows))
		for i, r := range rows {
			out[i] = gradeFromDB(r)
		}
		return nil
	})
	return out, err
}

func (s *PgStore) UpdateGradeScore(ctx context.Context, owner, id string, grade, maxGrade float64) error {
	return affected(s.q.UpdateGradeScore(ctx, db.UpdateGradeScoreParams{
		ID:       ToPgUUID(id),
		OwnerID:  ToPgUUID(owner),
		Grade:    grade,
		MaxGrade: maxGrade,
	}))
}

func (s *PgStore) UpdateGrade(ctx context.Context, owner string, g Grade) error {
	return affected(s.q.UpdateGrade(ctx, db.UpdateGradeParams{
		ID:             ToPgUUID(g.ID),
		OwnerID:        ToPgUUID(owner),
		StudentID:      ToPgUUID(g.StudentID),
		SubjectID:      ToPgUUID(g.SubjectID),
		Grade:          g.Grade,
		MaxGrade:       g.MaxGrade,
		AssessmentType: g.AssessmentType,
		AssessmentName: g.AssessmentName,
		DateAssigned:   ToPgIsoDate(g.DateAssigned),
	}))
}

func (s *PgStore) DeleteGrade(ctx context.Context, owner, id string) error {
	return affected(s.q.DeleteGrade(ctx, ToPgUUID(id), ToPgUUID(owner)))
}

// ---- import runs

func (s *PgStore) RecordImportRun(ctx context.Context, run ImportRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}
	return s.q.InsertImportRun(ctx, db.ImportRun{
		ID:          ToPgUUID(run.ID),
		OwnerID:     ToPgUUID(run.OwnerID),
		Kind:        string(run.Kind),
		FileName:    run.FileName,
		State:       string(run.State),
		Inserted:    int32Of(run.Inserted),
		Updated:     int32Of(run.Updated),
		Unchanged:   int32Of(run.Unchanged),
		Failed:      int32Of(run.Failed),
		Error:       run.Error,
		ErrorReport: run.ErrorReport,
		StartedAt:   ToPgTimestamptz(run.StartedAt),
		FinishedAt:  ToPgTimestamptz(run.FinishedAt),
	})
}

func (s *PgStore) ListImportRuns(ctx context.Context, owner string, limit int) ([]ImportRun, error) {
	rows, err := s.q.ListImportRuns(ctx, db.ListImportRunsParams{
		OwnerID: ToPgUUID(owner),
		Limit:   int32Of(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]ImportRun, len(rows))
	for i, r := range rows {
		out[i] = ImportRun{
			ID:          PgUUIDToString(r.ID),
			OwnerID:     PgUUIDToString(r.OwnerID),
			Kind:        RecordKind(r.Kind),
			FileName:    r.FileName,
			State:       ImportState(r.State),
			Inserted:    int(r.Inserted),
			Updated:     int(r.Updated),
			Unchanged:   int(r.Unchanged),
			Failed:      int(r.Failed),
			Error:       r.Error,
			ErrorReport: r.ErrorReport,
			StartedAt:   r.StartedAt.Time,
			FinishedAt:  r.FinishedAt.Time,
		}
	}
	return out, nil
}

func (s *PgStore) PurgeImportRuns(ctx context.Context, before time.Time) (int64, error) {
	return s.q.PurgeImportRuns(ctx, ToPgTimestamptz(before))
}
