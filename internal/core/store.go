package core

import (
	"context"
	"time"
)

// Store is the persistent store the pipeline and the CRUD operations run
// against. Every operation is scoped by the owning professor's ID; students
// and grades belong to an owner through their course.
//
// Insert* calls are all-or-nothing: on error no row of the batch is stored.
// On success they return the rows with their IDs filled in.
type Store interface {
	CourseStore
	SubjectStore
	StudentStore
	GradeStore
	RunStore
}

type CourseStore interface {
	ListCourses(ctx context.Context, owner string) ([]Course, error)
	// FindCoursesByCode matches codes case-insensitively.
	FindCoursesByCode(ctx context.Context, owner string, codes []string) ([]Course, error)
	InsertCourses(ctx context.Context, owner string, courses []Course) ([]Course, error)
	UpdateCourse(ctx context.Context, owner string, c Course) error
	DeleteCourse(ctx context.Context, owner, id string) error
}

type SubjectStore interface {
	ListSubjects(ctx context.Context, owner string) ([]Subject, error)
	FindSubjectsByCode(ctx context.Context, owner string, codes []string) ([]Subject, error)
	InsertSubjects(ctx context.Context, owner string, subjects []Subject) ([]Subject, error)
	UpdateSubject(ctx context.Context, owner string, s Subject) error
	DeleteSubject(ctx context.Context, owner, id string) error
}

type StudentStore interface {
	ListStudents(ctx context.Context, owner string, filter GradeFilter) ([]Student, error)
	// FindStudentsByStudentID matches institutional IDs case-insensitively.
	FindStudentsByStudentID(ctx context.Context, owner string, ids []string) ([]Student, error)
	InsertStudents(ctx context.Context, owner string, students []Student) ([]Student, error)
	UpdateStudent(ctx context.Context, owner string, s Student) error
	DeleteStudent(ctx context.Context, owner, id string) error
}

type GradeStore interface {
	ListGrades(ctx context.Context, owner string, filter GradeFilter) ([]GradeView, error)
	// FindGrades returns the stored grades of the given students in the
	// given subjects.
	FindGrades(ctx context.Context, owner string, studentIDs, subjectIDs []string) ([]Grade, error)
	InsertGrades(ctx context.Context, owner string, grades []Grade) ([]Grade, error)
	// UpdateGradeScore sets only the grade and max grade.
	UpdateGradeScore(ctx context.Context, owner, id string, grade, maxGrade float64) error
	UpdateGrade(ctx context.Context, owner string, g Grade) error
	DeleteGrade(ctx context.Context, owner, id string) error
}

type RunStore interface {
	RecordImportRun(ctx context.Context, run ImportRun) error
	ListImportRuns(ctx context.Context, owner string, limit int) ([]ImportRun, error)
	// PurgeImportRuns deletes runs of every owner finished before the cutoff.
	PurgeImportRuns(ctx context.Context, before time.Time) (int64, error)
}
