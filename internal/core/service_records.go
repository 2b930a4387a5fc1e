package core

import (
	"context"
	"fmt"
	"strings"
)

// SubjectInput is the body of a subject create or update.
type SubjectInput struct {
	Name     string `json:"name" validate:"required" label:"name"`
	Code     string `json:"code" validate:"required" label:"code"`
	CourseID string `json:"course_id" validate:"omitempty,uuid" label:"course"`
	Semester int    `json:"semester" validate:"omitempty,min=1" label:"semester"`
	Year     int    `json:"year" validate:"omitempty,min=1900,max=2999" label:"year"`
}

// GradeInput is the body of a grade create or update. StudentID and
// SubjectID are internal record IDs.
type GradeInput struct {
	StudentID      string   `json:"student_id" validate:"required,uuid" label:"student"`
	SubjectID      string   `json:"subject_id" validate:"required,uuid" label:"subject"`
	Grade          float64  `json:"grade" validate:"min=0" label:"grade"`
	MaxGrade       *float64 `json:"max_grade" validate:"omitempty,gt=0" label:"max grade"`
	AssessmentType string   `json:"assessment_type" label:"assessment type"`
	AssessmentName string   `json:"assessment_name" label:"assessment name"`
	DateAssigned   string   `json:"date_assigned" validate:"omitempty,isodate" label:"date"`
}

func (in SubjectInput) subject(n Normalizer) Subject {
	s := Subject{
		Name:     strings.TrimSpace(in.Name),
		Code:     strings.TrimSpace(in.Code),
		Semester: in.Semester,
		Year:     in.Year,
	}
	if in.CourseID != "" {
		id := in.CourseID
		s.CourseID = &id
	}
	if s.Semester == 0 {
		s.Semester = 1
	}
	if s.Year == 0 {
		s.Year = n.year()
	}
	return s
}

func (in GradeInput) grade(n Normalizer) Grade {
	g := Grade{
		StudentID:      in.StudentID,
		SubjectID:      in.SubjectID,
		Grade:          in.Grade,
		MaxGrade:       DefaultMaxGrade,
		AssessmentName: strings.TrimSpace(in.AssessmentName),
		AssessmentType: strings.TrimSpace(in.AssessmentType),
		DateAssigned:   in.DateAssigned,
	}
	if in.MaxGrade != nil {
		g.MaxGrade = *in.MaxGrade
	}
	if g.AssessmentName == "" {
		g.AssessmentName = defaultAssessmentName
	}
	if g.AssessmentType == "" {
		g.AssessmentType = assessmentType(g.AssessmentName)
	}
	if g.DateAssigned == "" {
		g.DateAssigned = n.today()
	}
	return g
}

// ListCourses returns the owner's courses.
func (s *Service) ListCourses(ctx context.Context, owner string) ([]Course, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return s.store.ListCourses(ctx, owner)
}

// DeleteCourse removes a course with its students and their grades.
func (s *Service) DeleteCourse(ctx context.Context, owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := s.store.DeleteCourse(ctx, owner, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

func (s *Service) ListSubjects(ctx context.Context, owner string) ([]Subject, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return s.store.ListSubjects(ctx, owner)
}

// CreateSubject validates and stores a new subject.
func (s *Service) CreateSubject(ctx context.Context, owner string, in SubjectInput) (*Subject, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	created, err := s.store.InsertSubjects(ctx, owner, []Subject{in.subject(s.importer.Normalizer)})
	if err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	return &created[0], nil
}

// UpdateSubject replaces every field of a subject.
func (s *Service) UpdateSubject(ctx context.Context, owner, id string, in SubjectInput) (*Subject, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	subject := in.subject(s.importer.Normalizer)
	subject.ID = id
	subject.OwnerID = owner
	if err := s.store.UpdateSubject(ctx, owner, subject); err != nil {
		return nil, fmt.Errorf("update subject: %w", err)
	}
	return &subject, nil
}

func (s *Service) DeleteSubject(ctx context.Context, owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := s.store.DeleteSubject(ctx, owner, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

// ListStudents returns the owner's students, narrowed by course, or by
// subject to the students holding a grade in it.
func (s *Service) ListStudents(ctx context.Context, owner string, filter GradeFilter) ([]Student, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return s.store.ListStudents(ctx, owner, filter)
}

func (s *Service) DeleteStudent(ctx context.Context, owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, owner, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// ListGrades returns the owner's grades joined with student and subject
// names, newest first.
func (s *Service) ListGrades(ctx context.Context, owner string, filter GradeFilter) ([]GradeView, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return s.store.ListGrades(ctx, owner, filter)
}

// CreateGrade validates and stores a single grade. Missing fields get the
// same defaults as imported rows.
func (s *Service) CreateGrade(ctx context.Context, owner string, in GradeInput) (*Grade, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	created, err := s.store.InsertGrades(ctx, owner, []Grade{in.grade(s.importer.Normalizer)})
	if err != nil {
		return nil, fmt.Errorf("create grade: %w", err)
	}
	return &created[0], nil
}

func (s *Service) UpdateGrade(ctx context.Context, owner, id string, in GradeInput) (*Grade, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	g := in.grade(s.importer.Normalizer)
	g.ID = id
	if err := s.store.UpdateGrade(ctx, owner, g); err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}
	return &g, nil
}

func (s *Service) DeleteGrade(ctx context.Context, owner, id string) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := s.store.DeleteGrade(ctx, owner, id); err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}
