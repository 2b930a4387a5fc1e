package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. It enforces the same uniqueness rules as
// the database: course and subject codes per owner, student IDs globally.
// Inserts are all-or-nothing per call.
type MemStore struct {
	mu       sync.RWMutex
	courses  map[string]Course
	subjects map[string]Subject
	students map[string]Student
	grades   map[string]Grade
	runs     []ImportRun

	// Reject, when set, is consulted for every inserted or updated record.
	// A non-nil error fails the call as a store rejection would.
	Reject func(kind RecordKind, record any) error
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		courses:  map[string]Course{},
		subjects: map[string]Subject{},
		students: map[string]Student{},
		grades:   map[string]Grade{},
	}
}

func (m *MemStore) reject(kind RecordKind, record any) error {
	if m.Reject == nil {
		return nil
	}
	return m.Reject(kind, record)
}

func uniqueViolation(constraint string) error {
	return fmt.Errorf("duplicate key value violates unique constraint %q", constraint)
}

// ---- courses

func (m *MemStore) ListCourses(_ context.Context, owner string) ([]Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Course
	for _, c := range m.courses {
		if c.OwnerID == owner {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Course) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemStore) FindCoursesByCode(_ context.Context, owner string, codes []string) ([]Course, error) {
	want := keySet(codes)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Course
	for _, c := range m.courses {
		if _, ok := want[naturalKey(c.Code)]; ok && c.OwnerID == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) InsertCourses(_ context.Context, owner string, courses []Course) ([]Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := map[string]bool{}
	for _, c := range m.courses {
		if c.OwnerID == owner {
			taken[naturalKey(c.Code)] = true
		}
	}
	out := make([]Course, len(courses))
	for i, c := range courses {
		if err := m.reject(KindCourse, c); err != nil {
			return nil, err
		}
		k := naturalKey(c.Code)
		if taken[k] {
			return nil, uniqueViolation("courses_owner_code_key")
		}
		taken[k] = true
		c.ID = uuid.NewString()
		c.OwnerID = owner
		out[i] = c
	}
	for _, c := range out {
		m.courses[c.ID] = c
	}
	return out, nil
}

func (m *MemStore) UpdateCourse(_ context.Context, owner string, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.courses[c.ID]
	if !ok || cur.OwnerID != owner {
		return ErrNotFound
	}
	if err := m.reject(KindCourse, c); err != nil {
		return err
	}
	cur.Name, cur.TotalSemesters, cur.StartDate = c.Name, c.TotalSemesters, c.StartDate
	m.courses[c.ID] = cur
	return nil
}

// DeleteCourse cascades to the course's students and their grades, and
// detaches its subjects.
func (m *MemStore) DeleteCourse(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok || c.OwnerID != owner {
		return ErrNotFound
	}
	delete(m.courses, id)
	for sid, s := range m.students {
		if s.CourseID == id {
			m.deleteStudentLocked(sid)
		}
	}
	for sid, s := range m.subjects {
		if s.CourseID != nil && *s.CourseID == id {
			s.CourseID = nil
			m.subjects[sid] = s
		}
	}
	return nil
}

// ---- subjects

func (m *MemStore) ListSubjects(_ context.Context, owner string) ([]Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subject
	for _, s := range m.subjects {
		if s.OwnerID == owner {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Subject) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemStore) FindSubjectsByCode(_ context.Context, owner string, codes []string) ([]Subject, error) {
	want := keySet(codes)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Subject
	for _, s := range m.subjects {
		if _, ok := want[naturalKey(s.Code)]; ok && s.OwnerID == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) InsertSubjects(_ context.Context, owner string, subjects []Subject) ([]Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := map[string]bool{}
	for _, s := range m.subjects {
		if s.OwnerID == owner {
			taken[naturalKey(s.Code)] = true
		}
	}
	out := make([]Subject, len(subjects))
	for i, s := range subjects {
		if err := m.reject(KindSubject, s); err != nil {
			return nil, err
		}
		if err := m.checkCourseLocked(owner, s.CourseID); err != nil {
			return nil, err
		}
		k := naturalKey(s.Code)
		if taken[k] {
			return nil, uniqueViolation("subjects_owner_code_key")
		}
		taken[k] = true
		s.ID = uuid.NewString()
		s.OwnerID = owner
		out[i] = s
	}
	for _, s := range out {
		m.subjects[s.ID] = s
	}
	return out, nil
}

func (m *MemStore) UpdateSubject(_ context.Context, owner string, s Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.subjects[s.ID]
	if !ok || cur.OwnerID != owner {
		return ErrNotFound
	}
	if err := m.reject(KindSubject, s); err != nil {
		return err
	}
	if err := m.checkCourseLocked(owner, s.CourseID); err != nil {
		return err
	}
	if s.Code != "" && naturalKey(s.Code) != naturalKey(cur.Code) {
		for _, other := range m.subjects {
			if other.OwnerID == owner && other.ID != s.ID && naturalKey(other.Code) == naturalKey(s.Code) {
				return uniqueViolation("subjects_owner_code_key")
			}
		}
		cur.Code = s.Code
	}
	cur.Name, cur.Semester, cur.Year, cur.CourseID = s.Name, s.Semester, s.Year, s.CourseID
	m.subjects[s.ID] = cur
	return nil
}

func (m *MemStore) DeleteSubject(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok || s.OwnerID != owner {
		return ErrNotFound
	}
	delete(m.subjects, id)
	for gid, g := range m.grades {
		if g.SubjectID == id {
			delete(m.grades, gid)
		}
	}
	return nil
}

func (m *MemStore) checkCourseLocked(owner string, courseID *string) error {
	if courseID == nil {
		return nil
	}
	if c, ok := m.courses[*courseID]; !ok || c.OwnerID != owner {
		return fmt.Errorf("insert or update violates foreign key constraint %q", "subjects_course_id_fkey")
	}
	return nil
}

// ---- students

func (m *MemStore) ownsStudentLocked(owner string, s Student) bool {
	c, ok := m.courses[s.CourseID]
	return ok && c.OwnerID == owner
}

func (m *MemStore) ListStudents(_ context.Context, owner string, filter GradeFilter) ([]Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Student
	for _, s := range m.students {
		if !m.ownsStudentLocked(owner, s) {
			continue
		}
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		if filter.SubjectID != "" && !m.hasGradeInLocked(s.ID, filter.SubjectID) {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Student) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemStore) hasGradeInLocked(studentID, subjectID string) bool {
	for _, g := range m.grades {
		if g.StudentID == studentID && g.SubjectID == subjectID {
			return true
		}
	}
	return false
}

func (m *MemStore) FindStudentsByStudentID(_ context.Context, owner string, ids []string) ([]Student, error) {
	want := keySet(ids)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Student
	for _, s := range m.students {
		if _, ok := want[naturalKey(s.StudentID)]; ok && m.ownsStudentLocked(owner, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) InsertStudents(_ context.Context, owner string, students []Student) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := map[string]bool{}
	for _, s := range m.students {
		taken[naturalKey(s.StudentID)] = true
	}
	out := make([]Student, len(students))
	for i, s := range students {
		if err := m.reject(KindStudent, s); err != nil {
			return nil, err
		}
		if !m.ownsStudentLocked(owner, s) {
			return nil, fmt.Errorf("insert or update violates foreign key constraint %q", "students_course_id_fkey")
		}
		k := naturalKey(s.StudentID)
		if taken[k] {
			return nil, uniqueViolation("students_student_id_key")
		}
		taken[k] = true
		s.ID = uuid.NewString()
		out[i] = s
	}
	for _, s := range out {
		m.students[s.ID] = s
	}
	return out, nil
}

func (m *MemStore) UpdateStudent(_ context.Context, owner string, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.students[s.ID]
	if !ok || !m.ownsStudentLocked(owner, cur) {
		return ErrNotFound
	}
	if err := m.reject(KindStudent, s); err != nil {
		return err
	}
	if !m.ownsStudentLocked(owner, s) {
		return fmt.Errorf("insert or update violates foreign key constraint %q", "students_course_id_fkey")
	}
	s.StudentID = cur.StudentID
	m.students[s.ID] = s
	return nil
}

func (m *MemStore) DeleteStudent(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok || !m.ownsStudentLocked(owner, s) {
		return ErrNotFound
	}
	m.deleteStudentLocked(id)
	return nil
}

func (m *MemStore) deleteStudentLocked(id string) {
	delete(m.students, id)
	for gid, g := range m.grades {
		if g.StudentID == id {
			delete(m.grades, gid)
		}
	}
}

// ---- grades

func (m *MemStore) ownsGradeLocked(owner string, g Grade) bool {
	s, ok := m.students[g.StudentID]
	if !ok || !m.ownsStudentLocked(owner, s) {
		return false
	}
	sub, ok := m.subjects[g.SubjectID]
	return ok && sub.OwnerID == owner
}

func (m *MemStore) ListGrades(_ context.Context, owner string, filter GradeFilter) ([]GradeView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []GradeView
	for _, g := range m.grades {
		if !m.ownsGradeLocked(owner, g) {
			continue
		}
		st, sub := m.students[g.StudentID], m.subjects[g.SubjectID]
		if filter.CourseID != "" && st.CourseID != filter.CourseID {
			continue
		}
		if filter.SubjectID != "" && g.SubjectID != filter.SubjectID {
			continue
		}
		out = append(out, GradeView{
			Grade:         g,
			StudentName:   st.Name,
			StudentNumber: st.StudentID,
			SubjectName:   sub.Name,
			SubjectCode:   sub.Code,
			CourseID:      st.CourseID,
		})
	}
	slices.SortFunc(out, func(a, b GradeView) int {
		return cmp.Or(
			cmp.Compare(b.DateAssigned, a.DateAssigned),
			cmp.Compare(a.StudentName, b.StudentName),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (m *MemStore) FindGrades(_ context.Context, owner string, studentIDs, subjectIDs []string) ([]Grade, error) {
	students, subjects := idSet(studentIDs), idSet(subjectIDs)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Grade
	for _, g := range m.grades {
		_, okStudent := students[g.StudentID]
		_, okSubject := subjects[g.SubjectID]
		if okStudent && okSubject && m.ownsGradeLocked(owner, g) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemStore) InsertGrades(_ context.Context, owner string, grades []Grade) ([]Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Grade, len(grades))
	for i, g := range grades {
		if err := m.reject(KindGrade, g); err != nil {
			return nil, err
		}
		if !m.ownsGradeLocked(owner, g) {
			return nil, fmt.Errorf("insert or update violates foreign key constraint %q", "grades_student_id_fkey")
		}
		g.ID = uuid.NewString()
		out[i] = g
	}
	for _, g := range out {
		m.grades[g.ID] = g
	}
	return out, nil
}

func (m *MemStore) UpdateGradeScore(_ context.Context, owner, id string, grade, maxGrade float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.grades[id]
	if !ok || !m.ownsGradeLocked(owner, cur) {
		return ErrNotFound
	}
	next := cur
	next.Grade, next.MaxGrade = grade, maxGrade
	if err := m.reject(KindGrade, next); err != nil {
		return err
	}
	m.grades[id] = next
	return nil
}

func (m *MemStore) UpdateGrade(_ context.Context, owner string, g Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.grades[g.ID]
	if !ok || !m.ownsGradeLocked(owner, cur) {
		return ErrNotFound
	}
	if err := m.reject(KindGrade, g); err != nil {
		return err
	}
	if !m.ownsGradeLocked(owner, g) {
		return fmt.Errorf("insert or update violates foreign key constraint %q", "grades_student_id_fkey")
	}
	m.grades[g.ID] = g
	return nil
}

func (m *MemStore) DeleteGrade(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grades[id]
	if !ok || !m.ownsGradeLocked(owner, g) {
		return ErrNotFound
	}
	delete(m.grades, id)
	return nil
}

// ---- import runs

func (m *MemStore) RecordImportRun(_ context.Context, run ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	m.runs = append(m.runs, run)
	return nil
}

// ListImportRuns returns the owner's runs, newest first.
func (m *MemStore) ListImportRuns(_ context.Context, owner string, limit int) ([]ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ImportRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].OwnerID != owner {
			continue
		}
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) PurgeImportRuns(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.runs[:0]
	for _, r := range m.runs {
		if r.FinishedAt.After(before) || r.FinishedAt.Equal(before) {
			kept = append(kept, r)
		}
	}
	purged := int64(len(m.runs) - len(kept))
	m.runs = kept
	return purged, nil
}

func keySet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[naturalKey(v)] = struct{}{}
	}
	return m
}

func idSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}
