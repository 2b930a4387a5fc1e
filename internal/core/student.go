package core

import (
	"context"

	"github.com/JonMunkholm/gradebook/internal/schema"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

type studentRow struct {
	Student
	CourseRef string `validate:"required" label:"course"`
}

func (im *Importer) studentFlow(owner string) flow[studentRow] {
	n := im.Normalizer
	return flow[studentRow]{
		kind: KindStudent,
		build: func(row tabular.RawRow) (studentRow, string) {
			s := studentRow{
				Student: Student{
					Name:          n.Text(cell(row, schema.StudentName)),
					StudentID:     n.Text(cell(row, schema.StudentID)),
					Email:         n.OptionalText(cell(row, schema.Email)),
					Gender:        n.Capitalize(cell(row, schema.Gender)),
					Ethnicity:     n.Capitalize(cell(row, schema.Ethnicity)),
					AverageIncome: n.OptionalDecimal(cell(row, schema.AverageIncome)),
				},
				CourseRef: n.Text(cell(row, schema.StudentCourse)),
			}
			return s, describe(s.Name, s.StudentID)
		},
		prepare: func(ctx context.Context, _ []studentRow) (func(*studentRow) error, error) {
			courses, err := im.Store.ListCourses(ctx, owner)
			if err != nil {
				return nil, err
			}
			lookup, err := NewLookup("course", courseCandidates(courses), true)
			if err != nil {
				return nil, err
			}
			return func(s *studentRow) error {
				id, err := lookup.Resolve(s.CourseRef)
				if err != nil {
					return err
				}
				s.CourseID = id
				return nil
			}, nil
		},
		key: func(s studentRow) string { return naturalKey(s.StudentID) },
		existing: func(ctx context.Context, batch []studentRow) (map[string]studentRow, error) {
			ids := make([]string, len(batch))
			for i, s := range batch {
				ids[i] = s.StudentID
			}
			found, err := im.Store.FindStudentsByStudentID(ctx, owner, ids)
			if err != nil {
				return nil, err
			}
			m := make(map[string]studentRow, len(found))
			for _, s := range found {
				m[naturalKey(s.StudentID)] = studentRow{Student: s}
			}
			return m, nil
		},
		insert: func(ctx context.Context, batch []studentRow) error {
			students := make([]Student, len(batch))
			for i, s := range batch {
				students[i] = s.Student
			}
			_, err := im.Store.InsertStudents(ctx, owner, students)
			return err
		},
		// The course is re-resolved on every import and always overwritten.
		update: func(ctx context.Context, in, stored studentRow) (bool, error) {
			in.ID = stored.ID
			in.StudentID = stored.StudentID
			return true, im.Store.UpdateStudent(ctx, owner, in.Student)
		},
	}
}
