package core

import (
	"context"

	"github.com/JonMunkholm/gradebook/internal/schema"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

type subjectRow struct {
	Subject
	// CourseRef is the optional course name or code.
	CourseRef string
}

func (im *Importer) subjectFlow(owner string) flow[subjectRow] {
	n := im.Normalizer
	return flow[subjectRow]{
		kind: KindSubject,
		build: func(row tabular.RawRow) (subjectRow, string) {
			s := subjectRow{
				Subject: Subject{
					OwnerID:  owner,
					Name:     n.Text(cell(row, schema.SubjectName)),
					Code:     n.Text(cell(row, schema.SubjectCode)),
					Semester: n.Count(cell(row, schema.SubjectSemester), 1),
					Year:     n.Count(cell(row, schema.SubjectYear), n.year()),
				},
				CourseRef: n.Text(cell(row, schema.SubjectCourse)),
			}
			return s, describe(s.Name, s.Code)
		},
		prepare: func(ctx context.Context, batch []subjectRow) (func(*subjectRow) error, error) {
			needsCourse := false
			for _, s := range batch {
				if s.CourseRef != "" {
					needsCourse = true
					break
				}
			}
			if !needsCourse {
				return func(*subjectRow) error { return nil }, nil
			}

			courses, err := im.Store.ListCourses(ctx, owner)
			if err != nil {
				return nil, err
			}
			lookup, err := NewLookup("course", courseCandidates(courses), true)
			if err != nil {
				return nil, err
			}
			return func(s *subjectRow) error {
				if s.CourseRef == "" {
					return nil
				}
				id, err := lookup.Resolve(s.CourseRef)
				if err != nil {
					return err
				}
				s.CourseID = &id
				return nil
			}, nil
		},
		key: func(s subjectRow) string { return naturalKey(s.Code) },
		existing: func(ctx context.Context, batch []subjectRow) (map[string]subjectRow, error) {
			codes := make([]string, len(batch))
			for i, s := range batch {
				codes[i] = s.Code
			}
			found, err := im.Store.FindSubjectsByCode(ctx, owner, codes)
			if err != nil {
				return nil, err
			}
			m := make(map[string]subjectRow, len(found))
			for _, s := range found {
				m[naturalKey(s.Code)] = subjectRow{Subject: s}
			}
			return m, nil
		},
		insert: func(ctx context.Context, batch []subjectRow) error {
			subjects := make([]Subject, len(batch))
			for i, s := range batch {
				subjects[i] = s.Subject
			}
			_, err := im.Store.InsertSubjects(ctx, owner, subjects)
			return err
		},
		update: func(ctx context.Context, in, stored subjectRow) (bool, error) {
			in.ID = stored.ID
			return true, im.Store.UpdateSubject(ctx, owner, in.Subject)
		},
	}
}
