package core

import (
	"context"
	"regexp"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/schema"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

const (
	defaultAssessmentName = "Avaliação"
	defaultAssessmentType = "Prova"
)

// "Prova 1" is of type "Prova".
var assessmentNumber = regexp.MustCompile(`\s+\d`)

type gradeRow struct {
	Grade
	StudentRef string `validate:"required" label:"student ID"`
	SubjectRef string `validate:"required" label:"subject"`
}

func (im *Importer) gradeFlow(owner string) flow[gradeRow] {
	n := im.Normalizer
	return flow[gradeRow]{
		kind: KindGrade,
		build: func(row tabular.RawRow) (gradeRow, string) {
			name := n.Text(cell(row, schema.AssessmentName))
			if name == "" {
				name = defaultAssessmentName
			}
			typ := n.Text(cell(row, schema.AssessmentType))
			if typ == "" {
				typ = assessmentType(name)
			}
			g := gradeRow{
				Grade: Grade{
					Grade:          n.Decimal(cell(row, schema.GradeValue), DefaultGrade),
					MaxGrade:       n.Decimal(cell(row, schema.MaxGrade), DefaultMaxGrade),
					AssessmentType: typ,
					AssessmentName: name,
					DateAssigned:   n.Date(cell(row, schema.DateAssigned)),
				},
				StudentRef: n.Text(cell(row, schema.StudentID)),
				SubjectRef: n.Text(cell(row, schema.GradeSubject)),
			}
			return g, describe(g.StudentRef, g.SubjectRef, g.AssessmentName)
		},
		prepare: func(ctx context.Context, batch []gradeRow) (func(*gradeRow) error, error) {
			subjects, err := im.Store.ListSubjects(ctx, owner)
			if err != nil {
				return nil, err
			}
			subjectLookup, err := NewLookup("subject", subjectCandidates(subjects), true)
			if err != nil {
				return nil, err
			}

			refs := make([]string, len(batch))
			for i, g := range batch {
				refs[i] = g.StudentRef
			}
			students, err := im.Store.FindStudentsByStudentID(ctx, owner, refs)
			if err != nil {
				return nil, err
			}
			studentLookup, _ := NewLookup("student", studentCandidates(students), false)

			return func(g *gradeRow) error {
				studentID, err := studentLookup.Resolve(g.StudentRef)
				if err != nil {
					return err
				}
				subjectID, err := subjectLookup.Resolve(g.SubjectRef)
				if err != nil {
					return err
				}
				g.StudentID, g.SubjectID = studentID, subjectID
				return nil
			}, nil
		},
		key: func(g gradeRow) string { return g.LogicalKey() },
		existing: func(ctx context.Context, batch []gradeRow) (map[string]gradeRow, error) {
			studentIDs := make([]string, 0, len(batch))
			subjectIDs := make([]string, 0, len(batch))
			for _, g := range batch {
				studentIDs = append(studentIDs, g.StudentID)
				subjectIDs = append(subjectIDs, g.SubjectID)
			}
			found, err := im.Store.FindGrades(ctx, owner, dedupe(studentIDs), dedupe(subjectIDs))
			if err != nil {
				return nil, err
			}
			m := make(map[string]gradeRow, len(found))
			for _, g := range found {
				m[g.LogicalKey()] = gradeRow{Grade: g}
			}
			return m, nil
		},
		insert: func(ctx context.Context, batch []gradeRow) error {
			grades := make([]Grade, len(batch))
			for i, g := range batch {
				grades[i] = g.Grade
			}
			_, err := im.Store.InsertGrades(ctx, owner, grades)
			return err
		},
		// Only the score is updated, and only when the grade changed.
		update: func(ctx context.Context, in, stored gradeRow) (bool, error) {
			if in.Grade.Grade == stored.Grade.Grade {
				return false, nil
			}
			return true, im.Store.UpdateGradeScore(ctx, owner, stored.ID, in.Grade.Grade, in.MaxGrade)
		},
	}
}

func assessmentType(name string) string {
	if t := strings.TrimSpace(assessmentNumber.Split(name, 2)[0]); t != "" {
		return t
	}
	return defaultAssessmentType
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
