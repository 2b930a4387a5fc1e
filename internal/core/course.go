package core

import (
	"context"

	"github.com/JonMunkholm/gradebook/internal/schema"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

func (im *Importer) courseFlow(owner string) flow[Course] {
	n := im.Normalizer
	return flow[Course]{
		kind: KindCourse,
		build: func(row tabular.RawRow) (Course, string) {
			c := Course{
				OwnerID:        owner,
				Name:           n.Text(cell(row, schema.CourseName)),
				Code:           n.Text(cell(row, schema.CourseCode)),
				TotalSemesters: n.Count(cell(row, schema.TotalSemesters), DefaultTotalSemesters),
				StartDate:      n.Date(cell(row, schema.StartDate)),
			}
			return c, describe(c.Name, c.Code)
		},
		prepare: func(context.Context, []Course) (func(*Course) error, error) {
			return func(*Course) error { return nil }, nil
		},
		key: func(c Course) string { return naturalKey(c.Code) },
		existing: func(ctx context.Context, batch []Course) (map[string]Course, error) {
			codes := make([]string, len(batch))
			for i, c := range batch {
				codes[i] = c.Code
			}
			found, err := im.Store.FindCoursesByCode(ctx, owner, codes)
			if err != nil {
				return nil, err
			}
			return indexBy(found, func(c Course) string { return naturalKey(c.Code) }), nil
		},
		insert: func(ctx context.Context, batch []Course) error {
			_, err := im.Store.InsertCourses(ctx, owner, batch)
			return err
		},
		update: func(ctx context.Context, in, stored Course) (bool, error) {
			in.ID = stored.ID
			return true, im.Store.UpdateCourse(ctx, owner, in)
		},
	}
}

// cell returns the row's cell for f, or an empty cell.
func cell(row tabular.RawRow, f schema.Field) tabular.Cell {
	c, _ := row.Get(f)
	return c
}

func indexBy[T any](items []T, key func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[key(it)] = it
	}
	return m
}
