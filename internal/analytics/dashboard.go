// Package analytics turns students and grades into the series the professor
// dashboard charts.
package analytics

import (
	"cmp"
	"math"
	"slices"

	"github.com/JonMunkholm/gradebook/internal/core"
)

const (
	untyped     = "Untyped"
	notInformed = "Not informed"
)

// Bucket is a labelled count, e.g. the grades between 6 and 8.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type TypeAverage struct {
	AssessmentType string  `json:"assessment_type"`
	Average        float64 `json:"average"`
	Count          int     `json:"count"`
}

// TypePoints is how many points an assessment type is worth in total.
type TypePoints struct {
	AssessmentType string  `json:"assessment_type"`
	TotalPoints    float64 `json:"total_points"`
	Count          int     `json:"count"`
}

type Dashboard struct {
	TotalStudents int     `json:"total_students"`
	TotalGrades   int     `json:"total_grades"`
	AverageGrade  float64 `json:"average_grade"`
	// GradedStudents counts the distinct students holding at least one grade.
	GradedStudents int `json:"graded_students"`

	GradeDistribution []Bucket      `json:"grade_distribution"`
	ByAssessmentType  []TypeAverage `json:"by_assessment_type"`
	Gender            []Bucket      `json:"gender"`
	Ethnicity         []Bucket      `json:"ethnicity"`
	Income            []Bucket      `json:"income"`
	PointDistribution []TypePoints  `json:"point_distribution"`
}

type band struct {
	label    string
	min, max float64
}

var gradeBands = []band{
	{"0-2", 0, 2},
	{"2-4", 2, 4},
	{"4-6", 4, 6},
	{"6-8", 6, 8},
	{"8-10", 8, 10},
}

var incomeBands = []band{
	{"Up to 1000", 0, 1000},
	{"1000-2000", 1000, 2000},
	{"2000-3000", 2000, 3000},
	{"3000-5000", 3000, 5000},
	{"Above 5000", 5000, math.Inf(1)},
}

// Build computes the dashboard. The caller filters students and grades by
// course or subject beforehand.
func Build(students []core.Student, grades []core.GradeView) Dashboard {
	d := Dashboard{
		TotalStudents:     len(students),
		TotalGrades:       len(grades),
		GradeDistribution: gradeDistribution(grades),
		ByAssessmentType:  byAssessmentType(grades),
		Gender:            countBy(students, func(s core.Student) *string { return s.Gender }),
		Ethnicity:         countBy(students, func(s core.Student) *string { return s.Ethnicity }),
		Income:            incomeDistribution(students),
		PointDistribution: pointDistribution(grades),
	}

	graded := make(map[string]struct{})
	var sum float64
	for _, g := range grades {
		sum += g.Grade.Grade
		graded[g.StudentID] = struct{}{}
	}
	d.GradedStudents = len(graded)
	if len(grades) > 0 {
		d.AverageGrade = round2(sum / float64(len(grades)))
	}
	return d
}

// gradeDistribution counts grades per band. Bands are half-open except the
// last, which includes the maximum grade.
func gradeDistribution(grades []core.GradeView) []Bucket {
	out := make([]Bucket, len(gradeBands))
	for i, b := range gradeBands {
		out[i].Label = b.label
	}
	last := len(gradeBands) - 1
	for _, g := range grades {
		v := g.Grade.Grade
		for i, b := range gradeBands {
			if v >= b.min && (v < b.max || (i == last && v == b.max)) {
				out[i].Count++
				break
			}
		}
	}
	return out
}

func incomeDistribution(students []core.Student) []Bucket {
	out := make([]Bucket, len(incomeBands))
	for i, b := range incomeBands {
		out[i].Label = b.label
	}
	for _, s := range students {
		if s.AverageIncome == nil {
			continue
		}
		for i, b := range incomeBands {
			if *s.AverageIncome >= b.min && *s.AverageIncome < b.max {
				out[i].Count++
				break
			}
		}
	}
	return out
}

func byAssessmentType(grades []core.GradeView) []TypeAverage {
	sums := map[string]*TypeAverage{}
	totals := map[string]float64{}
	for _, g := range grades {
		t := typeOf(g)
		if sums[t] == nil {
			sums[t] = &TypeAverage{AssessmentType: t}
		}
		sums[t].Count++
		totals[t] += g.Grade.Grade
	}

	out := make([]TypeAverage, 0, len(sums))
	for t, a := range sums {
		a.Average = round2(totals[t] / float64(a.Count))
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b TypeAverage) int { return cmp.Compare(a.AssessmentType, b.AssessmentType) })
	return out
}

func pointDistribution(grades []core.GradeView) []TypePoints {
	points := map[string]*TypePoints{}
	for _, g := range grades {
		t := typeOf(g)
		if points[t] == nil {
			points[t] = &TypePoints{AssessmentType: t}
		}
		points[t].TotalPoints += g.MaxGrade
		points[t].Count++
	}

	out := make([]TypePoints, 0, len(points))
	for _, p := range points {
		p.TotalPoints = round2(p.TotalPoints)
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b TypePoints) int {
		return cmp.Or(cmp.Compare(b.TotalPoints, a.TotalPoints), cmp.Compare(a.AssessmentType, b.AssessmentType))
	})
	return out
}

// countBy groups students by an optional attribute, largest group first.
func countBy(students []core.Student, attr func(core.Student) *string) []Bucket {
	counts := map[string]int{}
	for _, s := range students {
		label := notInformed
		if v := attr(s); v != nil && *v != "" {
			label = *v
		}
		counts[label]++
	}

	out := make([]Bucket, 0, len(counts))
	for label, n := range counts {
		out = append(out, Bucket{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b Bucket) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Label, b.Label))
	})
	return out
}

func typeOf(g core.GradeView) string {
	if g.AssessmentType == "" {
		return untyped
	}
	return g.AssessmentType
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
