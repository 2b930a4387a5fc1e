package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gradebook/internal/core"
)

func ptr[T any](v T) *T { return &v }

func grade(student string, value, max float64, typ string) core.GradeView {
	return core.GradeView{Grade: core.Grade{StudentID: student, Grade: value, MaxGrade: max, AssessmentType: typ}}
}

func TestBuild_Empty(t *testing.T) {
	d := Build(nil, nil)

	assert.Equal(t, 0, d.TotalGrades)
	assert.Equal(t, 0.0, d.AverageGrade)
	require.Len(t, d.GradeDistribution, 5)
	for _, b := range d.GradeDistribution {
		assert.Zero(t, b.Count, b.Label)
	}
	assert.Empty(t, d.ByAssessmentType)
	assert.Empty(t, d.Gender)
}

func TestGradeDistribution(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "0-2"},
		{1.99, "0-2"},
		{2, "2-4"},
		{7.5, "6-8"},
		{8, "8-10"},
		{10, "8-10"},
	}

	for _, tt := range tests {
		dist := gradeDistribution([]core.GradeView{grade("s", tt.value, 10, "Prova")})
		for _, b := range dist {
			want := 0
			if b.Label == tt.want {
				want = 1
			}
			if b.Count != want {
				t.Errorf("grade %v: bucket %s = %d, want %d", tt.value, b.Label, b.Count, want)
			}
		}
	}
}

func TestBuild_Averages(t *testing.T) {
	grades := []core.GradeView{
		grade("a", 7.5, 10, "Prova"),
		grade("a", 9, 10, "Prova"),
		grade("b", 6, 5, "Trabalho"),
		grade("b", 5, 2, ""),
	}

	d := Build(nil, grades)

	assert.Equal(t, 4, d.TotalGrades)
	assert.Equal(t, 2, d.GradedStudents)
	assert.Equal(t, 6.88, d.AverageGrade)
	assert.Equal(t, []TypeAverage{
		{AssessmentType: "Prova", Average: 8.25, Count: 2},
		{AssessmentType: "Trabalho", Average: 6, Count: 1},
		{AssessmentType: "Untyped", Average: 5, Count: 1},
	}, d.ByAssessmentType)
	assert.Equal(t, []TypePoints{
		{AssessmentType: "Prova", TotalPoints: 20, Count: 2},
		{AssessmentType: "Trabalho", TotalPoints: 5, Count: 1},
		{AssessmentType: "Untyped", TotalPoints: 2, Count: 1},
	}, d.PointDistribution)
}

func TestBuild_Demographics(t *testing.T) {
	students := []core.Student{
		{Gender: ptr("Feminino"), Ethnicity: ptr("Parda"), AverageIncome: ptr(800.0)},
		{Gender: ptr("Feminino"), AverageIncome: ptr(1000.0)},
		{Gender: ptr("Masculino"), AverageIncome: ptr(7200.0)},
		{},
	}

	d := Build(students, nil)

	assert.Equal(t, 4, d.TotalStudents)
	assert.Equal(t, []Bucket{
		{Label: "Feminino", Count: 2},
		{Label: "Masculino", Count: 1},
		{Label: "Not informed", Count: 1},
	}, d.Gender)
	assert.Equal(t, []Bucket{
		{Label: "Not informed", Count: 3},
		{Label: "Parda", Count: 1},
	}, d.Ethnicity)
	assert.Equal(t, []Bucket{
		{Label: "Up to 1000", Count: 1},
		{Label: "1000-2000", Count: 1},
		{Label: "2000-3000", Count: 0},
		{Label: "3000-5000", Count: 0},
		{Label: "Above 5000", Count: 1},
	}, d.Income)
}
