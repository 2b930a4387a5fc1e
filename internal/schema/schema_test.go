package schema

import (
	"strings"
	"testing"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Matrícula", "matricula"},
		{"  STUDENT_ID ", "studentid"},
		{"student-id", "studentid"},
		{"Renda Média", "rendamedia"},
		{"E-mail", "email"},
		{"Data_Inicio", "datainicio"},
		{"Pontuação", "pontuacao"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeLabel(tt.in); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldMatches(t *testing.T) {
	if !StudentID.Matches("Matrícula") {
		t.Error("StudentID should match Matrícula")
	}
	if !StudentID.Matches("student_id") {
		t.Error("StudentID should match student_id")
	}
	if StudentID.Matches("student") {
		t.Error("StudentID should not match student")
	}
	if !AssessmentName.In([]string{"Nota", "Tipo"}) {
		t.Error("AssessmentName should be found in labels containing Tipo")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   Kind
	}{
		{"course by code and semesters", []string{"code", "total_semesters"}, KindCourse},
		{"course portuguese", []string{"Nome", "Codigo", "Total_Semestre", "Data_Inicio"}, KindCourse},
		{"course by semesters only", []string{"name", "semesters"}, KindCourse},
		{"grade", []string{"Matricula", "Disciplina", "Nota", "Tipo"}, KindGrade},
		{"grade english", []string{"student_id", "subject", "grade", "max_grade", "date_assigned"}, KindGrade},
		{"student", []string{"Nome", "Matrícula", "E-mail", "Curso"}, KindStudent},
		{"student name only", []string{"name", "email"}, KindStudent},
		{"code with student id is not a course", []string{"code", "student_id", "name"}, KindStudent},
		{"grade without subject", []string{"student_id", "grade"}, KindUnrecognized},
		{"nothing known", []string{"foo", "bar"}, KindUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.labels)
			if got.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %q, want %q (rationale: %s)", tt.labels, got.Kind, tt.want, got.Rationale)
			}
			if got.Forced {
				t.Error("Forced = true, want false")
			}
		})
	}
}

func TestClassify_UnrecognizedRationale(t *testing.T) {
	got := Classify([]string{"student_id", "grade"})
	if got.Kind != KindUnrecognized {
		t.Fatalf("Kind = %q, want unrecognized", got.Kind)
	}
	for _, want := range []string{"courses need a code", "grades need subject", "students must not have grade"} {
		if !strings.Contains(got.Rationale, want) {
			t.Errorf("Rationale missing %q: %s", want, got.Rationale)
		}
	}
	if len(got.Matched) != 2 {
		t.Errorf("Matched = %v, want 2 signals", got.Matched)
	}
}

func TestForce(t *testing.T) {
	got := Force([]string{"foo"}, KindGrade)
	if got.Kind != KindGrade || !got.Forced {
		t.Fatalf("Force() = %+v, want forced grades", got)
	}
	if !strings.Contains(got.Rationale, "forced") {
		t.Errorf("Rationale = %q, want forced notice", got.Rationale)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"grades", KindGrade, true},
		{"Student", KindStudent, true},
		{"cursos", KindCourse, true},
		{"subjects", KindSubject, true},
		{"teachers", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseKind(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
