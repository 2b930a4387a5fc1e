package core

import (
	"errors"
	"testing"
)

func TestLookupResolvesNameAndCode(t *testing.T) {
	l, err := NewLookup("subject", []Candidate{
		{ID: "s1", Name: "Cálculo I", Code: "MAT101"},
		{ID: "s2", Name: "Física", Code: "FIS100"},
	}, true)
	if err != nil {
		t.Fatalf("NewLookup() error = %v", err)
	}

	tests := []struct {
		value string
		want  string
	}{
		{"MAT101", "s1"},
		{"  mat101 ", "s1"},
		{"cálculo i", "s1"},
		{"FÍSICA", "s2"},
	}
	for _, tt := range tests {
		got, err := l.Resolve(tt.value)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestLookupMissReportsValue(t *testing.T) {
	l, _ := NewLookup("student", studentCandidates([]Student{{ID: "u1", StudentID: "2024001"}}), false)

	_, err := l.Resolve(" X999 ")
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
	}
	if got, want := err.Error(), `student not found: "X999"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLookupCodeWinsOverName(t *testing.T) {
	l, _ := NewLookup("course", []Candidate{
		{ID: "c1", Name: "ADS", Code: "TADS"},
		{ID: "c2", Name: "Sistemas", Code: "ADS"},
	}, true)

	if got, _ := l.Resolve("ads"); got != "c2" {
		t.Errorf("Resolve(ads) = %q, want c2", got)
	}
}

func TestLookupPrecondition(t *testing.T) {
	_, err := NewLookup("subject", nil, true)
	if !IsPrecondition(err) {
		t.Fatalf("NewLookup(nil, required) error = %v, want PreconditionError", err)
	}
	if got := MapError(err).Code; got != "IMP003" {
		t.Errorf("MapError code = %q, want IMP003", got)
	}

	l, err := NewLookup("student", nil, false)
	if err != nil || l.Len() != 0 {
		t.Errorf("NewLookup(nil, optional) = %v, %v; want empty lookup", l, err)
	}
}
