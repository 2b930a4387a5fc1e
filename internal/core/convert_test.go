package core

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantStr   string
	}{
		{"simple", "hello", true, "hello"},
		{"trimmed", "  Ana  ", true, "Ana"},
		{"empty", "", false, ""},
		{"whitespace only", " \t ", false, ""},
		{"unicode", "Cálculo I", true, "Cálculo I"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgText(tt.input)
			if result.Valid != tt.wantValid {
				t.Errorf("ToPgText(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
			}
			if result.String != tt.wantStr {
				t.Errorf("ToPgText(%q).String = %q, want %q", tt.input, result.String, tt.wantStr)
			}
		})
	}
}

func TestOptionalTextRoundTrip(t *testing.T) {
	if got := PgTextToPtr(ToPgOptionalText(nil)); got != nil {
		t.Errorf("nil text came back as %q", *got)
	}
	in := "ana@example.com"
	got := PgTextToPtr(ToPgOptionalText(&in))
	if got == nil || *got != in {
		t.Errorf("PgTextToPtr = %v, want %q", got, in)
	}
	blank := "  "
	if got := ToPgOptionalText(&blank); got.Valid {
		t.Error("blank text should be NULL")
	}
}

func TestToPgFloat8(t *testing.T) {
	if ToPgFloat8(nil).Valid {
		t.Error("nil should be NULL")
	}
	v := 1250.5
	f := ToPgFloat8(&v)
	if !f.Valid || f.Float64 != v {
		t.Errorf("ToPgFloat8(%v) = %+v", v, f)
	}
	if got := PgFloat8ToPtr(f); got == nil || *got != v {
		t.Errorf("PgFloat8ToPtr = %v, want %v", got, v)
	}
	if PgFloat8ToPtr(pgtype.Float8{}) != nil {
		t.Error("NULL float should be nil")
	}
}

func TestToPgIsoDate(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      time.Time
	}{
		{"2024-01-01", true, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{" 2024-03-10 ", true, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10/03/2024", false, time.Time{}},
		{"", false, time.Time{}},
		{"2024-13-01", false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d := ToPgIsoDate(tt.input)
			if d.Valid != tt.wantValid {
				t.Fatalf("ToPgIsoDate(%q).Valid = %v, want %v", tt.input, d.Valid, tt.wantValid)
			}
			if tt.wantValid && !d.Time.Equal(tt.want) {
				t.Errorf("ToPgIsoDate(%q) = %v, want %v", tt.input, d.Time, tt.want)
			}
		})
	}

	if got := PgDateToIso(ToPgIsoDate("2024-02-29")); got != "2024-02-29" {
		t.Errorf("PgDateToIso = %q, want 2024-02-29", got)
	}
	if got := PgDateToIso(pgtype.Date{}); got != "" {
		t.Errorf("PgDateToIso(NULL) = %q, want empty", got)
	}
}

func TestToPgUUID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{"valid", "6f1c2a39-5d0e-4d8b-9a51-0b7db9e0c001", true},
		{"uppercase", "6F1C2A39-5D0E-4D8B-9A51-0B7DB9E0C001", true},
		{"empty", "", false},
		{"garbage", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ToPgUUID(tt.input)
			if u.Valid != tt.wantValid {
				t.Errorf("ToPgUUID(%q).Valid = %v, want %v", tt.input, u.Valid, tt.wantValid)
			}
		})
	}

	id := "6f1c2a39-5d0e-4d8b-9a51-0b7db9e0c001"
	if got := PgUUIDToString(ToPgUUID(id)); got != id {
		t.Errorf("PgUUIDToString = %q, want %q", got, id)
	}
	if got := ToPgUUIDs([]string{id, "bad", ""}); len(got) != 1 {
		t.Errorf("ToPgUUIDs kept %d values, want 1", len(got))
	}
	if PgUUIDToPtr(pgtype.UUID{}) != nil {
		t.Error("NULL uuid should be nil")
	}
}
