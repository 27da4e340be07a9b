package derive

import "testing"

func TestPercentage(t *testing.T) {
	tests := []struct {
		name   string
		marks  string
		total  string
		want   string
		wantOK bool
	}{
		{name: "half", marks: "45", total: "90", want: "50.00", wantOK: true},
		{name: "full", marks: "500", total: "500", want: "100.00", wantOK: true},
		{name: "thirds round", marks: "1", total: "3", want: "33.33", wantOK: true},
		{name: "two thirds round up", marks: "2", total: "3", want: "66.67", wantOK: true},
		{name: "decimal inputs", marks: "7.5", total: "10", want: "75.00", wantOK: true},
		{name: "whitespace", marks: " 45 ", total: "90\t", want: "50.00", wantOK: true},
		{name: "zero marks", marks: "0", total: "90", want: "0.00", wantOK: true},
		{name: "zero total", marks: "45", total: "0", wantOK: false},
		{name: "zero over zero", marks: "0", total: "0", wantOK: false},
		{name: "missing marks", marks: "", total: "90", wantOK: false},
		{name: "missing total", marks: "45", total: "", wantOK: false},
		{name: "negative marks", marks: "-1", total: "90", wantOK: false},
		{name: "not a number", marks: "abc", total: "90", wantOK: false},
		{name: "infinity", marks: "Inf", total: "90", wantOK: false},
		{name: "nan", marks: "NaN", total: "90", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percentage(tt.marks, tt.total)
			if ok != tt.wantOK {
				t.Fatalf("Percentage(%q, %q) ok = %v, want %v", tt.marks, tt.total, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Percentage(%q, %q) = %q, want %q", tt.marks, tt.total, got, tt.want)
			}
		})
	}
}
