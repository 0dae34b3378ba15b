package main

import "testing"

func TestParseMonths(t *testing.T) {
	tests := []struct {
		in      string
		first   int
		last    int
		wantErr bool
	}{
		{in: "1", first: 1, last: 1},
		{in: "12", first: 12, last: 12},
		{in: "1-12", first: 1, last: 12},
		{in: " 3 - 6 ", first: 3, last: 6},
		{in: "0", wantErr: true},
		{in: "13", wantErr: true},
		{in: "6-3", wantErr: true},
		{in: "x", wantErr: true},
		{in: "1-x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		first, last, err := parseMonths(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMonths(%q) error = nil, want non-nil", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMonths(%q) error = %v", tt.in, err)
			continue
		}
		if first != tt.first || last != tt.last {
			t.Errorf("parseMonths(%q) = %d, %d; want %d, %d", tt.in, first, last, tt.first, tt.last)
		}
	}
}
