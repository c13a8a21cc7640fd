package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"120", 120, true},
		{"$120", 120, true},
		{"-45", -45, true},
		{"$-45", -45, true},
		{"+7", 7, true},
		{" 30 ", 30, true},
		{"0", 0, true},
		{"12.5", 0, false},
		{"12,5", 0, false},
		{"abc", 0, false},
		{"$", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false}, // overflow
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in  int64
		out string
	}{
		{120, "$120"},
		{0, "$0"},
		{-12, "$-12"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.out {
			t.Fatalf("%d expected %q, got %q", tc.in, tc.out, got)
		}
	}
}
