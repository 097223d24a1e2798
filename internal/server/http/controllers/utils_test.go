package controllers

import (
	"reflect"
	"testing"
)

func TestParseLangs(t *testing.T) {
	cases := []struct {
		header string
		want   []string
	}{
		{"", nil},
		{"*", nil},
		{"en", []string{"en"}},
		{"en-US,en;q=0.9,ja;q=0.5", []string{"en", "ja"}},
		{"pt-BR, de;q=0.3", []string{"pt", "de"}},
		{"en, *;q=0.1", nil},
		{"!!!", nil},
	}
	for _, tc := range cases {
		if got := parseLangs(tc.header); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseLangs(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestParseLimit(t *testing.T) {
	for in, want := range map[string]int{"": 0, "20": 20, "-3": 0, "x": 0, "500": 500} {
		if got := parseLimit(in); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", in, got, want)
		}
	}
}
