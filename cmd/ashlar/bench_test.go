package main

import (
	"testing"

	"github.com/samcharles93/ashlar/pkg/mxf"
)

func TestParseSizes(t *testing.T) {
	got, err := parseSizes(" 256, 1024 ,4096")
	if err != nil {
		t.Fatalf("parseSizes: %v", err)
	}
	want := []int{256, 1024, 4096}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	for _, bad := range []string{"", " , ", "12,-1", "12,abc"} {
		if _, err := parseSizes(bad); err == nil {
			t.Errorf("parseSizes(%q) accepted bad input", bad)
		}
	}
}

func TestFactorTriangle(t *testing.T) {
	cases := []struct {
		upper, clean bool
		want         string
	}{
		{false, false, mxf.TriangleFull},
		{true, false, mxf.TriangleFull},
		{false, true, mxf.TriangleLower},
		{true, true, mxf.TriangleUpper},
	}
	for _, tc := range cases {
		if got := factorTriangle(tc.upper, tc.clean); got != tc.want {
			t.Errorf("factorTriangle(%v, %v) = %q, want %q", tc.upper, tc.clean, got, tc.want)
		}
	}
}
