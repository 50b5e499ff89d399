package cmd

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]column{{Header: "Track"}, {Header: "Frames", Numeric: true}},
		[][]string{{"1", "120"}, {"12"}},
	)

	for _, want := range []string{"Track", "Frames", "120", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected table to contain %q, got:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "╭") {
		t.Errorf("Expected rounded style, got:\n%s", out)
	}
}

func TestRenderTable_NoColumns(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}); out != "" {
		t.Errorf("Expected empty output, got %q", out)
	}
}
