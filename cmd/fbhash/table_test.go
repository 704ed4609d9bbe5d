package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNumericColumns(t *testing.T) {
	rows := [][]string{
		{"1", "a-qwerty", "100.00000", ""},
		{"2", "b-pangram", "0.00000", ""},
		{"3", "c-sphinx", "n/a", ""},
	}
	got := numericColumns(4, rows)
	want := []bool{true, false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d numeric = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResultTable_Render(t *testing.T) {
	tbl := newResultTable("#", "Document", "Score")
	tbl.addRow("1", "a-qwerty", "100.00000")
	tbl.addRow("10", "short")
	tbl.setCaption("corpus %s", "abc123")

	var buf bytes.Buffer
	tbl.render(&buf)
	out := buf.String()

	for _, want := range []string{"Document", "a-qwerty", "100.00000", "corpus abc123"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// The "#" column is right-aligned, so the single digit is padded on the left.
	if !strings.Contains(out, "│  1 │") {
		t.Errorf("rank column not right-aligned:\n%s", out)
	}
}

func TestResultTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	newResultTable().render(&buf)
	if buf.Len() != 0 {
		t.Errorf("render with no headers wrote %q", buf.String())
	}
}
