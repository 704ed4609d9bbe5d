package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"serialization failure", fmt.Errorf("saving: %w", &pq.Error{Code: "40001"}), true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"syntax error", &pq.Error{Code: "42601"}, false},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"conn done", sql.ErrConnDone, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})) {
		t.Error("wrapped 23505 not detected")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation reported as unique violation")
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n  CREATE TABLE x (\n  id INT\n)"); got != "CREATE TABLE x (" {
		t.Errorf("firstLine = %q", got)
	}
}
