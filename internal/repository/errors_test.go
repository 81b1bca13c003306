package repository

import (
	"errors"
	"testing"
)

func TestIsDuplicateKey(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate entry", errors.New("Error 1062 (23000): Duplicate entry '1' for key 'registration_settings.PRIMARY'"), true},
		{"duplicate email", errors.New("Error 1062 (23000): Duplicate entry 'ada@example.com' for key 'users.email'"), true},
		{"other mysql error", errors.New("Error 1213 (40001): Deadlock found when trying to get lock"), false},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDuplicateKey(tc.err); got != tc.want {
				t.Fatalf("isDuplicateKey(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
