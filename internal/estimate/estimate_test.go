package estimate

import (
	"errors"
	"testing"
)

func TestExpected(t *testing.T) {
	cases := []struct {
		name       string
		o, m, p    float64
		increment  float64
		want       float64
	}{
		{"simple triple", 1, 2, 4, 0.5, 2.0},
		{"rounds up to half", 2, 4, 8, 0.5, 4.5},
		{"whole hour increment", 2, 4, 8, 1, 4},
		{"zero task", 0, 0, 0, 0.5, 0},
		{"quarter increment", 1, 1, 2, 0.25, 1.25},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Expected(tc.o, tc.m, tc.p, tc.increment)
			if err != nil {
				t.Fatalf("Expected: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Expected(%g,%g,%g,%g) = %g, want %g", tc.o, tc.m, tc.p, tc.increment, got, tc.want)
			}
		})
	}
}

func TestExpectedRejectsNonPositiveIncrement(t *testing.T) {
	for _, increment := range []float64{0, -0.5} {
		if _, err := Expected(1, 2, 3, increment); !errors.Is(err, ErrInvalidIncrement) {
			t.Fatalf("increment %g: expected ErrInvalidIncrement, got %v", increment, err)
		}
	}
}

func TestRoundToIncrementHalfUp(t *testing.T) {
	// Exactly halfway between increments rounds up.
	if got := RoundToIncrement(2.25, 0.5); got != 2.5 {
		t.Fatalf("RoundToIncrement(2.25, 0.5) = %g, want 2.5", got)
	}
	if got := RoundToIncrement(2.24, 0.5); got != 2.0 {
		t.Fatalf("RoundToIncrement(2.24, 0.5) = %g, want 2.0", got)
	}
}

func TestRoundHoursTwoDecimals(t *testing.T) {
	if got := RoundHours(13.0 / 3.0); got != 4.33 {
		t.Fatalf("RoundHours = %g, want 4.33", got)
	}
	if got := RoundHours(2.5); got != 2.5 {
		t.Fatalf("RoundHours = %g, want 2.5", got)
	}
}
