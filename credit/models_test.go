package credit

import (
	"testing"

	"github.com/Jamesmini007/AX2-Caption/types"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		languages int
		want      types.Credits
	}{
		{"zero duration, zero languages", 0, 0, 0},
		{"sub-unit duration floors to zero", 5.9, 0, 0},
		{"exact unit", 6, 0, 1},
		{"duration floors, never rounds", 278, 2, 66},
		{"one minute, one language", 60, 1, 20},
		{"ten minutes, three languages", 600, 3, 130},
		{"languages only", 0, 2, 20},
		{"negative duration clamps to zero", -10, 1, 10},
		{"negative languages clamp to zero", 60, -1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Required(tt.duration, tt.languages); got != tt.want {
				t.Errorf("Required(%v, %d) = %v, want %v", tt.duration, tt.languages, got, tt.want)
			}
		})
	}
}

func TestAffordableLanguages(t *testing.T) {
	tests := []struct {
		name     string
		balance  types.Credits
		duration float64
		want     int
	}{
		{"cannot cover base cost", 40, 300, 0},
		{"exactly base cost", 50, 300, 0},
		{"one language", 60, 300, 1},
		{"partial surcharge rounds down", 69, 300, 1},
		{"welcome grant covers five at five minutes", 100, 300, 5},
		{"zero balance", 0, 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AffordableLanguages(tt.balance, tt.duration); got != tt.want {
				t.Errorf("AffordableLanguages(%v, %v) = %d, want %d", tt.balance, tt.duration, got, tt.want)
			}
		})
	}
}

func TestBalancePools(t *testing.T) {
	b := &Balance{AccountID: "acct_1"}

	b.Apply(true, 100)
	b.Apply(false, 40)

	if got := b.Active(true); got != 100 {
		t.Errorf("signed-in pool = %v, want 100", got)
	}
	if got := b.Active(false); got != 40 {
		t.Errorf("anonymous pool = %v, want 40", got)
	}

	// Pools never bleed into each other.
	b.Apply(true, -100)
	if got := b.Active(false); got != 40 {
		t.Errorf("anonymous pool after signed-in spend = %v, want 40", got)
	}
}

func TestReservationStatusTerminal(t *testing.T) {
	if StatusReserved.Terminal() {
		t.Error("reserved must not be terminal")
	}
	if !StatusConfirmed.Terminal() {
		t.Error("confirmed must be terminal")
	}
	if !StatusRefunded.Terminal() {
		t.Error("refunded must be terminal")
	}
}
