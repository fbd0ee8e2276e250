package trial

import "testing"

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		used      bool
		duration  float64
		languages int
		eligible  bool
		reason    IneligibleReason
	}{
		{"eligible short video", false, 300, 1, true, ""},
		{"eligible at duration limit", false, 600, 1, true, ""},
		{"already used", true, 300, 1, false, ReasonAlreadyUsed},
		{"too long", false, 601, 1, false, ReasonTooLong},
		{"too many languages", false, 300, 2, false, ReasonTooMany},
		{"usage checked before duration", true, 9999, 5, false, ReasonAlreadyUsed},
		{"duration checked before languages", false, 9999, 5, false, ReasonTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.used, tt.duration, tt.languages)
			if got.Eligible != tt.eligible {
				t.Errorf("Eligible = %v, want %v", got.Eligible, tt.eligible)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}
