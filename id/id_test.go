package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Jamesmini007/AX2-Caption/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"ReservationID", id.NewReservationID, "rsv_"},
		{"EntryID", id.NewEntryID, "txn_"},
		{"ArtifactID", id.NewArtifactID, "vid_"},
		{"ExtensionID", id.NewExtensionID, "ext_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixJob)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixJob {
		t.Errorf("expected prefix %q, got %q", id.PrefixJob, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"JobID", id.NewJobID, id.ParseJobID},
		{"ReservationID", id.NewReservationID, id.ParseReservationID},
		{"EntryID", id.NewEntryID, id.ParseEntryID},
		{"ArtifactID", id.NewArtifactID, id.ParseArtifactID},
		{"ExtensionID", id.NewExtensionID, id.ParseExtensionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round trip mismatch: got %q, want %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	jobID := id.NewJobID()

	if _, err := id.ParseReservationID(jobID.String()); err == nil {
		t.Error("expected error parsing job ID as reservation ID")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Garbage", "not a typeid"},
		{"MissingSuffix", "job_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID

	if !nilID.IsNil() {
		t.Error("zero value should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID string should be empty, got %q", nilID.String())
	}
	if nilID.Prefix() != "" {
		t.Errorf("nil ID prefix should be empty, got %q", nilID.Prefix())
	}
}

func TestTextMarshaling(t *testing.T) {
	original := id.NewArtifactID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.String() != original.String() {
		t.Errorf("marshal round trip mismatch: got %q, want %q", decoded.String(), original.String())
	}
}

func TestSQLValueScan(t *testing.T) {
	original := id.NewReservationID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("sql round trip mismatch: got %q, want %q", scanned.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("scan nil failed: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("scanning nil should produce the nil ID")
	}
}

func TestKSortable(t *testing.T) {
	// Two IDs generated in sequence should sort in generation order
	// thanks to the UUIDv7 timestamp component.
	first := id.NewJobID()
	second := id.NewJobID()

	if first.String() > second.String() {
		t.Errorf("expected %q <= %q", first.String(), second.String())
	}
}
