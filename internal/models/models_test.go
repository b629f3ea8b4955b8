package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDeliveryTimeJSONNull(t *testing.T) {
	raw, err := json.Marshal(Unresolved())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "null" {
		t.Fatalf("unresolved marshals to %s, want null", raw)
	}

	var d DeliveryTime
	if err := json.Unmarshal([]byte("null"), &d); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if d.Resolved {
		t.Error("null must unmarshal as unresolved")
	}

	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	raw, err = json.Marshal(ResolvedAt(at))
	if err != nil {
		t.Fatalf("marshal resolved: %v", err)
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal resolved: %v", err)
	}
	if !d.Resolved || !d.At.Equal(at) {
		t.Errorf("round trip gave %+v, want resolved %v", d, at)
	}
}

func TestScheduleTypeKnown(t *testing.T) {
	for _, s := range append(append([]ScheduleType{ScheduleAbsolute}, DeathSchedules...), InactivitySchedules...) {
		if !s.Known() {
			t.Errorf("%s should be known", s)
		}
	}
	if ScheduleType("WHENEVER").Known() {
		t.Error("unrecognized schedule type reported as known")
	}
}
