package fleet

import (
	"encoding/json"
	"testing"
)

func TestVehicleCapacityNumber(t *testing.T) {
	v := &Vehicle{Capacity: json.RawMessage(`{"maxStops":12,"maxDistanceKm":80.5,"label":"van"}`)}

	if n, ok := v.CapacityNumber("maxStops"); !ok || n != 12 {
		t.Fatalf("maxStops = %v, %v", n, ok)
	}
	if n, ok := v.CapacityNumber("maxDistanceKm"); !ok || n != 80.5 {
		t.Fatalf("maxDistanceKm = %v, %v", n, ok)
	}
	if _, ok := v.CapacityNumber("label"); ok {
		t.Fatal("non-numeric attribute should report ok=false")
	}
	if _, ok := v.CapacityNumber("missing"); ok {
		t.Fatal("missing attribute should report ok=false")
	}

	var nilVehicle *Vehicle
	if _, ok := nilVehicle.CapacityNumber("maxStops"); ok {
		t.Fatal("nil vehicle should report ok=false")
	}
}

func TestVehicleSkillSet(t *testing.T) {
	v := &Vehicle{Skills: json.RawMessage(`["cold", " fragile ", "", 7]`)}
	got := v.SkillSet()
	want := []string{"cold", "fragile"}
	if len(got) != len(want) {
		t.Fatalf("skills = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("skills = %v, want %v", got, want)
		}
	}
}

func TestStopRequiredSkills(t *testing.T) {
	s := &Stop{TimeWindow: json.RawMessage(`{"requiredSkills":["cold","fragile"],"window":[28800,61200]}`)}
	got := s.RequiredSkills()
	if len(got) != 2 || got[0] != "cold" || got[1] != "fragile" {
		t.Fatalf("requiredSkills = %v", got)
	}

	empty := &Stop{}
	if empty.RequiredSkills() != nil {
		t.Fatal("stop without metadata should have no required skills")
	}
}

func TestDriverShiftWindow(t *testing.T) {
	start, end := 28800, 61200
	d := &Driver{ShiftStartSeconds: &start, ShiftEndSeconds: &end}
	if s, e, ok := d.ShiftWindow(); !ok || s != 28800 || e != 61200 {
		t.Fatalf("shift window = %d, %d, %v", s, e, ok)
	}

	partial := &Driver{ShiftStartSeconds: &start}
	if _, _, ok := partial.ShiftWindow(); ok {
		t.Fatal("partial window should report ok=false")
	}
}
