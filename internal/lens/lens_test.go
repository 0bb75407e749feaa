package lens

import (
	"encoding/json"
	"testing"
)

func backAndFront() []Descriptor {
	return []Descriptor{
		{ID: "back", Name: "Back Cam", Position: Back, DeviceType: WideAngle},
		{ID: "front", Name: "Front Cam", Position: Front, DeviceType: WideAngle},
	}
}

func TestClassify_ExcludesFrontWhenRequested(t *testing.T) {
	lenses := Classify(backAndFront(), false)

	if len(lenses) != 1 {
		t.Fatalf("len = %d, want 1", len(lenses))
	}
	if lenses[0].ID != "back" {
		t.Errorf("id = %q, want \"back\"", lenses[0].ID)
	}
}

func TestClassify_IncludesFront(t *testing.T) {
	lenses := Classify(backAndFront(), true)

	if len(lenses) != 2 {
		t.Fatalf("len = %d, want 2", len(lenses))
	}
	if lenses[0].ID != "back" || lenses[1].ID != "front" {
		t.Errorf("order = [%s %s], want [back front]", lenses[0].ID, lenses[1].ID)
	}
}

func TestClassify_KeepsUnspecifiedAndDuplicates(t *testing.T) {
	devices := []Descriptor{
		{ID: "a", Position: Unspecified},
		{ID: "f", Position: Front},
		{ID: "a", Position: Back},
		{ID: "b", Position: Back},
	}

	lenses := Classify(devices, false)

	want := []string{"a", "a", "b"}
	if len(lenses) != len(want) {
		t.Fatalf("len = %d, want %d", len(lenses), len(want))
	}
	for i, id := range want {
		if lenses[i].ID != id {
			t.Errorf("lenses[%d].id = %q, want %q", i, lenses[i].ID, id)
		}
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	lenses := Classify(nil, true)
	if lenses == nil {
		t.Fatal("expected empty non-nil slice")
	}
	if len(lenses) != 0 {
		t.Errorf("len = %d, want 0", len(lenses))
	}
}

func TestClassify_RecordFields(t *testing.T) {
	lenses := Classify([]Descriptor{
		{ID: "tele", Name: "Telephoto", Position: Back, DeviceType: Telephoto},
	}, false)

	got := lenses[0]
	want := Record{ID: "tele", Name: "Telephoto", Position: "back", Category: "telephoto", SupportsFocus: true}
	if got != want {
		t.Errorf("record = %+v, want %+v", got, want)
	}
}

func TestDefaultCategory(t *testing.T) {
	cases := []struct {
		name string
		tag  DeviceType
		pos  Position
		want string
	}{
		{"wide_back", WideAngle, Back, "wide"},
		{"wide_front", WideAngle, Front, "front"},
		{"ultra_wide", UltraWide, Back, "ultraWide"},
		{"telephoto", Telephoto, Back, "telephoto"},
		{"true_depth", TrueDepth, Front, "front"},
		{"dual_back", Dual, Back, "unknown"},
		{"triple_back", Triple, Back, "unknown"},
		{"lidar_front", LiDARDepth, Front, "front"},
		{"empty_front", "", Front, "front"},
		{"empty_unspecified", "", Unspecified, "unknown"},
		{"unknown_tag_back", "externalUnknown", Back, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultCategory(tc.tag, tc.pos); got != tc.want {
				t.Errorf("DefaultCategory(%q, %v) = %q, want %q", tc.tag, tc.pos, got, tc.want)
			}
		})
	}
}

func TestDefaultCategory_Stable(t *testing.T) {
	devices := backAndFront()
	first := Classify(devices, true)
	for i := 0; i < 10; i++ {
		again := Classify(devices, true)
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("call %d: record %d changed: %+v != %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestTableCategory_OverridesAndFallback(t *testing.T) {
	policy := TableCategory(map[string]string{
		"builtInDualCamera": "dual",
		"usbWebcam":         "external",
		"ignored":           "",
	}, nil)

	cases := []struct {
		tag  DeviceType
		pos  Position
		want string
	}{
		{Dual, Back, "dual"},
		{"usbWebcam", Unspecified, "external"},
		{"ignored", Front, "front"},
		{WideAngle, Back, "wide"},
	}
	for _, tc := range cases {
		if got := policy(tc.tag, tc.pos); got != tc.want {
			t.Errorf("policy(%q, %v) = %q, want %q", tc.tag, tc.pos, got, tc.want)
		}
	}
}

func TestClassifier_CustomPolicies(t *testing.T) {
	c := Classifier{
		Category: func(DeviceType, Position) string { return "fixed" },
		Focus:    func(d Descriptor) bool { return d.ID != "no-af" },
	}

	lenses := c.Classify([]Descriptor{
		{ID: "af", Position: Back},
		{ID: "no-af", Position: Back},
	}, true)

	if lenses[0].Category != "fixed" || lenses[1].Category != "fixed" {
		t.Errorf("category policy not applied: %+v", lenses)
	}
	if !lenses[0].SupportsFocus || lenses[1].SupportsFocus {
		t.Errorf("focus policy not applied: %+v", lenses)
	}
}

func TestPosition_RoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want Position
	}{
		{"back", Back},
		{"FRONT", Front},
		{" front ", Front},
		{"unspecified", Unspecified},
		{"", Unspecified},
		{"sideways", Unspecified},
	}
	for _, tc := range cases {
		if got := ParsePosition(tc.in); got != tc.want {
			t.Errorf("ParsePosition(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, p := range []Position{Back, Front, Unspecified} {
		if ParsePosition(p.String()) != p {
			t.Errorf("ParsePosition(%q) did not round-trip", p.String())
		}
	}
}

func TestRecord_WireShape(t *testing.T) {
	data, err := json.Marshal(Record{ID: "x", Name: "X", Position: "back", Category: "wide", SupportsFocus: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"x","name":"X","position":"back","category":"wide","supportsFocus":true}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
