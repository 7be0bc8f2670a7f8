package theme

import (
	"testing"
)

func TestIsHexColor(t *testing.T) {
	testCases := []struct {
		value string
		want  bool
	}{
		{"#FFAA00", true},
		{"#ffaa00", true},
		{"#80FFAA00", true},
		{"#FFF", false},
		{"#GGAA00", false},
		{"FFAA00", false},
		{"icon.png", false},
		{"", false},
	}
	for _, tc := range testCases {
		if got := IsHexColor(tc.value); got != tc.want {
			t.Errorf("IsHexColor(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestParseSpecRejectsNonObjects(t *testing.T) {
	for _, data := range []string{"[1,2,3]", `"hello"`, "42", "", "   \n"} {
		if _, err := ParseSpec([]byte(data)); err == nil {
			t.Errorf("ParseSpec(%q) succeeded, want malformed-spec error", data)
		}
	}
	if _, err := ParseSpec([]byte(`{"theme_info":{"title":"Noir"}}`)); err != nil {
		t.Fatalf("ParseSpec(valid) failed: %v", err)
	}
}

func specFixture() Spec {
	return Spec{
		ThemeInfo:        &ThemeInfo{Title: "Noir"},
		ThemeCover:       "cover.png",
		DesktopWallpaper: "wall.jpg",
		FontFamily:       "pixel.ttf",
		ItemConfig: map[string]any{
			"itemBackground": "item_bg.png",
			"itemTextColor":  "#FFFFFF",
		},
		StatusConfig: map[string]any{
			"battery":      []any{"bat0.png", "bat1.png", "bat2.png", "bat3.png"},
			"signalColor":  "#80FF00FF",
			"chargingIcon": "charging.png",
		},
		SettingConfig: map[string]any{
			"shutdown": "shutdown.png",
		},
	}
}

func TestReferencedFiles(t *testing.T) {
	spec := specFixture()
	refs := spec.ReferencedFiles()

	want := map[string]string{
		"themeCover":                "cover.png",
		"desktopWallpaper":          "wall.jpg",
		"fontFamily":                "pixel.ttf",
		"itemConfig.itemBackground": "item_bg.png",
		"statusConfig.battery[0]":   "bat0.png",
		"statusConfig.battery[1]":   "bat1.png",
		"statusConfig.battery[2]":   "bat2.png",
		"statusConfig.battery[3]":   "bat3.png",
		"statusConfig.chargingIcon": "charging.png",
		"settingConfig.shutdown":    "shutdown.png",
	}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d: %+v", len(refs), len(want), refs)
	}
	for _, ref := range refs {
		if want[ref.ConfigKey] != ref.FileName {
			t.Errorf("key %s resolved to %q, want %q", ref.ConfigKey, ref.FileName, want[ref.ConfigKey])
		}
	}

	// Colors must never be collected as assets.
	for _, ref := range refs {
		if ref.ConfigKey == "itemConfig.itemTextColor" || ref.ConfigKey == "statusConfig.signalColor" {
			t.Errorf("color key %s collected as asset", ref.ConfigKey)
		}
	}

	// Deterministic order: sorted by config key.
	for i := 1; i < len(refs); i++ {
		if refs[i-1].ConfigKey > refs[i].ConfigKey {
			t.Fatalf("refs not sorted: %s > %s", refs[i-1].ConfigKey, refs[i].ConfigKey)
		}
	}
}

func TestReferencedFilesKinds(t *testing.T) {
	spec := specFixture()
	for _, ref := range spec.ReferencedFiles() {
		wantKind := RefImage
		if ref.ConfigKey == "fontFamily" {
			wantKind = RefFont
		}
		if ref.Kind != wantKind {
			t.Errorf("key %s: kind %v, want %v", ref.ConfigKey, ref.Kind, wantKind)
		}
	}
}

func TestGetSetPath(t *testing.T) {
	spec := specFixture()

	testCases := []struct {
		path  string
		value any
	}{
		{"theme_info.title", "Midnight"},
		{"theme_info.author", "someone"},
		{"themeCover", "newcover.png"},
		{"itemConfig.itemTextColor", "#000000"},
		{"statusConfig.battery[2]", "newbat2.png"},
		{"dialogConfig.background", "#112233"}, // section created on demand
	}
	for _, tc := range testCases {
		if err := spec.SetPath(tc.path, tc.value); err != nil {
			t.Fatalf("SetPath(%s): %v", tc.path, err)
		}
		got, ok := spec.GetPath(tc.path)
		if !ok || got != tc.value {
			t.Errorf("GetPath(%s) = %v (%v), want %v", tc.path, got, ok, tc.value)
		}
	}

	if err := spec.SetPath("bogusSection.key", "x"); err == nil {
		t.Error("SetPath on unknown section succeeded, want error")
	}
	if _, ok := spec.GetPath("statusConfig.battery[9]"); ok {
		t.Error("GetPath out-of-range index reported ok")
	}
}

func TestDeepCopyIndependence(t *testing.T) {
	src := specFixture()
	cp := src.DeepCopy()

	cp.ThemeInfo.Title = "Changed"
	cp.ItemConfig["itemBackground"] = "other.png"
	cp.StatusConfig["battery"].([]any)[0] = "other0.png"

	if src.ThemeInfo.Title != "Noir" {
		t.Error("copy title mutation leaked into source")
	}
	if src.ItemConfig["itemBackground"] != "item_bg.png" {
		t.Error("copy section mutation leaked into source")
	}
	if src.StatusConfig["battery"].([]any)[0] != "bat0.png" {
		t.Error("copy array mutation leaked into source")
	}
}

func TestSlugify(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"Midnight Blue", "Midnight_Blue"},
		{"  spaced   out  ", "spaced_out"},
		{"naïve/thème?.zip", "navethmezip"},
		{"already_safe-1", "already_safe-1"},
		{"™©®", "theme"},
		{"", "theme"},
	}
	for _, tc := range testCases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDescribeKey(t *testing.T) {
	testCases := []struct {
		key  string
		want string
	}{
		{"statusConfig.battery[2]", "Status bar · Battery 3/4"},
		{"itemConfig.itemBackground", "List items · Item Background"},
		{"themeCover", "Theme cover"},
		{"desktopWallpaper", "Desktop Wallpaper"},
	}
	for _, tc := range testCases {
		if got := DescribeKey(tc.key); got != tc.want {
			t.Errorf("DescribeKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
