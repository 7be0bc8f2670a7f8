package imaging

import (
	"context"
	"image/color"
	"strings"
	"testing"

	"github.com/podtheme/themepack/pkg/theme"
)

func themeWith(id, title, configKey, fileName, url string) theme.LoadedTheme {
	t := theme.LoadedTheme{
		ID:   id,
		Spec: theme.Spec{ThemeInfo: &theme.ThemeInfo{Title: title}},
		LoadedAssets: []theme.AssetInfo{
			{FileName: fileName, URL: url, ConfigKey: configKey},
		},
	}
	t.FinishAssetIndex()
	return t
}

func TestFindEquivalents(t *testing.T) {
	themes := []theme.LoadedTheme{
		themeWith("a", "Alpha", "itemConfig.itemBackground", "a.png", "data:a"),
		themeWith("b", "Beta", "itemConfig.itemBackground", "b.png", "data:b"),
		themeWith("c", "Gamma", "statusConfig.wifi", "wifi.png", "data:c"),
	}

	got := FindEquivalents("itemConfig.itemBackground", "a", themes)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (excluded theme and key mismatch dropped)", len(got))
	}
	if got[0].ThemeName != "Beta" || got[0].FileName != "b.png" {
		t.Errorf("unexpected candidate %+v", got[0])
	}

	// A theme contributes at most one candidate even with duplicate keys.
	dup := themeWith("d", "Delta", "itemConfig.itemBackground", "d1.png", "data:d1")
	dup.LoadedAssets = append(dup.LoadedAssets, theme.AssetInfo{
		FileName: "d2.png", URL: "data:d2", ConfigKey: "itemConfig.itemBackground",
	})
	got = FindEquivalents("itemConfig.itemBackground", "", append(themes, dup))
	count := 0
	for _, c := range got {
		if c.ThemeName == "Delta" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Delta contributed %d candidates, want 1", count)
	}
}

func TestDeduplicateCompleteness(t *testing.T) {
	ctx := context.Background()
	identical := pngBytes(t, 16, 16, color.RGBA{B: 0xff, A: 0xff})
	different := pngBytes(t, 16, 16, color.RGBA{R: 0xff, A: 0xff})

	candidates := []Candidate{
		{URL: theme.EncodeDataURL("image/png", identical), ThemeName: "A", FileName: "a.png"},
		{URL: theme.EncodeDataURL("image/png", identical), ThemeName: "B", FileName: "b.png"},
		{URL: theme.EncodeDataURL("image/png", different), ThemeName: "C", FileName: "c.png"},
	}

	groups := Deduplicate(ctx, XXHasher{}, candidates, nil)
	if len(groups.Order) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups.Order))
	}
	first := groups.ByHash[groups.Order[0]]
	if len(first) != 2 || first[0].ThemeName != "A" || first[1].ThemeName != "B" {
		t.Errorf("identical pair not grouped together: %+v", first)
	}
	second := groups.ByHash[groups.Order[1]]
	if len(second) != 1 || second[0].ThemeName != "C" {
		t.Errorf("differing image not alone: %+v", second)
	}

	reps := groups.Representatives()
	if len(reps) != 2 || reps[0].ThemeName != "A" || reps[1].ThemeName != "C" {
		t.Errorf("representatives = %+v, want first-seen A and C", reps)
	}
}

func TestDeduplicateIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	good := theme.EncodeDataURL("image/png", pngBytes(t, 16, 16, color.RGBA{G: 0xff, A: 0xff}))

	candidates := []Candidate{
		{URL: good, ThemeName: "Good", FileName: "g.png"},
		{URL: theme.EncodeDataURL("image/png", []byte("junk")), ThemeName: "Bad", FileName: "b.png"},
		{URL: good, ThemeName: "AlsoGood", FileName: "g2.png"},
	}

	groups := Deduplicate(ctx, XXHasher{}, candidates, nil)
	if len(groups.Order) != 2 {
		t.Fatalf("got %d groups, want 2 (failure isolated, batch continues)", len(groups.Order))
	}

	var singleton []Candidate
	for key, members := range groups.ByHash {
		if strings.HasPrefix(key, "err:") {
			singleton = members
		}
	}
	if len(singleton) != 1 || singleton[0].ThemeName != "Bad" {
		t.Errorf("failed candidate not kept as its own singleton: %+v", singleton)
	}
}
