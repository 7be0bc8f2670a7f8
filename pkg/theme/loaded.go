package theme

import (
	"fmt"
	"strings"
	"unicode"
)

// AssetInfo is one resolved asset of a loaded theme. It is derived state,
// always regenerable from the spec plus an asset lookup.
type AssetInfo struct {
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	ConfigKey   string `json:"configKey"`
	Description string `json:"description"`
}

// LoadedTheme is the aggregate handed to the renderer and the exporter.
// Built-in themes are immutable; every edit operates on a clone.
type LoadedTheme struct {
	ID           string
	Spec         Spec
	LoadedAssets []AssetInfo
	IsEditable   bool

	OriginalThemeID string
	ClonedDate      string

	urlByFile map[string]string
	urlByID   map[string]string
}

// FinishAssetIndex builds the resolver maps from LoadedAssets and the legacy
// assets.images table. Call after filling Spec and LoadedAssets.
func (t *LoadedTheme) FinishAssetIndex() {
	t.urlByFile = make(map[string]string, len(t.LoadedAssets))
	for _, a := range t.LoadedAssets {
		t.urlByFile[a.FileName] = a.URL
	}
	t.urlByID = map[string]string{}
	if t.Spec.Assets != nil {
		for _, img := range t.Spec.Assets.Images {
			if url, ok := t.urlByFile[img.File]; ok {
				t.urlByID[img.ID] = url
			}
		}
	}
	if t.Spec.Theme != nil {
		for _, f := range t.Spec.Theme.Fonts {
			if url, ok := t.urlByFile[f.File]; ok {
				t.urlByID[f.ID] = url
			}
		}
	}
}

// AssetURLForFile resolves a declared file name to its content location.
func (t *LoadedTheme) AssetURLForFile(name string) (string, bool) {
	url, ok := t.urlByFile[name]
	return url, ok
}

// AssetURLForID resolves a legacy asset/font id to its content location.
func (t *LoadedTheme) AssetURLForID(id string) (string, bool) {
	url, ok := t.urlByID[id]
	return url, ok
}

// DisplayTitle is the theme's title, falling back to its id.
func (t *LoadedTheme) DisplayTitle() string {
	if title := t.Spec.Title(); title != "" {
		return title
	}
	return t.ID
}

// ClonedThemeData is the persisted record of one user theme — the sole unit
// of durable storage, keyed by ID. AssetOverrides is authoritative for edited
// bytes; LoadedAssets is a denormalized cache for display.
type ClonedThemeData struct {
	ID              string            `json:"id"`
	Spec            Spec              `json:"spec"`
	LoadedAssets    []AssetInfo       `json:"loadedAssets"`
	AssetOverrides  map[string]string `json:"assetOverrides"`
	OriginalThemeID string            `json:"originalThemeId,omitempty"`
	ClonedDate      string            `json:"clonedDate,omitempty"`
}

// Loaded projects the record into a LoadedTheme whose resolvers read from the
// override map only — no bundle access.
func (r *ClonedThemeData) Loaded() LoadedTheme {
	t := LoadedTheme{
		ID:              r.ID,
		Spec:            r.Spec,
		LoadedAssets:    append([]AssetInfo(nil), r.LoadedAssets...),
		IsEditable:      true,
		OriginalThemeID: r.OriginalThemeID,
		ClonedDate:      r.ClonedDate,
	}
	t.FinishAssetIndex()
	for name, url := range r.AssetOverrides {
		t.urlByFile[name] = url
	}
	return t
}

var sectionLabels = map[string]string{
	"itemConfig":     "List items",
	"statusConfig":   "Status bar",
	"homePageConfig": "Home menu",
	"settingConfig":  "Settings",
	"dialogConfig":   "Dialogs",
	"menuConfig":     "Menus",
	"playerConfig":   "Now playing",
	"fileConfig":     "Files",
	"themeCover":     "Theme cover",
}

// DescribeKey renders a dotted config key as a human label,
// e.g. "statusConfig.batteryCharging[2]" → "Status bar · Battery Charging 3/4".
func DescribeKey(configKey string) string {
	key := configKey
	suffix := ""
	if base, idx, ok := splitIndexedKey(key); ok {
		key = base
		suffix = fmt.Sprintf(" %d/4", idx+1)
	}
	section, rest, hasDot := strings.Cut(key, ".")
	label, known := sectionLabels[section]
	if !hasDot {
		if known {
			return label + suffix
		}
		return titleize(section) + suffix
	}
	if !known {
		label = titleize(section)
	}
	return label + " · " + titleize(rest) + suffix
}

func splitIndexedKey(key string) (string, int, bool) {
	base, idx, ok := splitIndex(key)
	return base, idx, ok
}

// titleize splits a camelCase key into spaced words with an upper-case head.
func titleize(key string) string {
	var b strings.Builder
	for i, r := range key {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
