// Package theme holds the theme data model shared by the scanner, the store
// and the export pipeline: the declarative spec, the resolved asset list and
// the persisted clone record.
package theme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/podtheme/themepack/pkg/theme/errors"
)

// ThemeInfo carries the free-form metadata block of a theme manifest.
type ThemeInfo struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	AuthorURL   string `json:"authorUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// LegacyImage is one entry of the optional assets.images id→file table.
type LegacyImage struct {
	ID   string `json:"id"`
	File string `json:"file"`
}

// LegacyAssets is the optional legacy asset table some manifests carry.
type LegacyAssets struct {
	Images []LegacyImage `json:"images,omitempty"`
}

// LegacyFont is one entry of the optional theme.fonts table.
type LegacyFont struct {
	ID      string `json:"id"`
	File    string `json:"file"`
	Default bool   `json:"default,omitempty"`
}

// LegacyTheme holds the optional theme.fonts table.
type LegacyTheme struct {
	Fonts []LegacyFont `json:"fonts,omitempty"`
}

// Spec is a theme's declarative configuration. Section values are either a
// hex color string, a relative asset file name, or (battery-style keys) an
// ordered array of exactly 4 file names.
type Spec struct {
	ThemeInfo *ThemeInfo `json:"theme_info,omitempty"`

	ThemeCover       string `json:"themeCover,omitempty"`
	DesktopWallpaper string `json:"desktopWallpaper,omitempty"`
	GlobalWallpaper  string `json:"globalWallpaper,omitempty"`
	DesktopMask      string `json:"desktopMask,omitempty"`
	FontFamily       string `json:"fontFamily,omitempty"`

	ItemConfig     map[string]any `json:"itemConfig,omitempty"`
	StatusConfig   map[string]any `json:"statusConfig,omitempty"`
	HomePageConfig map[string]any `json:"homePageConfig,omitempty"`
	SettingConfig  map[string]any `json:"settingConfig,omitempty"`
	DialogConfig   map[string]any `json:"dialogConfig,omitempty"`
	MenuConfig     map[string]any `json:"menuConfig,omitempty"`
	PlayerConfig   map[string]any `json:"playerConfig,omitempty"`
	FileConfig     map[string]any `json:"fileConfig,omitempty"`

	// Internal-only carriers. Never emitted into the device config.
	Assets     *LegacyAssets   `json:"assets,omitempty"`
	Theme      *LegacyTheme    `json:"theme,omitempty"`
	Views      json.RawMessage `json:"views,omitempty"`
	Navigation json.RawMessage `json:"navigation,omitempty"`
}

// sectionNames is the closed enumeration of config sections, in display order.
// Asset extraction and path mutation only ever touch these.
var sectionNames = []string{
	"itemConfig",
	"statusConfig",
	"homePageConfig",
	"settingConfig",
	"dialogConfig",
	"menuConfig",
	"playerConfig",
	"fileConfig",
}

// scalarKeys is the closed enumeration of top-level single-value keys that may
// reference an asset file.
var scalarKeys = []string{
	"themeCover",
	"desktopWallpaper",
	"globalWallpaper",
	"desktopMask",
	"fontFamily",
}

// ParseSpec decodes a manifest. Anything that is not a JSON object fails with
// ErrMalformedSpec so scanners can skip the package and keep going.
func ParseSpec(data []byte) (Spec, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Spec{}, fmt.Errorf("%w: not a JSON object", errors.ErrMalformedSpec)
	}
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("%w: %v", errors.ErrMalformedSpec, err)
	}
	return s, nil
}

// Title returns theme_info.title, or "" when the manifest has no info block.
func (s *Spec) Title() string {
	if s.ThemeInfo == nil {
		return ""
	}
	return s.ThemeInfo.Title
}

// DeepCopy returns an independent copy of the spec. Mutating the copy never
// touches the original, including nested section maps and arrays.
func (s *Spec) DeepCopy() Spec {
	data, err := json.Marshal(s)
	if err != nil {
		// Spec is built from plain JSON types; marshal cannot fail in practice.
		panic(fmt.Sprintf("spec deep copy: %v", err))
	}
	var out Spec
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("spec deep copy: %v", err))
	}
	return out
}

// section returns the named section map, or nil.
func (s *Spec) section(name string) map[string]any {
	switch name {
	case "itemConfig":
		return s.ItemConfig
	case "statusConfig":
		return s.StatusConfig
	case "homePageConfig":
		return s.HomePageConfig
	case "settingConfig":
		return s.SettingConfig
	case "dialogConfig":
		return s.DialogConfig
	case "menuConfig":
		return s.MenuConfig
	case "playerConfig":
		return s.PlayerConfig
	case "fileConfig":
		return s.FileConfig
	}
	return nil
}

// ensureSection returns the named section map, creating it when absent.
func (s *Spec) ensureSection(name string) map[string]any {
	if m := s.section(name); m != nil {
		return m
	}
	m := map[string]any{}
	switch name {
	case "itemConfig":
		s.ItemConfig = m
	case "statusConfig":
		s.StatusConfig = m
	case "homePageConfig":
		s.HomePageConfig = m
	case "settingConfig":
		s.SettingConfig = m
	case "dialogConfig":
		s.DialogConfig = m
	case "menuConfig":
		s.MenuConfig = m
	case "playerConfig":
		s.PlayerConfig = m
	case "fileConfig":
		s.FileConfig = m
	default:
		return nil
	}
	return m
}

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// IsHexColor reports whether v is a literal #RRGGBB or #AARRGGBB color string.
func IsHexColor(v string) bool { return hexColorRe.MatchString(v) }

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
}

var fontExts = map[string]bool{
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true,
}

// IsFontFile reports whether name has a supported font extension.
func IsFontFile(name string) bool {
	return fontExts[strings.ToLower(path.Ext(name))]
}

// isAssetValue reports whether a section value is an asset reference: not a
// recognized hex color pattern and carrying a supported image/font extension.
func isAssetValue(v string) bool {
	if IsHexColor(v) {
		return false
	}
	ext := strings.ToLower(path.Ext(v))
	return imageExts[ext] || fontExts[ext]
}

// RefKind classifies an asset reference.
type RefKind int

const (
	RefImage RefKind = iota
	RefFont
)

// AssetRef is one referenced file with the dotted config-key path where the
// spec mentions it. Array entries get an [i] suffix.
type AssetRef struct {
	ConfigKey string
	FileName  string
	Kind      RefKind
}

func refFor(key, file string) AssetRef {
	kind := RefImage
	if IsFontFile(file) {
		kind = RefFont
	}
	return AssetRef{ConfigKey: key, FileName: file, Kind: kind}
}

// ReferencedFiles walks the closed section/key enumeration and returns every
// asset reference the spec declares, sorted by config key.
func (s *Spec) ReferencedFiles() []AssetRef {
	var refs []AssetRef

	scalars := map[string]string{
		"themeCover":       s.ThemeCover,
		"desktopWallpaper": s.DesktopWallpaper,
		"globalWallpaper":  s.GlobalWallpaper,
		"desktopMask":      s.DesktopMask,
		"fontFamily":       s.FontFamily,
	}
	for _, key := range scalarKeys {
		if v := scalars[key]; v != "" && isAssetValue(v) {
			refs = append(refs, refFor(key, v))
		}
	}

	for _, name := range sectionNames {
		sec := s.section(name)
		if sec == nil {
			continue
		}
		keys := make([]string, 0, len(sec))
		for k := range sec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch v := sec[k].(type) {
			case string:
				if isAssetValue(v) {
					refs = append(refs, refFor(name+"."+k, v))
				}
			case []any:
				// Battery-style keys: an ordered sequence of file names.
				for i, elem := range v {
					file, ok := elem.(string)
					if ok && isAssetValue(file) {
						refs = append(refs, refFor(fmt.Sprintf("%s.%s[%d]", name, k, i), file))
					}
				}
			}
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].ConfigKey < refs[j].ConfigKey })
	return refs
}

// Colors returns every hex color value the spec declares, in the fixed
// section walk order. Deterministic for a given spec.
func (s *Spec) Colors() []string {
	var colors []string
	for _, name := range sectionNames {
		sec := s.section(name)
		if sec == nil {
			continue
		}
		keys := make([]string, 0, len(sec))
		for k := range sec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := sec[k].(string); ok && IsHexColor(v) {
				colors = append(colors, v)
			}
		}
	}
	return colors
}

var arrayIndexRe = regexp.MustCompile(`^(.*)\[(\d+)\]$`)

func splitIndex(seg string) (string, int, bool) {
	m := arrayIndexRe.FindStringSubmatch(seg)
	if m == nil {
		return seg, 0, false
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return seg, 0, false
	}
	return m[1], idx, true
}

// GetPath resolves a dotted config-key path ("statusConfig.battery[2]",
// "theme_info.title", "themeCover") to its current value.
func (s *Spec) GetPath(p string) (any, bool) {
	head, rest, _ := strings.Cut(p, ".")

	if head == "theme_info" {
		if s.ThemeInfo == nil {
			return nil, false
		}
		switch rest {
		case "title":
			return s.ThemeInfo.Title, true
		case "author":
			return s.ThemeInfo.Author, true
		case "authorUrl":
			return s.ThemeInfo.AuthorURL, true
		case "description":
			return s.ThemeInfo.Description, true
		}
		return nil, false
	}

	if rest == "" {
		switch head {
		case "themeCover":
			return s.ThemeCover, true
		case "desktopWallpaper":
			return s.DesktopWallpaper, true
		case "globalWallpaper":
			return s.GlobalWallpaper, true
		case "desktopMask":
			return s.DesktopMask, true
		case "fontFamily":
			return s.FontFamily, true
		}
		return nil, false
	}

	sec := s.section(head)
	if sec == nil {
		return nil, false
	}
	key, idx, indexed := splitIndex(rest)
	v, ok := sec[key]
	if !ok {
		return nil, false
	}
	if !indexed {
		return v, true
	}
	arr, ok := v.([]any)
	if !ok || idx < 0 || idx >= len(arr) {
		return nil, false
	}
	return arr[idx], true
}

// SetPath writes value at a dotted config-key path, creating the intermediate
// section (or info block) when absent. Array writes extend the slice with
// empty strings as needed so battery sequences keep their fixed positions.
func (s *Spec) SetPath(p string, value any) error {
	head, rest, _ := strings.Cut(p, ".")

	if head == "theme_info" {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("theme_info.%s: value must be a string", rest)
		}
		if s.ThemeInfo == nil {
			s.ThemeInfo = &ThemeInfo{}
		}
		switch rest {
		case "title":
			s.ThemeInfo.Title = str
		case "author":
			s.ThemeInfo.Author = str
		case "authorUrl":
			s.ThemeInfo.AuthorURL = str
		case "description":
			s.ThemeInfo.Description = str
		default:
			return fmt.Errorf("unknown theme_info field %q", rest)
		}
		return nil
	}

	if rest == "" {
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: value must be a string", head)
		}
		switch head {
		case "themeCover":
			s.ThemeCover = str
		case "desktopWallpaper":
			s.DesktopWallpaper = str
		case "globalWallpaper":
			s.GlobalWallpaper = str
		case "desktopMask":
			s.DesktopMask = str
		case "fontFamily":
			s.FontFamily = str
		default:
			return fmt.Errorf("unknown config key %q", head)
		}
		return nil
	}

	sec := s.ensureSection(head)
	if sec == nil {
		return fmt.Errorf("unknown config section %q", head)
	}
	key, idx, indexed := splitIndex(rest)
	if !indexed {
		sec[key] = value
		return nil
	}
	if idx < 0 || idx > 15 {
		return fmt.Errorf("%s: array index %d out of range", p, idx)
	}
	arr, _ := sec[key].([]any)
	for len(arr) <= idx {
		arr = append(arr, "")
	}
	arr[idx] = value
	sec[key] = arr
	return nil
}
