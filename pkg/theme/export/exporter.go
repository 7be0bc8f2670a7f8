// Package export flattens a theme spec into the device's on-disk config.json
// schema and streams the optimized assets into the ZIP layout the device
// unpacks into its themes directory.
package export

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
	"github.com/podtheme/themepack/pkg/theme/imaging"
)

// Phase identifies the half of the export the progress report belongs to.
type Phase string

const (
	PhaseOptimizing Phase = "optimizing"
	PhasePackaging  Phase = "packaging"
)

// Progress is reported after every processed asset and archive entry.
// Processed never decreases within a phase.
type Progress struct {
	Phase           Phase
	Processed       int
	Total           int
	CurrentFileName string
}

// Options tunes one export run.
type Options struct {
	// OnProgress observes the two-phase progress protocol. May be nil.
	OnProgress func(Progress)
	// GenerateCover renders a palette cover for themes without a themeCover.
	GenerateCover bool
	Optimizer     *imaging.Optimizer
	Logger        hclog.Logger
}

const (
	manifestName      = "config.json"
	generatedCover    = "cover.png"
	assetSizeEstimate = 10 * 1024
)

// BuildDeviceConfig flattens the spec into the device schema: recognized keys
// copied verbatim, internal-only fields (legacy asset tables, views,
// navigation) dropped, absent sections omitted entirely.
func BuildDeviceConfig(spec theme.Spec) map[string]any {
	cfg := map[string]any{}
	if spec.ThemeInfo != nil {
		cfg["theme_info"] = spec.ThemeInfo
	}
	scalars := map[string]string{
		"themeCover":       spec.ThemeCover,
		"desktopWallpaper": spec.DesktopWallpaper,
		"globalWallpaper":  spec.GlobalWallpaper,
		"desktopMask":      spec.DesktopMask,
		"fontFamily":       spec.FontFamily,
	}
	for key, v := range scalars {
		if v != "" {
			cfg[key] = v
		}
	}
	sections := map[string]map[string]any{
		"itemConfig":     spec.ItemConfig,
		"statusConfig":   spec.StatusConfig,
		"homePageConfig": spec.HomePageConfig,
		"settingConfig":  spec.SettingConfig,
		"dialogConfig":   spec.DialogConfig,
		"menuConfig":     spec.MenuConfig,
		"playerConfig":   spec.PlayerConfig,
		"fileConfig":     spec.FileConfig,
	}
	for name, sec := range sections {
		if len(sec) > 0 {
			cfg[name] = sec
		}
	}
	return cfg
}

// ArchiveName derives the artifact name from the theme's display title.
func ArchiveName(t theme.LoadedTheme) string {
	return theme.Slugify(t.DisplayTitle()) + ".zip"
}

type archiveEntry struct {
	name string
	data []byte
}

// Export produces the device archive. Phase 1 optimizes every asset
// sequentially in stable input order, falling back to the original bytes per
// asset and skipping only when even the fetch fails. Phase 2 packages
// config.json plus the assets with maximum DEFLATE compression. Cancelling
// ctx stops scheduling further work and no archive is emitted.
func Export(ctx context.Context, t theme.LoadedTheme, opts Options) ([]byte, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	opt := opts.Optimizer
	if opt == nil {
		opt = imaging.NewOptimizer(logger)
	}
	report := opts.OnProgress
	if report == nil {
		report = func(Progress) {}
	}

	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", errors.ErrExportCancelled, err)
	}

	// Phase 1: optimizing.
	cfg := BuildDeviceConfig(t.Spec)
	var entries []archiveEntry
	seen := map[string]bool{}
	total := len(t.LoadedAssets)
	for i, a := range t.LoadedAssets {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("%w: %v", errors.ErrExportCancelled, err)
		}
		if !seen[a.FileName] {
			raw, err := theme.ResolveAssetURL(a.URL)
			if err != nil {
				logger.Warn("asset unavailable, leaving out of archive",
					"file", a.FileName, "key", a.ConfigKey, "error", err)
			} else {
				seen[a.FileName] = true
				entries = append(entries, archiveEntry{
					name: a.FileName,
					data: opt.Optimize(ctx, raw, imaging.TargetSizeFor(a)),
				})
			}
		}
		report(Progress{Phase: PhaseOptimizing, Processed: i + 1, Total: total, CurrentFileName: a.FileName})
	}

	if opts.GenerateCover && t.Spec.ThemeCover == "" {
		cover, err := imaging.GenerateCover(t.Spec)
		if err != nil {
			logger.Warn("cover generation failed, exporting without one", "error", err)
		} else {
			entries = append(entries, archiveEntry{name: generatedCover, data: cover})
			cfg["themeCover"] = generatedCover
		}
	}

	// Phase 2: packaging. Entry order follows the input asset order, so two
	// exports of the same theme produce identical entry lists.
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("marshal device config: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	// Adding entries is the first half of this phase, closing (flush and
	// central directory) the second.
	steps := 2 * (1 + len(entries))
	done := 0
	add := func(name string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("archive entry %s: %w", name, err)
		}
		done++
		report(Progress{Phase: PhasePackaging, Processed: done, Total: steps, CurrentFileName: name})
		return nil
	}

	if err := add(manifestName, cfgBytes); err != nil {
		return nil, "", err
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("%w: %v", errors.ErrExportCancelled, err)
		}
		if err := add(e.name, e.data); err != nil {
			return nil, "", err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize archive: %w", err)
	}
	report(Progress{Phase: PhasePackaging, Processed: steps, Total: steps})

	return buf.Bytes(), ArchiveName(t), nil
}

// Preview is the cheap pre-export estimate shown before committing to the
// real thing. Config size is exact; assets use a flat per-file heuristic.
type Preview struct {
	FileCount     int
	AssetCount    int
	EstimatedSize int
}

// PreviewExport estimates the archive without optimizing anything.
func PreviewExport(t theme.LoadedTheme) Preview {
	cfgBytes, _ := json.Marshal(BuildDeviceConfig(t.Spec))
	seen := map[string]bool{}
	for _, a := range t.LoadedAssets {
		seen[a.FileName] = true
	}
	return Preview{
		FileCount:     1 + len(seen),
		AssetCount:    len(seen),
		EstimatedSize: len(cfgBytes) + len(seen)*assetSizeEstimate,
	}
}
