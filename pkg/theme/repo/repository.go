// Package repo discovers built-in theme packages, resolves their declared
// assets against the bundle tree, and runs the full lifecycle of user-editable
// clones on top of the durable store.
package repo

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
)

const manifestName = "config.json"

// RecordStore is the durable CRUD surface the repository needs. Implemented
// by store.Store; tests substitute fakes to exercise failure paths.
type RecordStore interface {
	GetAll(ctx context.Context) (map[string]theme.ClonedThemeData, error)
	Get(ctx context.Context, id string) (theme.ClonedThemeData, error)
	Put(ctx context.Context, rec theme.ClonedThemeData) error
	Delete(ctx context.Context, id string) error
}

// Repository orchestrates theme discovery and the user-theme lifecycle.
// Built-in themes are read fresh from the bundle directory; user themes live
// in the store. Mutating operations only ever touch stored records, so
// built-ins (IsEditable=false) cannot be edited through this type: their ids
// are never in the store and mutations fail with ErrNotFound.
type Repository struct {
	bundleDir string
	store     RecordStore
	logger    hclog.Logger

	mu      sync.Mutex
	nextSub int
	subs    map[int]func()
}

// New creates a repository over a bundle directory of theme packages
// (<dir>/<name>/config.json plus sibling asset files) and a record store.
func New(bundleDir string, st RecordStore, logger hclog.Logger) *Repository {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Repository{
		bundleDir: bundleDir,
		store:     st,
		logger:    logger,
		subs:      map[int]func(){},
	}
}

// Subscribe registers a callback fired after any mutation or bundle rescan.
// The returned func unregisters it.
func (r *Repository) Subscribe(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Repository) notify() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ScanBuiltIn enumerates every theme package in the bundle directory.
// Malformed manifests are logged and skipped; the scan continues.
func (r *Repository) ScanBuiltIn() ([]theme.LoadedTheme, error) {
	entries, err := os.ReadDir(r.bundleDir)
	if err != nil {
		return nil, fmt.Errorf("read bundle dir %s: %w", r.bundleDir, err)
	}

	var themes []theme.LoadedTheme
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.bundleDir, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, manifestName))
		if err != nil {
			r.logger.Debug("no manifest in bundle entry, skipping", "dir", e.Name())
			continue
		}
		spec, err := theme.ParseSpec(data)
		if err != nil {
			r.logger.Warn("skipping malformed theme manifest", "dir", e.Name(), "error", err)
			continue
		}

		id := spec.Title()
		if id == "" {
			id = e.Name()
		}

		t := theme.LoadedTheme{
			ID:           id,
			Spec:         spec,
			LoadedAssets: resolveRefs(spec.ReferencedFiles(), diskIndex(dir)),
			IsEditable:   false,
		}
		t.FinishAssetIndex()
		themes = append(themes, t)
	}
	return themes, nil
}

// assetIndex maps declared file names to content locations, tolerating
// URL-encoding and extension/name case drift (icon.PNG vs icon.png).
type assetIndex struct {
	exact map[string]string
	lower map[string]string
}

func newAssetIndex() *assetIndex {
	return &assetIndex{exact: map[string]string{}, lower: map[string]string{}}
}

func (ix *assetIndex) add(name, location string) {
	ix.exact[name] = location
	if _, taken := ix.lower[strings.ToLower(name)]; !taken {
		ix.lower[strings.ToLower(name)] = location
	}
}

// resolve applies the resolution ladder: exact match, URL-decoded match,
// case-insensitive match. First match wins.
func (ix *assetIndex) resolve(name string) (string, bool) {
	if loc, ok := ix.exact[name]; ok {
		return loc, true
	}
	if dec, err := url.PathUnescape(name); err == nil && dec != name {
		if loc, ok := ix.exact[dec]; ok {
			return loc, true
		}
	}
	if loc, ok := ix.lower[strings.ToLower(name)]; ok {
		return loc, true
	}
	return "", false
}

func diskIndex(dir string) *assetIndex {
	ix := newAssetIndex()
	files, err := os.ReadDir(dir)
	if err != nil {
		return ix
	}
	for _, f := range files {
		if f.IsDir() || f.Name() == manifestName {
			continue
		}
		ix.add(f.Name(), filepath.Join(dir, f.Name()))
	}
	return ix
}

// resolveRefs materializes AssetInfo entries for every reference that the
// index can resolve. Unresolved files are omitted — fonts a theme never uses
// are legal. Output is sorted by config key for deterministic display order.
func resolveRefs(refs []theme.AssetRef, ix *assetIndex) []theme.AssetInfo {
	var assets []theme.AssetInfo
	for _, ref := range refs {
		loc, ok := ix.resolve(ref.FileName)
		if !ok {
			continue
		}
		assets = append(assets, theme.AssetInfo{
			FileName:    ref.FileName,
			URL:         loc,
			ConfigKey:   ref.ConfigKey,
			Description: theme.DescribeKey(ref.ConfigKey),
		})
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ConfigKey < assets[j].ConfigKey })
	return assets
}

// LoadUserThemes projects every stored record into a LoadedTheme whose asset
// resolvers read the record's override map only. The legacy-blob migration has
// already run when the store was opened.
func (r *Repository) LoadUserThemes(ctx context.Context) ([]theme.LoadedTheme, error) {
	records, err := r.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	themes := make([]theme.LoadedTheme, 0, len(records))
	for _, rec := range records {
		themes = append(themes, rec.Loaded())
	}
	sort.Slice(themes, func(i, j int) bool { return themes[i].ID < themes[j].ID })
	return themes, nil
}

// Clone deep-copies a source theme into a new editable record. The clone
// initially points at the same byte sources as the original; edits then land
// in its own override map. Storage errors (including quota) propagate as-is.
func (r *Repository) Clone(ctx context.Context, src theme.LoadedTheme) (theme.LoadedTheme, error) {
	spec := src.Spec.DeepCopy()
	if spec.ThemeInfo != nil && spec.ThemeInfo.Title != "" {
		spec.ThemeInfo.Title += " (Clone)"
	}

	overrides := make(map[string]string, len(src.LoadedAssets))
	for _, a := range src.LoadedAssets {
		overrides[a.FileName] = a.URL
	}

	id, err := r.freshCloneID(ctx, src.ID)
	if err != nil {
		return theme.LoadedTheme{}, err
	}

	rec := theme.ClonedThemeData{
		ID:              id,
		Spec:            spec,
		LoadedAssets:    append([]theme.AssetInfo(nil), src.LoadedAssets...),
		AssetOverrides:  overrides,
		OriginalThemeID: src.ID,
		ClonedDate:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return theme.LoadedTheme{}, err
	}
	r.logger.Info("cloned theme", "source", src.ID, "id", id)
	r.notify()
	return rec.Loaded(), nil
}

// freshCloneID returns a timestamp-suffixed id not yet present in the store.
func (r *Repository) freshCloneID(ctx context.Context, sourceID string) (string, error) {
	ts := time.Now().UnixMilli()
	for {
		id := fmt.Sprintf("%s_clone_%d", sourceID, ts)
		_, err := r.store.Get(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		ts++
	}
}

// UpdateAsset points fileName at newURL in the record's override map and
// refreshes the cached asset list. Last write wins; other assets untouched.
func (r *Repository) UpdateAsset(ctx context.Context, themeID, fileName, newURL string) error {
	rec, err := r.store.Get(ctx, themeID)
	if err != nil {
		return err
	}
	if rec.AssetOverrides == nil {
		rec.AssetOverrides = map[string]string{}
	}
	rec.AssetOverrides[fileName] = newURL
	for i := range rec.LoadedAssets {
		if rec.LoadedAssets[i].FileName == fileName {
			rec.LoadedAssets[i].URL = newURL
		}
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return err
	}
	r.notify()
	return nil
}

// SetAssetFromFile inlines the file's bytes as a data URL and stores that as
// the override. The bytes are embedded before persistence on purpose: a path
// that later disappears must fail the write now, not resolve to nothing later.
func (r *Repository) SetAssetFromFile(ctx context.Context, themeID, fileName, srcPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", errors.ErrImageLoad, srcPath, err)
	}
	return r.UpdateAsset(ctx, themeID, fileName, theme.EncodeDataURL(theme.MIMEForFile(fileName), data))
}

// UpdateSpec replaces the record's spec wholesale. Callers batch rapid edits
// through a SpecEditor; this method persists immediately.
func (r *Repository) UpdateSpec(ctx context.Context, themeID string, newSpec theme.Spec) error {
	rec, err := r.store.Get(ctx, themeID)
	if err != nil {
		return err
	}
	rec.Spec = newSpec
	if err := r.store.Put(ctx, rec); err != nil {
		return err
	}
	r.notify()
	return nil
}

// Delete removes a user theme. Deleting an unknown id succeeds.
func (r *Repository) Delete(ctx context.Context, themeID string) error {
	if err := r.store.Delete(ctx, themeID); err != nil {
		return err
	}
	r.logger.Info("deleted theme", "id", themeID)
	r.notify()
	return nil
}

// ImportArchive registers a device ZIP (config.json + flat assets) as a new
// user theme. Every asset is inlined as a data URL so the record is
// self-contained.
func (r *Repository) ImportArchive(ctx context.Context, name string, data []byte) (theme.LoadedTheme, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return theme.LoadedTheme{}, fmt.Errorf("%w: not a zip archive: %v", errors.ErrMalformedSpec, err)
	}

	var spec theme.Spec
	specSeen := false
	ix := newAssetIndex()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return theme.LoadedTheme{}, fmt.Errorf("%w: read %s: %v", errors.ErrMalformedSpec, f.Name, err)
		}
		if f.Name == manifestName {
			spec, err = theme.ParseSpec(content)
			if err != nil {
				return theme.LoadedTheme{}, err
			}
			specSeen = true
			continue
		}
		ix.add(f.Name, theme.EncodeDataURL(theme.MIMEForFile(f.Name), content))
	}
	if !specSeen {
		return theme.LoadedTheme{}, fmt.Errorf("%w: archive has no %s", errors.ErrMalformedSpec, manifestName)
	}

	assets := resolveRefs(spec.ReferencedFiles(), ix)
	overrides := make(map[string]string, len(assets))
	for _, a := range assets {
		overrides[a.FileName] = a.URL
	}

	rec := theme.ClonedThemeData{
		ID:             fmt.Sprintf("imported_%s_%s", uuid.NewString()[:8], theme.Slugify(name)),
		Spec:           spec,
		LoadedAssets:   assets,
		AssetOverrides: overrides,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return theme.LoadedTheme{}, err
	}
	r.logger.Info("imported theme archive", "id", rec.ID, "assets", len(assets))
	r.notify()
	return rec.Loaded(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
