package repo

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/podtheme/themepack/pkg/theme"
	"github.com/podtheme/themepack/pkg/theme/errors"
)

func testLogger(t *testing.T) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Name: t.Name(), Level: hclog.Warn})
}

// fakeStore is an in-memory RecordStore with injectable failures.
type fakeStore struct {
	recs   map[string]theme.ClonedThemeData
	putErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[string]theme.ClonedThemeData{}}
}

func (f *fakeStore) GetAll(ctx context.Context) (map[string]theme.ClonedThemeData, error) {
	out := map[string]theme.ClonedThemeData{}
	for id, rec := range f.recs {
		out[id] = rec
	}
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (theme.ClonedThemeData, error) {
	rec, ok := f.recs[id]
	if !ok {
		return theme.ClonedThemeData{}, fmt.Errorf("%w: %s", errors.ErrNotFound, id)
	}
	return rec, nil
}

// spec returns an addressable copy of a stored record's spec so tests can
// call its pointer methods.
func (f *fakeStore) spec(id string) *theme.Spec {
	rec := f.recs[id]
	return &rec.Spec
}

func (f *fakeStore) Put(ctx context.Context, rec theme.ClonedThemeData) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	delete(f.recs, id)
	return nil
}

// writePackage lays one theme package into the bundle dir.
func writePackage(t *testing.T, bundleDir, folder, manifest string, files map[string][]byte) {
	t.Helper()
	dir := filepath.Join(bundleDir, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(manifest), 0o644))
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
}

const noirManifest = `{
  "theme_info": {"title": "Noir", "author": "someone"},
  "themeCover": "cover.png",
  "itemConfig": {"itemBackground": "item_bg.png", "itemTextColor": "#FFFFFF"},
  "statusConfig": {"battery": ["bat0.png", "bat1.png", "bat2.png", "bat3.png"]}
}`

func noirFiles() map[string][]byte {
	return map[string][]byte{
		"cover.png":   []byte("cover"),
		"item_bg.png": []byte("bg"),
		"bat0.png":    []byte("b0"),
		"bat1.png":    []byte("b1"),
		"bat2.png":    []byte("b2"),
		"bat3.png":    []byte("b3"),
	}
}

func TestScanBuiltIn(t *testing.T) {
	bundle := t.TempDir()
	writePackage(t, bundle, "noir", noirManifest, noirFiles())
	writePackage(t, bundle, "untitled", `{"itemConfig": {"itemBackground": "bg.png"}}`,
		map[string][]byte{"bg.png": []byte("x")})
	writePackage(t, bundle, "broken", `["not", "an", "object"]`, nil)

	r := New(bundle, newFakeStore(), testLogger(t))
	themes, err := r.ScanBuiltIn()
	require.NoError(t, err)
	require.Len(t, themes, 2, "malformed manifest must be skipped, not fatal")

	byID := map[string]theme.LoadedTheme{}
	for _, th := range themes {
		byID[th.ID] = th
		require.False(t, th.IsEditable, "built-ins are immutable")
	}

	noir, ok := byID["Noir"]
	require.True(t, ok, "id comes from theme_info.title")
	require.Len(t, noir.LoadedAssets, 6)
	for i := 1; i < len(noir.LoadedAssets); i++ {
		require.LessOrEqual(t, noir.LoadedAssets[i-1].ConfigKey, noir.LoadedAssets[i].ConfigKey,
			"assets sorted by config key")
	}
	url, ok := noir.AssetURLForFile("bat2.png")
	require.True(t, ok)
	require.Equal(t, filepath.Join(bundle, "noir", "bat2.png"), url)

	_, ok = byID["untitled"]
	require.True(t, ok, "id falls back to the folder name")
}

func TestScanFilenameCaseTolerance(t *testing.T) {
	bundle := t.TempDir()
	writePackage(t, bundle, "drift", `{
	  "itemConfig": {"itemBackground": "icon.PNG"},
	  "statusConfig": {"wifi": "my%20icon.png"}
	}`, map[string][]byte{
		"icon.png":    []byte("x"),
		"my icon.png": []byte("y"),
	})

	r := New(bundle, newFakeStore(), testLogger(t))
	themes, err := r.ScanBuiltIn()
	require.NoError(t, err)
	require.Len(t, themes, 1)

	th := themes[0]
	require.Len(t, th.LoadedAssets, 2)
	url, ok := th.AssetURLForFile("icon.PNG")
	require.True(t, ok, "declared icon.PNG must resolve to icon.png on disk")
	require.Equal(t, filepath.Join(bundle, "drift", "icon.png"), url)
	url, ok = th.AssetURLForFile("my%20icon.png")
	require.True(t, ok, "URL-encoded name must resolve to the decoded file")
	require.Equal(t, filepath.Join(bundle, "drift", "my icon.png"), url)
}

func TestScanMissingAssetOmitted(t *testing.T) {
	bundle := t.TempDir()
	writePackage(t, bundle, "sparse", `{
	  "settingConfig": {"shutdown": "foo.png"},
	  "itemConfig": {"itemBackground": "bg.png"}
	}`, map[string][]byte{"bg.png": []byte("x")})

	r := New(bundle, newFakeStore(), testLogger(t))
	themes, err := r.ScanBuiltIn()
	require.NoError(t, err)
	require.Len(t, themes, 1)
	require.Len(t, themes[0].LoadedAssets, 1)
	require.Equal(t, "itemConfig.itemBackground", themes[0].LoadedAssets[0].ConfigKey)
}

func scanOne(t *testing.T, r *Repository) theme.LoadedTheme {
	t.Helper()
	themes, err := r.ScanBuiltIn()
	require.NoError(t, err)
	require.Len(t, themes, 1)
	return themes[0]
}

func TestCloneIndependence(t *testing.T) {
	ctx := context.Background()
	bundle := t.TempDir()
	writePackage(t, bundle, "noir", noirManifest, noirFiles())

	fs := newFakeStore()
	r := New(bundle, fs, testLogger(t))
	src := scanOne(t, r)

	clone, err := r.Clone(ctx, src)
	require.NoError(t, err)
	require.True(t, clone.IsEditable)
	require.Equal(t, "Noir (Clone)", clone.Spec.Title())
	require.Equal(t, src.ID, clone.OriginalThemeID)
	require.True(t, strings.HasPrefix(clone.ID, "Noir_clone_"))
	require.Contains(t, fs.recs, clone.ID, "clone persisted immediately")

	// The clone initially points at the same byte sources.
	srcURL, _ := src.AssetURLForFile("item_bg.png")
	cloneURL, _ := clone.AssetURLForFile("item_bg.png")
	require.Equal(t, srcURL, cloneURL)

	// Deep-copy invariant: mutating the clone never touches the source.
	clone.Spec.ItemConfig["itemBackground"] = "hacked.png"
	clone.Spec.ThemeInfo.Title = "Hacked"
	require.Equal(t, "item_bg.png", src.Spec.ItemConfig["itemBackground"])
	require.Equal(t, "Noir", src.Spec.Title())
}

func TestCloneQuotaSurfaced(t *testing.T) {
	ctx := context.Background()
	bundle := t.TempDir()
	writePackage(t, bundle, "noir", noirManifest, noirFiles())

	fs := newFakeStore()
	fs.putErr = fmt.Errorf("%w: write record: disk full", errors.ErrQuotaExceeded)
	r := New(bundle, fs, testLogger(t))
	src := scanOne(t, r)

	_, err := r.Clone(ctx, src)
	require.Error(t, err)
	require.True(t, errors.IsQuota(err), "quota must stay distinguishable, got: %v", err)
	require.ErrorIs(t, err, errors.ErrStorage, "quota is still a storage error")
}

func TestUpdateAsset(t *testing.T) {
	ctx := context.Background()
	bundle := t.TempDir()
	writePackage(t, bundle, "noir", noirManifest, noirFiles())

	fs := newFakeStore()
	r := New(bundle, fs, testLogger(t))
	clone, err := r.Clone(ctx, scanOne(t, r))
	require.NoError(t, err)

	newURL := theme.EncodeDataURL("image/png", []byte("edited"))
	require.NoError(t, r.UpdateAsset(ctx, clone.ID, "item_bg.png", newURL))
	// Last write wins; repeat is safe.
	require.NoError(t, r.UpdateAsset(ctx, clone.ID, "item_bg.png", newURL))

	rec := fs.recs[clone.ID]
	require.Equal(t, newURL, rec.AssetOverrides["item_bg.png"])
	for _, a := range rec.LoadedAssets {
		if a.FileName == "item_bg.png" {
			require.Equal(t, newURL, a.URL, "cached asset entry refreshed")
		} else {
			require.NotEqual(t, newURL, a.URL, "other assets untouched")
		}
	}

	err = r.UpdateAsset(ctx, "no_such_theme", "x.png", newURL)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestUpdateSpecAndDelete(t *testing.T) {
	ctx := context.Background()
	bundle := t.TempDir()
	writePackage(t, bundle, "noir", noirManifest, noirFiles())

	fs := newFakeStore()
	r := New(bundle, fs, testLogger(t))
	clone, err := r.Clone(ctx, scanOne(t, r))
	require.NoError(t, err)

	spec := clone.Spec.DeepCopy()
	require.NoError(t, spec.SetPath("theme_info.title", "Edited"))
	require.NoError(t, r.UpdateSpec(ctx, clone.ID, spec))
	require.Equal(t, "Edited", fs.spec(clone.ID).Title())

	require.ErrorIs(t, r.UpdateSpec(ctx, "ghost", spec), errors.ErrNotFound)

	require.NoError(t, r.Delete(ctx, clone.ID))
	require.NoError(t, r.Delete(ctx, clone.ID), "delete is idempotent")
}

func TestLoadUserThemes(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	override := theme.EncodeDataURL("image/png", []byte("edited"))
	fs.recs["zed_clone_5"] = theme.ClonedThemeData{
		ID:   "zed_clone_5",
		Spec: theme.Spec{ThemeInfo: &theme.ThemeInfo{Title: "Zed"}},
		LoadedAssets: []theme.AssetInfo{
			{FileName: "bg.png", URL: override, ConfigKey: "itemConfig.itemBackground"},
		},
		AssetOverrides: map[string]string{"bg.png": override},
	}
	fs.recs["abc_clone_1"] = theme.ClonedThemeData{ID: "abc_clone_1"}

	r := New(t.TempDir(), fs, testLogger(t))
	themes, err := r.LoadUserThemes(ctx)
	require.NoError(t, err)
	require.Len(t, themes, 2)
	require.Equal(t, "abc_clone_1", themes[0].ID, "deterministic order")

	zed := themes[1]
	require.True(t, zed.IsEditable)
	url, ok := zed.AssetURLForFile("bg.png")
	require.True(t, ok)
	require.Equal(t, override, url, "resolver reads the override map")
}

func buildArchive(t *testing.T, manifest string, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("config.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestImportArchive(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	r := New(t.TempDir(), fs, testLogger(t))

	data := buildArchive(t, noirManifest, noirFiles())
	imported, err := r.ImportArchive(ctx, "Noir Pack", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(imported.ID, "imported_"))
	require.True(t, strings.HasSuffix(imported.ID, "_Noir_Pack"))
	require.True(t, imported.IsEditable)
	require.Len(t, imported.LoadedAssets, 6)

	url, ok := imported.AssetURLForFile("cover.png")
	require.True(t, ok)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"), "imported assets are inlined")

	_, err = r.ImportArchive(ctx, "junk", []byte("not a zip"))
	require.ErrorIs(t, err, errors.ErrMalformedSpec)

	noConfig := func() []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, _ := zw.Create("readme.txt")
		_, _ = w.Write([]byte("hi"))
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}()
	_, err = r.ImportArchive(ctx, "empty", noConfig)
	require.ErrorIs(t, err, errors.ErrMalformedSpec)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	bundle := t.TempDir()
	writePackage(t, bundle, "noir", noirManifest, noirFiles())

	r := New(bundle, newFakeStore(), testLogger(t))
	fired := 0
	cancel := r.Subscribe(func() { fired++ })

	clone, err := r.Clone(ctx, scanOne(t, r))
	require.NoError(t, err)
	require.Equal(t, 1, fired)

	require.NoError(t, r.Delete(ctx, clone.ID))
	require.Equal(t, 2, fired)

	cancel()
	_, err = r.Clone(ctx, scanOne(t, r))
	require.NoError(t, err)
	require.Equal(t, 2, fired, "unsubscribed callback must not fire")
}
