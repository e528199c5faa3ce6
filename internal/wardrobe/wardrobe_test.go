package wardrobe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsWellFormed(t *testing.T) {
	cat := DefaultCatalog()
	require.NotEmpty(t, cat)

	seen := map[string]bool{}
	for _, g := range cat {
		require.NotEmpty(t, g.ID)
		require.NotEmpty(t, g.Name)
		require.NotEmpty(t, g.Image)
		require.False(t, g.Custom, "catalog garment %q marked custom", g.ID)
		require.False(t, seen[g.ID], "duplicate id %q", g.ID)
		seen[g.ID] = true
	}
}

func TestWardrobeAddAndReset(t *testing.T) {
	w := New(DefaultCatalog())
	base := len(w.Items())

	g, err := w.Add("My Band Shirt", "data:image/png;base64,AAAA")
	require.NoError(t, err)
	require.True(t, g.Custom)
	require.True(t, strings.HasPrefix(g.ID, "c-"), "id = %q", g.ID)

	items := w.Items()
	require.Len(t, items, base+1)
	require.Equal(t, g.ID, items[len(items)-1].ID, "custom garment not appended after catalog")

	got, ok := w.Get(g.ID)
	require.True(t, ok)
	require.Equal(t, "My Band Shirt", got.Name)

	w.Reset()
	require.Len(t, w.Items(), base)
	_, ok = w.Get(g.ID)
	require.False(t, ok, "custom garment survived reset")
}

func TestWardrobeAddValidates(t *testing.T) {
	w := New(nil)
	_, err := w.Add("  ", "img")
	require.Error(t, err, "empty name")
	_, err = w.Add("name", "")
	require.Error(t, err, "empty image")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	body := `[
		{"id": "g1", "name": "Red Coat", "image": "https://cdn.example/red-coat.png"},
		{"id": "g2", "name": "Blue Scarf", "image": "https://cdn.example/blue-scarf.png", "custom": true}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat, 2)
	require.Equal(t, "g1", cat[0].ID)
	require.Equal(t, "Blue Scarf", cat[1].Name)
	require.False(t, cat[1].Custom, "custom flag should be cleared for catalog entries")
}

func TestLoadCatalogRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty.json":   `[]`,
		"missing.json": `[{"id": "g1", "name": "", "image": "x"}]`,
		"dupes.json":   `[{"id": "g1", "name": "A", "image": "x"}, {"id": "g1", "name": "B", "image": "y"}]`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := LoadCatalog(path)
		require.Error(t, err, name)
	}
	_, err := LoadCatalog(filepath.Join(dir, "does-not-exist.json"))
	require.Error(t, err, "missing file")
}
