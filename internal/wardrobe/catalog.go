package wardrobe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"fitroom/internal/tryon"
)

// Catalog is the fixed garment list every session starts from.
type Catalog []tryon.Garment

// DefaultCatalog returns the built-in garments. Image URLs point at the
// hosted asset bucket; the resolver fetches and caches them on first use.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "w1", Name: "Classic Denim Jacket", Image: assetURL("denim-jacket")},
		{ID: "w2", Name: "White Cotton Tee", Image: assetURL("white-tee")},
		{ID: "w3", Name: "Black Hoodie", Image: assetURL("black-hoodie")},
		{ID: "w4", Name: "Floral Summer Dress", Image: assetURL("floral-dress")},
		{ID: "w5", Name: "Slim-Fit Chinos", Image: assetURL("slim-chinos")},
		{ID: "w6", Name: "Pleated Midi Skirt", Image: assetURL("midi-skirt")},
		{ID: "w7", Name: "Wool Overcoat", Image: assetURL("wool-overcoat")},
		{ID: "w8", Name: "Canvas Sneakers", Image: assetURL("canvas-sneakers")},
	}
}

func assetURL(slug string) string {
	return "https://storage.googleapis.com/fitroom-assets/catalog/" + slug + ".png"
}

// LoadCatalog reads a garment list from a JSON file, replacing the
// built-in catalog. The file holds an array of {id, name, image} objects.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var items []tryon.Garment
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("catalog %s is empty", path)
	}
	seen := make(map[string]bool, len(items))
	for i := range items {
		g := &items[i]
		g.ID = strings.TrimSpace(g.ID)
		g.Name = strings.TrimSpace(g.Name)
		g.Image = strings.TrimSpace(g.Image)
		if g.ID == "" || g.Name == "" || g.Image == "" {
			return nil, fmt.Errorf("catalog %s: entry %d missing id, name or image", path, i)
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("catalog %s: duplicate id %q", path, g.ID)
		}
		seen[g.ID] = true
		g.Custom = false
	}
	return Catalog(items), nil
}
