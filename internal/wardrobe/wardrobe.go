// Package wardrobe holds the garments a session can pick from: the shared
// catalog plus any garments the user added during the session.
package wardrobe

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fitroom/internal/tryon"
)

// Wardrobe is one session's garment set. Custom garments live only as
// long as the session.
type Wardrobe struct {
	mu      sync.Mutex
	catalog Catalog
	custom  []tryon.Garment
}

func New(catalog Catalog) *Wardrobe {
	return &Wardrobe{catalog: catalog}
}

// Items returns catalog garments first, then custom ones in the order
// they were added.
func (w *Wardrobe) Items() []tryon.Garment {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]tryon.Garment, 0, len(w.catalog)+len(w.custom))
	out = append(out, w.catalog...)
	out = append(out, w.custom...)
	return out
}

// Get looks a garment up by id.
func (w *Wardrobe) Get(id string) (tryon.Garment, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, g := range w.catalog {
		if g.ID == id {
			return g, true
		}
	}
	for _, g := range w.custom {
		if g.ID == id {
			return g, true
		}
	}
	return tryon.Garment{}, false
}

// Add registers a custom garment and returns it with its assigned id.
func (w *Wardrobe) Add(name, image string) (tryon.Garment, error) {
	name = strings.TrimSpace(name)
	image = strings.TrimSpace(image)
	if name == "" {
		return tryon.Garment{}, fmt.Errorf("garment name is required")
	}
	if image == "" {
		return tryon.Garment{}, fmt.Errorf("garment image is required")
	}
	g := tryon.Garment{
		ID:     "c-" + uuid.NewString(),
		Name:   name,
		Image:  image,
		Custom: true,
	}
	w.mu.Lock()
	w.custom = append(w.custom, g)
	w.mu.Unlock()
	return g, nil
}

// Reset drops all custom garments, keeping the catalog.
func (w *Wardrobe) Reset() {
	w.mu.Lock()
	w.custom = nil
	w.mu.Unlock()
}
