package tryon

import "fmt"

// Layer is one committed step of an outfit: the garment applied at this step
// (nil exactly for the root, model-only layer) and the generated image for
// every pose rendered so far, keyed by pose label. A committed layer always
// holds at least its default-pose image.
type Layer struct {
	Garment *Garment
	Poses   map[string]string
}

// PoseImage returns the image handle rendered for label, if any.
func (l *Layer) PoseImage(label string) (string, bool) {
	img, ok := l.Poses[label]
	return img, ok
}

// Representative returns the image that stands for this layer independent of
// pose navigation: the default-pose render when present, otherwise the first
// rendered pose in master order. Generation inputs for the next layer are
// always taken from here.
func (l *Layer) Representative() string {
	if img, ok := l.Poses[DefaultPose()]; ok {
		return img
	}
	for _, label := range poseLabels {
		if img, ok := l.Poses[label]; ok {
			return img
		}
	}
	return ""
}

// CachedPoseIndices returns the master-list indices of the poses rendered on
// this layer, ascending.
func (l *Layer) CachedPoseIndices() []int {
	out := make([]int, 0, len(l.Poses))
	for i, label := range poseLabels {
		if _, ok := l.Poses[label]; ok {
			out = append(out, i)
		}
	}
	return out
}

func (l *Layer) clone() Layer {
	poses := make(map[string]string, len(l.Poses))
	for k, v := range l.Poses {
		poses[k] = v
	}
	return Layer{Garment: l.Garment, Poses: poses}
}

// History is the branching outfit timeline. Layers live in an arena that only
// Append and ReplaceAt truncate; moving backward (Rewind) keeps the abandoned
// suffix in the arena as a redo branch, so re-selecting the garment the user
// just backed out of restores the old layer without regenerating anything.
//
// History is not safe for concurrent use; the session controller serializes
// access. Index arguments must be in range: violations are caller bugs and
// panic rather than returning an error.
//
// The zero value is an empty history ready for use.
type History struct {
	layers []Layer
	pos    int
}

// Initialize replaces the whole history with a single root layer whose
// default pose shows rootImage. Position returns to 0.
func (h *History) Initialize(rootImage string) {
	h.layers = []Layer{{Poses: map[string]string{DefaultPose(): rootImage}}}
	h.pos = 0
}

// Append commits a new garment layer on top of the active one. Any retained
// redo branch is discarded first: [A,B,C] at position 0 becomes [A,New],
// never [A,B,C,New].
func (h *History) Append(g *Garment, image string) {
	if h.Empty() {
		panic("tryon: append on empty history")
	}
	h.layers = append(h.layers[:h.pos+1], Layer{
		Garment: g,
		Poses:   map[string]string{DefaultPose(): image},
	})
	h.pos = len(h.layers) - 1
}

// ReplaceAt swaps the layer at index for a freshly generated render of the
// same garment, dropping the old pose cache and every layer above index.
// The root layer cannot be replaced.
func (h *History) ReplaceAt(index int, image string) {
	h.mustIndex(index)
	if index < 1 {
		panic("tryon: replace of root layer")
	}
	g := h.layers[index].Garment
	h.layers = append(h.layers[:index], Layer{
		Garment: g,
		Poses:   map[string]string{DefaultPose(): image},
	})
	h.pos = index
}

// Rewind moves the active position back to index-1, retaining the suffix as
// a redo branch. Rewind(0) clears the history entirely.
func (h *History) Rewind(index int) {
	h.mustIndex(index)
	if index == 0 {
		h.Clear()
		return
	}
	h.pos = index - 1
}

// Advance re-enters a retained redo branch one layer forward. Callers check
// NextRedo first.
func (h *History) Advance() {
	if h.pos+1 >= len(h.layers) {
		panic("tryon: advance past committed layers")
	}
	h.pos++
}

// Clear empties the history.
func (h *History) Clear() {
	h.layers = nil
	h.pos = 0
}

// CachePose records the render of one more pose on the addressed layer.
// Position is untouched.
func (h *History) CachePose(index int, label, image string) {
	h.mustIndex(index)
	h.layers[index].Poses[label] = image
}

// Empty reports whether no model has been committed yet.
func (h *History) Empty() bool { return len(h.layers) == 0 }

// Len returns the number of committed layers, redo branch included.
func (h *History) Len() int { return len(h.layers) }

// ActiveLen returns the length of the active prefix (position+1), 0 when
// empty.
func (h *History) ActiveLen() int {
	if h.Empty() {
		return 0
	}
	return h.pos + 1
}

// Position returns the active layer index. Only meaningful when non-empty.
func (h *History) Position() int { return h.pos }

// HasRedo reports whether a redo branch is retained past the position.
func (h *History) HasRedo() bool { return h.pos+1 < len(h.layers) }

// NextRedo returns the retained layer just past the position, or nil.
func (h *History) NextRedo() *Layer {
	if !h.HasRedo() {
		return nil
	}
	return &h.layers[h.pos+1]
}

// Active returns the layer at the current position.
func (h *History) Active() *Layer {
	if h.Empty() {
		panic("tryon: active layer of empty history")
	}
	return &h.layers[h.pos]
}

// LayerAt returns the layer at index.
func (h *History) LayerAt(index int) *Layer {
	h.mustIndex(index)
	return &h.layers[index]
}

// ActiveLayers returns a deep copy of the active prefix [0, position].
func (h *History) ActiveLayers() []Layer {
	if h.Empty() {
		return nil
	}
	out := make([]Layer, 0, h.pos+1)
	for i := 0; i <= h.pos; i++ {
		out = append(out, h.layers[i].clone())
	}
	return out
}

// Representative returns the representative image of the layer at index.
func (h *History) Representative(index int) string {
	h.mustIndex(index)
	return h.layers[index].Representative()
}

func (h *History) mustIndex(index int) {
	if index < 0 || index >= len(h.layers) {
		panic(fmt.Sprintf("tryon: layer index %d out of range [0,%d)", index, len(h.layers)))
	}
}
