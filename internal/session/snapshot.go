package session

import (
	"time"

	"fitroom/internal/tryon"
)

// LayerView is one entry of the visible outfit stack.
type LayerView struct {
	Index       int            `json:"index"`
	Garment     *tryon.Garment `json:"garment,omitempty"`
	Image       string         `json:"image"`
	CachedPoses []int          `json:"cached_poses,omitempty"`
}

// Snapshot is a self-contained projection of a session, safe to hand out
// and to serialize. Image fields hold handles, not bytes.
type Snapshot struct {
	ID          string         `json:"id"`
	Activity    Activity       `json:"activity"`
	Busy        bool           `json:"busy"`
	Error       string         `json:"error,omitempty"`
	PoseIndex   int            `json:"pose_index"`
	Pose        string         `json:"pose"`
	ViewImage   string         `json:"view_image,omitempty"`
	Layers      []LayerView    `json:"layers,omitempty"`
	CanUndo     bool           `json:"can_undo"`
	RedoGarment *tryon.Garment `json:"redo_garment,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (s *Service) snapshotLocked(st *session) *Snapshot {
	snap := &Snapshot{
		ID:        st.id,
		Activity:  st.activity,
		Busy:      st.busy,
		Error:     st.lastError,
		PoseIndex: st.poseIndex,
		Pose:      tryon.PoseLabel(st.poseIndex),
		UpdatedAt: st.updatedAt,
	}
	if st.history.Empty() {
		return snap
	}

	layers := st.history.ActiveLayers()
	snap.Layers = make([]LayerView, len(layers))
	for i := range layers {
		l := &layers[i]
		var g *tryon.Garment
		if l.Garment != nil {
			cp := *l.Garment
			g = &cp
		}
		snap.Layers[i] = LayerView{
			Index:       i,
			Garment:     g,
			Image:       l.Representative(),
			CachedPoses: l.CachedPoseIndices(),
		}
	}

	active := st.history.Active()
	if img, ok := active.PoseImage(tryon.PoseLabel(st.poseIndex)); ok {
		snap.ViewImage = img
	} else {
		snap.ViewImage = active.Representative()
	}
	snap.CanUndo = true
	if redo := st.history.NextRedo(); redo != nil && redo.Garment != nil {
		cp := *redo.Garment
		snap.RedoGarment = &cp
	}
	return snap
}
