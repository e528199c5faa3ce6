package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitroom/internal/genimage"
	"fitroom/internal/resolver"
	"fitroom/internal/tryon"
)

// Mutating operations follow one protocol: while a generation is in
// flight the session is busy and further mutations are dropped, returning
// the current snapshot unchanged. Request validation errors are returned
// to the caller before any state changes; generation and storage failures
// land in the session's error slot instead.

// SetModel turns a person photo into the session's base model image,
// replacing any existing outfit history.
func (s *Service) SetModel(ctx context.Context, id, personImage string) (*Snapshot, error) {
	personImage = strings.TrimSpace(personImage)

	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.busy {
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}
	if !resolver.ValidForm(personImage) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: unrecognized image handle", ErrBadImage)
	}
	st.beginLocked(ActivityModeling)
	name := st.nextRenderNameLocked()
	sid := st.id
	notifyLocked(st)
	s.mu.Unlock()

	started := time.Now()
	var handle string
	person, genErr := s.resolver.Resolve(ctx, sid, personImage)
	if genErr == nil {
		var out genimage.Image
		out, genErr = s.gateway.GenerateModel(ctx, person)
		if genErr == nil {
			handle, genErr = s.persist(ctx, sid, name, out)
		}
	}

	s.mu.Lock()
	st, ok := s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		s.discard(ctx, sid)
		return nil, ErrSessionNotFound
	}
	st.endLocked()
	if genErr != nil {
		s.log.Printf("session %s: model generation failed: %v", sid, genErr)
		st.lastError = "Couldn't create your model. Try a different photo."
	} else {
		s.log.Printf("session %s: model generated in %s", sid, time.Since(started).Round(time.Millisecond))
		st.history.Initialize(handle)
		st.poseIndex = 0
		st.lastError = ""
	}
	notifyLocked(st)
	snap := s.snapshotLocked(st)
	s.mu.Unlock()
	return snap, nil
}

// SelectGarment applies a wardrobe garment on top of the current outfit.
// Re-selecting the garment that was just undone reuses the retained
// layer, renders included, without calling the backend.
func (s *Service) SelectGarment(ctx context.Context, id, garmentID string) (*Snapshot, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.busy {
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}
	if st.history.Empty() {
		s.mu.Unlock()
		return nil, ErrNoModel
	}
	g, ok := st.wardrobe.Get(strings.TrimSpace(garmentID))
	if !ok {
		s.mu.Unlock()
		return nil, ErrGarmentNotFound
	}

	if redo := st.history.NextRedo(); redo != nil && redo.Garment != nil && redo.Garment.ID == g.ID {
		st.history.Advance()
		st.poseIndex = 0
		st.lastError = ""
		st.touchLocked()
		notifyLocked(st)
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}

	st.beginLocked(ActivityFitting)
	name := st.nextRenderNameLocked()
	base := st.history.Representative(st.history.Position())
	sid := st.id
	notifyLocked(st)
	s.mu.Unlock()

	started := time.Now()
	img, genErr := s.renderTryOn(ctx, sid, base, g)
	var handle string
	if genErr == nil {
		handle, genErr = s.persist(ctx, sid, name, img)
	}

	s.mu.Lock()
	st, ok = s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		s.discard(ctx, sid)
		return nil, ErrSessionNotFound
	}
	st.endLocked()
	if genErr != nil {
		s.log.Printf("session %s: try-on %q failed: %v", sid, g.Name, genErr)
		st.lastError = fmt.Sprintf("Couldn't apply %s. Try again.", g.Name)
	} else {
		s.log.Printf("session %s: try-on %q generated in %s", sid, g.Name, time.Since(started).Round(time.Millisecond))
		gc := g
		st.history.Append(&gc, handle)
		st.poseIndex = 0
		st.lastError = ""
	}
	notifyLocked(st)
	snap := s.snapshotLocked(st)
	s.mu.Unlock()
	return snap, nil
}

// RegenerateLayer re-renders the garment at index against the layer
// below it. Layers above index are dropped; they were generated on top
// of the old render.
func (s *Service) RegenerateLayer(ctx context.Context, id string, index int) (*Snapshot, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.busy {
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}
	if st.history.Empty() {
		s.mu.Unlock()
		return nil, ErrNoModel
	}
	if index < 1 || index > st.history.Position() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrLayerIndex, index)
	}
	g := *st.history.LayerAt(index).Garment
	base := st.history.Representative(index - 1)

	st.beginLocked(ActivityRefitting)
	name := st.nextRenderNameLocked()
	sid := st.id
	notifyLocked(st)
	s.mu.Unlock()

	img, genErr := s.renderTryOn(ctx, sid, base, g)
	var handle string
	if genErr == nil {
		handle, genErr = s.persist(ctx, sid, name, img)
	}

	s.mu.Lock()
	st, ok := s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		s.discard(ctx, sid)
		return nil, ErrSessionNotFound
	}
	st.endLocked()
	if genErr != nil {
		s.log.Printf("session %s: regenerate layer %d failed: %v", sid, index, genErr)
		st.lastError = fmt.Sprintf("Couldn't re-render %s. Try again.", g.Name)
	} else {
		st.history.ReplaceAt(index, handle)
		st.poseIndex = 0
		st.lastError = ""
	}
	notifyLocked(st)
	snap := s.snapshotLocked(st)
	s.mu.Unlock()
	return snap, nil
}

// RemoveLayer steps the outfit back to just below index, keeping the
// removed layers around for a cheap re-apply. Index 0 removes the model
// itself: a full reset back to the upload state, custom wardrobe included.
func (s *Service) RemoveLayer(ctx context.Context, id string, index int) (*Snapshot, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snap, purge, err := s.removeLayerLocked(st, index)
	sid := st.id
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if purge {
		if err := s.store.Purge(ctx, sid); err != nil {
			s.log.Printf("session %s: purge after remove: %v", sid, err)
		}
	}
	return snap, nil
}

// Undo removes the top layer of the visible outfit.
func (s *Service) Undo(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snap, purge, err := s.removeLayerLocked(st, st.history.Position())
	sid := st.id
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if purge {
		if err := s.store.Purge(ctx, sid); err != nil {
			s.log.Printf("session %s: purge after undo: %v", sid, err)
		}
	}
	return snap, nil
}

// removeLayerLocked reports whether the caller must purge the session's
// stored renders once the lock is released.
func (s *Service) removeLayerLocked(st *session, index int) (*Snapshot, bool, error) {
	if st.busy {
		return s.snapshotLocked(st), false, nil
	}
	if st.history.Empty() {
		return nil, false, ErrNoModel
	}
	if index < 0 || index > st.history.Position() {
		return nil, false, fmt.Errorf("%w: %d", ErrLayerIndex, index)
	}
	if index == 0 {
		return s.resetLocked(st), true, nil
	}
	st.history.Rewind(index)
	st.poseIndex = 0
	st.lastError = ""
	st.touchLocked()
	notifyLocked(st)
	return s.snapshotLocked(st), false, nil
}

// SelectPose moves the pose selector. The selector moves immediately;
// if the pose is not rendered yet for the active layer, a generation
// runs and the selector rolls back on failure.
func (s *Service) SelectPose(ctx context.Context, id string, target int) (*Snapshot, error) {
	if !tryon.ValidPoseIndex(target) {
		return nil, fmt.Errorf("%w: %d", ErrPoseIndex, target)
	}
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return s.changePoseLocked(ctx, st, target)
}

// StepPose walks the pose list. Backward steps only revisit rendered
// poses and are free; a forward step past the last rendered pose renders
// the next one in the master order.
func (s *Service) StepPose(ctx context.Context, id string, dir int) (*Snapshot, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.history.Empty() {
		if st.busy {
			snap := s.snapshotLocked(st)
			s.mu.Unlock()
			return snap, nil
		}
		s.mu.Unlock()
		return nil, ErrNoModel
	}

	cached := st.history.Active().CachedPoseIndices()
	cur := st.poseIndex
	var target int
	if dir < 0 {
		if len(cached) < 2 {
			snap := s.snapshotLocked(st)
			s.mu.Unlock()
			return snap, nil
		}
		target = cached[len(cached)-1]
		for _, i := range cached {
			if i < cur {
				target = i
			}
		}
	} else {
		target = -1
		for _, i := range cached {
			if i > cur {
				target = i
				break
			}
		}
		if target < 0 {
			target = (cur + 1) % tryon.PoseCount()
		}
	}
	return s.changePoseLocked(ctx, st, target)
}

// changePoseLocked is entered holding s.mu and returns with it released.
// Poses already rendered for the active layer switch instantly even while
// a generation is in flight; only a cache miss is subject to the busy drop.
func (s *Service) changePoseLocked(ctx context.Context, st *session, target int) (*Snapshot, error) {
	if target == st.poseIndex {
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}

	label := tryon.PoseLabel(target)
	if !st.history.Empty() {
		if _, ok := st.history.Active().PoseImage(label); ok {
			st.poseIndex = target
			st.lastError = ""
			st.touchLocked()
			notifyLocked(st)
			snap := s.snapshotLocked(st)
			s.mu.Unlock()
			return snap, nil
		}
	}
	if st.busy {
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}
	if st.history.Empty() {
		s.mu.Unlock()
		return nil, ErrNoModel
	}

	prev := st.poseIndex
	st.poseIndex = target
	st.touchLocked()

	active := st.history.Active()
	st.beginLocked(ActivityPosing)
	name := st.nextRenderNameLocked()
	base := active.Representative()
	pos := st.history.Position()
	sid := st.id
	notifyLocked(st)
	s.mu.Unlock()

	var handle string
	baseImg, genErr := s.resolver.Resolve(ctx, sid, base)
	if genErr == nil {
		var out genimage.Image
		out, genErr = s.gateway.GeneratePose(ctx, baseImg, label)
		if genErr == nil {
			handle, genErr = s.persist(ctx, sid, name, out)
		}
	}

	s.mu.Lock()
	st, ok := s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		s.discard(ctx, sid)
		return nil, ErrSessionNotFound
	}
	st.endLocked()
	if genErr != nil {
		s.log.Printf("session %s: pose %q failed: %v", sid, label, genErr)
		st.lastError = "Couldn't render that pose. Try again."
		// A cached-pose switch may have moved the selector during the
		// call; roll back only the untouched optimistic move.
		if st.poseIndex == target {
			st.poseIndex = prev
		}
	} else {
		st.history.CachePose(pos, label, handle)
		st.lastError = ""
	}
	notifyLocked(st)
	snap := s.snapshotLocked(st)
	s.mu.Unlock()
	return snap, nil
}

// AddGarment registers a custom garment in the session's wardrobe. The
// image content is only checked when the garment is first tried on.
func (s *Service) AddGarment(_ context.Context, id, name, image string) (tryon.Garment, error) {
	image = strings.TrimSpace(image)
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return tryon.Garment{}, err
	}
	if !resolver.ValidForm(image) {
		s.mu.Unlock()
		return tryon.Garment{}, fmt.Errorf("%w: unrecognized image handle", ErrBadImage)
	}
	g, err := st.wardrobe.Add(name, image)
	if err == nil {
		st.touchLocked()
	}
	s.mu.Unlock()
	return g, err
}

// Reset returns the session to its initial state: no model, catalog-only
// wardrobe, no error. Idempotent; dropped while a generation is in flight.
func (s *Service) Reset(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	st, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.busy {
		snap := s.snapshotLocked(st)
		s.mu.Unlock()
		return snap, nil
	}
	snap := s.resetLocked(st)
	sid := st.id
	s.mu.Unlock()

	if err := s.store.Purge(ctx, sid); err != nil {
		s.log.Printf("session %s: purge after reset: %v", sid, err)
	}
	return snap, nil
}

func (s *Service) resetLocked(st *session) *Snapshot {
	st.history.Clear()
	st.wardrobe.Reset()
	st.poseIndex = 0
	st.lastError = ""
	st.touchLocked()
	notifyLocked(st)
	return s.snapshotLocked(st)
}

// ClearError dismisses the session's error message.
func (s *Service) ClearError(id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if st.lastError != "" {
		st.lastError = ""
		st.touchLocked()
		notifyLocked(st)
	}
	return s.snapshotLocked(st), nil
}

func (s *Service) renderTryOn(ctx context.Context, sid, baseHandle string, g tryon.Garment) (genimage.Image, error) {
	base, err := s.resolver.Resolve(ctx, sid, baseHandle)
	if err != nil {
		return genimage.Image{}, fmt.Errorf("resolve base: %w", err)
	}
	garment, err := s.resolver.Resolve(ctx, sid, g.Image)
	if err != nil {
		return genimage.Image{}, fmt.Errorf("resolve garment: %w", err)
	}
	return s.gateway.GenerateTryOn(ctx, base, garment, g.Name)
}

func (s *Service) persist(ctx context.Context, sid, name string, img genimage.Image) (string, error) {
	if err := s.store.Put(ctx, sid, name, img.Data); err != nil {
		return "", fmt.Errorf("store render: %w", err)
	}
	return resolver.StoreHandle(sid, name), nil
}

// discard cleans up renders that landed after their session was deleted.
func (s *Service) discard(ctx context.Context, sid string) {
	if err := s.store.Purge(ctx, sid); err != nil {
		s.log.Printf("session %s: discard orphaned renders: %v", sid, err)
	}
}
