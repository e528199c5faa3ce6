// Package session owns the per-user try-on state machine: the outfit
// history, the pose selector, the wardrobe and the busy flag, plus the
// generation flows that advance them.
package session

import (
	"fmt"
	"time"

	"fitroom/internal/tryon"
	"fitroom/internal/wardrobe"
)

// Activity names what a busy session is doing. Idle sessions accept
// mutations; every other value means a generation is in flight.
type Activity string

const (
	ActivityIdle      Activity = "idle"
	ActivityModeling  Activity = "modeling"
	ActivityFitting   Activity = "fitting"
	ActivityRefitting Activity = "refitting"
	ActivityPosing    Activity = "posing"
)

type session struct {
	id        string
	history   tryon.History
	wardrobe  *wardrobe.Wardrobe
	poseIndex int
	busy      bool
	activity  Activity
	lastError string
	renderSeq int
	changed   chan struct{}
	createdAt time.Time
	updatedAt time.Time
}

func (st *session) touchLocked() {
	st.updatedAt = time.Now()
}

// notifyLocked wakes every subscriber waiting on this session.
func notifyLocked(st *session) {
	if st == nil {
		return
	}
	close(st.changed)
	st.changed = make(chan struct{})
}

func (st *session) nextRenderNameLocked() string {
	st.renderSeq++
	return fmt.Sprintf("render-%04d.png", st.renderSeq)
}

// beginLocked flips the session into a busy activity. The caller must
// have verified the session is idle.
func (st *session) beginLocked(a Activity) {
	st.busy = true
	st.activity = a
	st.touchLocked()
}

func (st *session) endLocked() {
	st.busy = false
	st.activity = ActivityIdle
	st.touchLocked()
}
