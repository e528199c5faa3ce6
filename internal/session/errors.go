package session

import "errors"

// Request validation errors. These are returned to the caller and never
// touch session state; generation and storage failures instead land in
// the session's error slot so the UI can surface them.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrGarmentNotFound = errors.New("garment not found")
	ErrNoModel         = errors.New("no model image set")
	ErrLayerIndex      = errors.New("layer index out of range")
	ErrPoseIndex       = errors.New("pose index out of range")
	ErrBadImage        = errors.New("image is not usable")
)
