package server

import (
	"fitroom/internal/session"
	"fitroom/internal/tryon"
)

type SetModelRequest struct {
	Image string `json:"image" doc:"Person photo as data URI, remote URL, or stored handle"`
}

type SelectGarmentRequest struct {
	GarmentID string `json:"garment_id" doc:"ID of a wardrobe garment to try on"`
}

type SelectPoseRequest struct {
	Index int `json:"index" doc:"Pose index in master order"`
}

type StepPoseRequest struct {
	Direction string `json:"direction" enum:"next,prev" doc:"Walk direction through poses"`
}

type AddGarmentRequest struct {
	Name  string `json:"name" doc:"Display name for the custom garment"`
	Image string `json:"image" doc:"Garment photo as data URI, remote URL, or stored handle"`
}

type WardrobeResponse struct {
	Items []tryon.Garment `json:"items"`
}

type PosesResponse struct {
	Poses   []string `json:"poses"`
	Default string   `json:"default"`
}

type snapshotOutput struct {
	Body session.Snapshot
}

type garmentOutput struct {
	Body tryon.Garment
}

type wardrobeOutput struct {
	Body WardrobeResponse
}

type posesOutput struct {
	Body PosesResponse
}
