package genimage

import (
	"context"
	"errors"
)

// ErrNoImage is returned when the model replied without an image payload
// (text-only answer, safety refusal, empty candidates).
var ErrNoImage = errors.New("no image in model response")

// Image is a rendered image payload together with its MIME type.
type Image struct {
	Data []byte
	MIME string
}

// Gateway abstracts the image generation backend. It only focuses on the
// API calls themselves. Cross-cutting concerns (retries, logging) are
// applied via Middleware.
type Gateway interface {
	// GenerateModel turns a person photo into a standardized full-body
	// model shot on a neutral background.
	GenerateModel(ctx context.Context, person Image) (Image, error)

	// GenerateTryOn renders the garment onto the person in the base image,
	// leaving identity and background unchanged.
	GenerateTryOn(ctx context.Context, base, garment Image, garmentName string) (Image, error)

	// GeneratePose re-renders the person and outfit from the base image in
	// the requested pose.
	GeneratePose(ctx context.Context, base Image, pose string) (Image, error)

	Name() string
	Close() error
}
