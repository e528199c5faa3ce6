package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"fitroom/internal/imagestore"
	"fitroom/internal/middleware"
	"fitroom/internal/session"
)

// Config for the HTTP API handler.
type Config struct {
	Sessions *session.Service
	Store    imagestore.Store
	Metrics  func() imagestore.MetricsSnapshot
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"session_not_found"`
	Message string         `json:"message" example:"session not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type apiServer struct {
	sessions *session.Service
	store    imagestore.Store
	metrics  func() imagestore.MetricsSnapshot
}

// New returns an HTTP handler exposing the Fitroom API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	s := &apiServer{
		sessions: cfg.Sessions,
		store:    cfg.Store,
		metrics:  cfg.Metrics,
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Fitroom API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	s.registerSessions(group)
	s.registerLayers(group)
	s.registerPoses(group)
	s.registerWardrobe(group)

	router.Get(basePath+"/sessions/{id}/watch", s.handleWatch)
	router.Get("/images/{session}/{name}", s.handleImage)
	router.Get("/debug/storecache", s.handleStoreMetrics)

	return middleware.CORS(router), nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return newAPIError(http.StatusNotFound, "session_not_found", err.Error(), nil)
	case errors.Is(err, session.ErrGarmentNotFound):
		return newAPIError(http.StatusNotFound, "garment_not_found", err.Error(), nil)
	case errors.Is(err, session.ErrNoModel):
		return newAPIError(http.StatusConflict, "no_model", err.Error(), nil)
	case errors.Is(err, session.ErrLayerIndex),
		errors.Is(err, session.ErrPoseIndex),
		errors.Is(err, session.ErrBadImage):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *apiServer) registerSessions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Create fitting session",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*snapshotOutput, error) {
		return &snapshotOutput{Body: *s.sessions.Create(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Get session state",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.Get(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-session",
		Method:        http.MethodDelete,
		Path:          "/sessions/{id}",
		Summary:       "Delete session",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := s.sessions.Delete(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-model",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/model",
		Summary:     "Upload person photo and build the model",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body SetModelRequest
	}) (*snapshotOutput, error) {
		if strings.TrimSpace(input.Body.Image) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "image is required", nil)
		}
		snap, err := s.sessions.SetModel(ctx, input.ID, input.Body.Image)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-garment",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/garment",
		Summary:     "Try a garment on top of the current outfit",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body SelectGarmentRequest
	}) (*snapshotOutput, error) {
		if strings.TrimSpace(input.Body.GarmentID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "garment_id is required", nil)
		}
		snap, err := s.sessions.SelectGarment(ctx, input.ID, input.Body.GarmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "undo",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/undo",
		Summary:     "Undo the most recent layer",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.Undo(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/reset",
		Summary:     "Reset session to its initial state",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.Reset(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-error",
		Method:      http.MethodDelete,
		Path:        "/sessions/{id}/error",
		Summary:     "Dismiss the current error message",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.ClearError(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})
}

func (s *apiServer) registerLayers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "remove-layer",
		Method:      http.MethodDelete,
		Path:        "/sessions/{id}/layers/{index}",
		Summary:     "Remove a layer and everything above it",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Index int    `path:"index"`
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.RemoveLayer(ctx, input.ID, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "regenerate-layer",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/layers/{index}/regenerate",
		Summary:     "Re-render a garment layer, dropping layers above it",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Index int    `path:"index"`
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.RegenerateLayer(ctx, input.ID, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})
}

func (s *apiServer) registerPoses(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-poses",
		Method:      http.MethodGet,
		Path:        "/poses",
		Summary:     "List available poses",
	}, func(ctx context.Context, _ *struct{}) (*posesOutput, error) {
		poses := s.sessions.Poses()
		return &posesOutput{Body: PosesResponse{
			Poses:   poses,
			Default: poses[0],
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-pose",
		Method:      http.MethodPut,
		Path:        "/sessions/{id}/pose",
		Summary:     "Show the outfit in a specific pose",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body SelectPoseRequest
	}) (*snapshotOutput, error) {
		snap, err := s.sessions.SelectPose(ctx, input.ID, input.Body.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "step-pose",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/pose/step",
		Summary:     "Step to the next or previous pose",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body StepPoseRequest
	}) (*snapshotOutput, error) {
		var dir int
		switch strings.ToLower(strings.TrimSpace(input.Body.Direction)) {
		case "next":
			dir = 1
		case "prev":
			dir = -1
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "direction must be next or prev", nil)
		}
		snap, err := s.sessions.StepPose(ctx, input.ID, dir)
		if err != nil {
			return nil, handleError(err)
		}
		return &snapshotOutput{Body: *snap}, nil
	})
}

func (s *apiServer) registerWardrobe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-wardrobe",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/wardrobe",
		Summary:     "List catalog and custom garments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*wardrobeOutput, error) {
		items, err := s.sessions.Wardrobe(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &wardrobeOutput{Body: WardrobeResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-garment",
		Method:        http.MethodPost,
		Path:          "/sessions/{id}/wardrobe",
		Summary:       "Add a custom garment to the wardrobe",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddGarmentRequest
	}) (*garmentOutput, error) {
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if strings.TrimSpace(input.Body.Image) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "image is required", nil)
		}
		g, err := s.sessions.AddGarment(ctx, input.ID, input.Body.Name, input.Body.Image)
		if err != nil {
			return nil, handleError(err)
		}
		return &garmentOutput{Body: g}, nil
	})
}
