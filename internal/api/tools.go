package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/toolrunner/internal/api/models"
)

func (s *Server) registerToolRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "locate-tool",
		Method:      http.MethodGet,
		Path:        "/api/tools/{name}",
		Summary:     "Locate Tool",
		Description: "Resolve a tool on PATH or in the fallback directory. 404 means the feature backed by the tool is unavailable.",
		Tags:        []string{"tools"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 501},
	}, func(ctx context.Context, input *models.ToolInput) (*models.ToolResponse, error) {
		if s.locator == nil {
			return nil, huma.Error501NotImplemented("tool lookup is not configured")
		}
		path, ok := s.locator.Locate(input.Name)
		if !ok {
			return nil, huma.Error404NotFound("tool not found: " + input.Name)
		}
		return &models.ToolResponse{Body: models.ToolData{Name: input.Name, Path: path}}, nil
	})
}
