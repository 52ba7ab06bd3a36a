package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/toolrunner/internal/api/models"
	"github.com/smazurov/toolrunner/internal/metrics"
	"github.com/smazurov/toolrunner/internal/supervisor"
)

func (s *Server) registerRunRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "start-run",
		Method:        http.MethodPost,
		Path:          "/api/runs",
		Summary:       "Start Run",
		Description:   "Spawn the tool. Returns once the child is running; follow /api/events/stream or poll /api/runs/current for the outcome.",
		Tags:          []string{"runs"},
		DefaultStatus: http.StatusAccepted,
		Security:      withAuth(),
		Errors:        []int{401, 409, 412, 500},
	}, func(ctx context.Context, input *models.RunRequest) (*models.RunResponse, error) {
		req := supervisor.Request{
			Name:     input.Body.Name,
			Tool:     s.resolveTool(input.Body.Tool),
			Args:     input.Body.Args,
			Dir:      input.Body.Dir,
			Elevated: input.Body.Elevated,
		}

		run, err := s.runner.Start(ctx, req)
		if err != nil {
			return nil, s.handleSupervisorError(err)
		}
		return &models.RunResponse{Body: runToAPI(run)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-current-run",
		Method:      http.MethodGet,
		Path:        "/api/runs/current",
		Summary:     "Current Run",
		Description: "Running flag plus the current or most recent run with its outcome and cleanup result",
		Tags:        []string{"runs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.RunStatusResponse, error) {
		return &models.RunStatusResponse{Body: s.runStatus()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "kill-current-run",
		Method:      http.MethodPost,
		Path:        "/api/runs/current/kill",
		Summary:     "Kill Current Run",
		Description: "Send a termination request to the current child. A delivered request resolves the run as cancelled.",
		Tags:        []string{"runs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *struct{}) (*models.KillResponse, error) {
		killed, err := s.runner.Kill()
		if err != nil {
			return nil, s.handleSupervisorError(err)
		}
		return &models.KillResponse{Body: models.KillData{Killed: killed}}, nil
	})
}

// resolveTool maps a bare tool name through the locator. Paths and names
// the locator does not know are passed through to exec unchanged.
func (s *Server) resolveTool(tool string) string {
	if s.locator == nil || strings.ContainsRune(tool, '/') {
		return tool
	}
	if path, ok := s.locator.Locate(tool); ok {
		return path
	}
	return tool
}

func (s *Server) runStatus() models.RunStatusData {
	status := models.RunStatusData{
		Running: s.runner.IsRunning(),
		Totals:  metrics.Get(),
	}
	if run := s.runner.Last(); run != nil {
		data := runToAPI(run)
		status.Run = &data
	}
	return status
}

func runToAPI(run *supervisor.Run) models.RunData {
	data := models.RunData{
		ID:        run.ID,
		Name:      run.Request.DisplayName(),
		Tool:      run.Request.Tool,
		Args:      run.Request.Args,
		Elevated:  run.Request.Elevated,
		PID:       run.PID,
		StartedAt: run.StartedAt,
	}
	if data.Args == nil {
		data.Args = []string{}
	}
	if outcome, ok := run.Outcome(); ok {
		finished := run.FinishedAt()
		data.Outcome = &outcome
		data.FinishedAt = &finished
	}
	if result, ok := run.Cleanup(); ok && run.Request.Elevated {
		data.Cleanup = result.String()
	}
	return data
}

func (s *Server) handleSupervisorError(err error) error {
	msg := "cannot start run"
	var e *supervisor.Error
	if errors.As(err, &e) {
		msg = e.Message
	}

	switch supervisor.CodeOf(err) {
	case supervisor.CodeAlreadyRunning:
		return huma.Error409Conflict("process is already running", err)
	case supervisor.CodeNoProcessToKill:
		return huma.Error404NotFound("no process to kill", err)
	case supervisor.CodeMissingCredential:
		return huma.Error412PreconditionFailed("no elevation credential configured", err)
	case supervisor.CodeRelayInitFailed, supervisor.CodeSpawnFailed:
		s.logger.Error("Run failed to start", "error", err)
		return huma.Error500InternalServerError(msg, err)
	default:
		s.logger.Error("Unexpected supervisor error", "error", err)
		return huma.Error500InternalServerError("internal server error", err)
	}
}
