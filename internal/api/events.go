package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/toolrunner/internal/api/models"
	"github.com/smazurov/toolrunner/internal/events"
)

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events/stream",
		Summary:     "Run Event Stream",
		Description: "Run lifecycle and output events. The first event is the current run status.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"run-status":         models.RunStatusData{},
		"run-started":        events.RunStartedEvent{},
		"run-output":         events.RunOutputEvent{},
		"run-finished":       events.RunFinishedEvent{},
		"run-kill-requested": events.RunKillRequestedEvent{},
		"credential-cleanup": events.CredentialCleanupEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 256)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.RunStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RunOutputEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RunFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RunKillRequestedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CredentialCleanupEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(s.runStatus()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
