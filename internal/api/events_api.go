package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

// DispatchRouter is the router surface the event API drives. Ingestion
// normally arrives over Pub/Sub; these handlers are the direct HTTP door
// for shells that report interactions synchronously.
type DispatchRouter interface {
	OnTapOpened(ctx context.Context, msg routing.InboundMessage) bool
	OnColdStart(ctx context.Context, msg *routing.InboundMessage) bool
}

type EventsAPI struct {
	Router DispatchRouter
	Logger *slog.Logger
}

func NewEventsAPI(router DispatchRouter, logger *slog.Logger) *EventsAPI {
	return &EventsAPI{
		Router: router,
		Logger: logger,
	}
}

// ReportTap records a notification the user tapped from the system tray.
func (api *EventsAPI) ReportTap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var msg routing.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if msg.ID == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing message id")
		return
	}

	// The channel is implied by the endpoint; a client-supplied value is
	// overwritten rather than trusted.
	msg.ReceivedVia = routing.ChannelBackgroundTap

	dispatched := api.Router.OnTapOpened(ctx, msg)
	api.Logger.Debug("Tap event reported", "message_id", msg.ID, "dispatched", dispatched)

	w.WriteHeader(http.StatusNoContent)
}

// ReportLaunch records an app launch. An empty body means the app started
// cold with no pending notification, which still has to reach the router so
// it can log the no-op.
func (api *EventsAPI) ReportLaunch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var msg *routing.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if msg != nil {
		if msg.ID == "" {
			response.WriteJSONError(w, http.StatusBadRequest, "missing message id")
			return
		}
		msg.ReceivedVia = routing.ChannelColdStart
	}

	dispatched := api.Router.OnColdStart(ctx, msg)
	api.Logger.Debug("Launch event reported", "dispatched", dispatched)

	w.WriteHeader(http.StatusNoContent)
}
