package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-dispatch-router/pkg/routing"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// DeviceProvider is the provider surface the device API needs: token
// verification, permission bookkeeping and topic membership.
type DeviceProvider interface {
	SetToken(ctx context.Context, token string) error
	RecordPermission(status routing.PermissionStatus)
	SubscribeToTopic(ctx context.Context, token, topic string) error
	UnsubscribeFromTopic(ctx context.Context, token, topic string) error
}

type DeviceAPI struct {
	Store    routing.DeviceStore
	Provider DeviceProvider
	Topics   []string
	Logger   *slog.Logger
}

func NewDeviceAPI(store routing.DeviceStore, provider DeviceProvider, topics []string, logger *slog.Logger) *DeviceAPI {
	return &DeviceAPI{
		Store:    store,
		Provider: provider,
		Topics:   topics,
		Logger:   logger,
	}
}

type RegisterDeviceRequest struct {
	Token      string                   `json:"token"`
	Platform   string                   `json:"platform"`
	Permission routing.PermissionStatus `json:"permission"`
}

func (api *DeviceAPI) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, _ := urn.Parse(userID)

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}
	if req.Permission == "" {
		req.Permission = routing.PermissionUndetermined
	}

	if err := api.Provider.SetToken(ctx, req.Token); err != nil {
		if errors.Is(err, routing.ErrTokenUnavailable) {
			api.Logger.Warn("RegisterDevice: token rejected by provider", "err", err)
			response.WriteJSONError(w, http.StatusBadRequest, "invalid token")
			return
		}
		api.Logger.Error("RegisterDevice: provider check failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "provider failed")
		return
	}
	api.Provider.RecordPermission(req.Permission)

	device := routing.Device{
		Token:      req.Token,
		Platform:   req.Platform,
		Permission: req.Permission,
	}
	if err := api.Store.Register(ctx, userURN, device); err != nil {
		api.Logger.Error("failed to register device", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	// Topic membership is best effort. A device that cannot be subscribed
	// still receives direct messages, so registration does not fail here.
	if device.AlertsEnabled() {
		for _, topic := range api.Topics {
			if err := api.Provider.SubscribeToTopic(ctx, req.Token, topic); err != nil {
				api.Logger.Warn("failed to subscribe device to topic", "topic", topic, "err", err)
			}
		}
	} else {
		api.Logger.Info("RegisterDevice: alerts disabled, skipping topic subscriptions", "user", userURN, "permission", req.Permission)
	}

	w.WriteHeader(http.StatusNoContent)
}

type UnregisterDeviceRequest struct {
	Token string `json:"token"`
}

func (api *DeviceAPI) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, _ := urn.Parse(userID)

	var req UnregisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	for _, topic := range api.Topics {
		if err := api.Provider.UnsubscribeFromTopic(ctx, req.Token, topic); err != nil {
			api.Logger.Warn("failed to unsubscribe device from topic", "topic", topic, "err", err)
		}
	}

	if err := api.Store.Unregister(ctx, userURN, req.Token); err != nil {
		// Log but don't fail hard; idempotency is preferred for unregister
		api.Logger.Warn("failed to unregister device", "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
