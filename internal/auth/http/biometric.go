package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rentora/rentora/internal/auth/service"
	"github.com/rentora/rentora/pkg/httpx"
	"github.com/rentora/rentora/pkg/slogx"
)

// BiometricHandler covers device enrollment, the challenge/response
// login flow and device management.
type BiometricHandler struct {
	BiometricService *service.BiometricService
}

type biometricEnrollRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
	PublicKey  string `json:"public_key"`
}

// HandleEnroll handles POST /v1/auth/biometric/enroll.
func (h *BiometricHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	var req biometricEnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" || req.PublicKey == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing device_id or public_key")
		return
	}

	cred, err := h.BiometricService.Enroll(ctx, userID, req.DeviceID, req.DeviceName, req.DeviceType, req.PublicKey)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPublicKey):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_public_key", "Public key must be base64-encoded DER")
		case errors.Is(err, service.ErrDeviceAlreadyEnrolled):
			httpx.WriteError(w, http.StatusConflict, "device_already_enrolled", "This device is already enrolled")
		default:
			log.Error("biometric enrollment failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, cred)
}

type biometricChallengeRequest struct {
	DeviceID string `json:"device_id"`
}

// HandleChallenge handles POST /v1/auth/biometric/challenge.
func (h *BiometricHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req biometricChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing device_id")
		return
	}

	challenge, err := h.BiometricService.Challenge(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, service.ErrBiometricVerification) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Biometric authentication unavailable for this device")
			return
		}
		log.Error("biometric challenge failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, challenge)
}

type biometricAuthenticateRequest struct {
	DeviceID     string `json:"device_id"`
	CredentialID string `json:"credential_id"`
	Challenge    string `json:"challenge"`
	Signature    string `json:"signature"`
}

// HandleAuthenticate handles POST /v1/auth/biometric/authenticate.
func (h *BiometricHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req biometricAuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.DeviceID == "" || req.CredentialID == "" || req.Challenge == "" || req.Signature == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing required fields")
		return
	}

	result, err := h.BiometricService.Authenticate(ctx, req.DeviceID, req.CredentialID, req.Challenge, req.Signature)
	if err != nil {
		if errors.Is(err, service.ErrBiometricVerification) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Biometric verification failed")
			return
		}
		log.Error("biometric authentication failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, result)
}

type biometricReverifyRequest struct {
	DeviceID     string `json:"device_id"`
	CredentialID string `json:"credential_id"`
	Challenge    string `json:"challenge"`
	Signature    string `json:"signature"`
}

// HandleReverify handles POST /v1/auth/biometric/reverify.
func (h *BiometricHandler) HandleReverify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	var req biometricReverifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	err := h.BiometricService.Reverify(ctx, userID, req.DeviceID, req.CredentialID, req.Challenge, req.Signature)
	if err != nil {
		if errors.Is(err, service.ErrBiometricVerification) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Biometric verification failed")
			return
		}
		log.Error("biometric reverification failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Verified",
	})
}

// HandleListDevices handles GET /v1/auth/biometric/devices.
func (h *BiometricHandler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	devices, err := h.BiometricService.ListDevices(ctx, userID)
	if err != nil {
		log.Error("device list failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
	})
}

type biometricUpdateDeviceRequest struct {
	DeviceName *string `json:"device_name"`
	Active     *bool   `json:"active"`
}

// HandleUpdateDevice handles PATCH /v1/auth/biometric/devices/{id}.
func (h *BiometricHandler) HandleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing device id")
		return
	}

	var req biometricUpdateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.DeviceName == nil && req.Active == nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Nothing to update")
		return
	}

	cred, err := h.BiometricService.UpdateDevice(ctx, userID, id, req.DeviceName, req.Active)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "device_not_found", "No such enrolled device")
			return
		}
		log.Error("device update failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, cred)
}

// HandleRemoveDevice handles DELETE /v1/auth/biometric/devices/{id}.
func (h *BiometricHandler) HandleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing device id")
		return
	}

	if err := h.BiometricService.RemoveDevice(ctx, userID, id); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "device_not_found", "No such enrolled device")
			return
		}
		log.Error("device removal failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Device removed",
	})
}

type biometricSettingsRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleSettings handles PUT /v1/auth/biometric/settings.
func (h *BiometricHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	var req biometricSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.BiometricService.SetEnabled(ctx, userID, req.Enabled); err != nil {
		if errors.Is(err, service.ErrNoCredentials) {
			httpx.WriteError(w, http.StatusBadRequest, "no_biometric_credentials", "Enroll a device before enabling biometric login")
			return
		}
		log.Error("biometric settings update failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"biometric_enabled": req.Enabled,
	})
}
