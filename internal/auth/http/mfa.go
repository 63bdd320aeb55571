package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rentora/rentora/internal/auth/service"
	"github.com/rentora/rentora/pkg/httpx"
	"github.com/rentora/rentora/pkg/slogx"
)

// MFAHandler covers TOTP setup, the login-time second factor, backup
// codes and disable.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleSetup handles POST /v1/auth/mfa/setup. The response carries the
// raw seed, provisioning URI and backup codes, shown exactly once.
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	setup, err := h.MFAService.Setup(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrMFAAlreadyEnabled) {
			httpx.WriteError(w, http.StatusConflict, "mfa_already_enabled", "MFA is already enabled for this account")
			return
		}
		log.Error("mfa setup failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, setup)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

// HandleVerifySetup handles POST /v1/auth/mfa/verify-setup.
func (h *MFAHandler) HandleVerifySetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing TOTP code")
		return
	}

	if err := h.MFAService.VerifySetup(ctx, userID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "Invalid TOTP code")
		case errors.Is(err, service.ErrMFANotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enrolled", "Start MFA setup first")
		case errors.Is(err, service.ErrMFAAlreadyEnabled):
			httpx.WriteError(w, http.StatusConflict, "mfa_already_enabled", "MFA is already enabled for this account")
		default:
			log.Error("mfa setup verification failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "MFA enabled",
	})
}

type mfaVerifyLoginRequest struct {
	PendingToken string `json:"pending_token"`
	Code         string `json:"code"`
}

// HandleVerifyLogin handles POST /v1/auth/mfa/verify: the second half of
// an MFA-gated login.
func (h *MFAHandler) HandleVerifyLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfaVerifyLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PendingToken == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing pending token or code")
		return
	}

	result, err := h.MFAService.VerifyLogin(ctx, req.PendingToken, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidGrant), errors.Is(err, service.ErrMFANotEnabled):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "Pending session is invalid or expired")
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_code", "Invalid verification code")
		default:
			log.Error("mfa login verification failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleStatus handles GET /v1/auth/mfa/status.
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	status, err := h.MFAService.Status(ctx, userID)
	if err != nil {
		log.Error("mfa status lookup failed", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, status)
}

// HandleRegenerateBackupCodes handles POST /v1/auth/mfa/backup-codes.
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing TOTP code")
		return
	}

	codes, err := h.MFAService.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "Invalid TOTP code")
		case errors.Is(err, service.ErrMFANotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enabled", "MFA is not enabled for this account")
		default:
			log.Error("backup code regeneration failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string][]string{
		"backup_codes": codes,
	})
}

// HandleDisable handles POST /v1/auth/mfa/disable.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Missing or invalid access token")
		return
	}

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing TOTP code")
		return
	}

	if err := h.MFAService.Disable(ctx, userID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "Invalid TOTP code")
		case errors.Is(err, service.ErrMFANotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enabled", "MFA is not enabled for this account")
		default:
			log.Error("mfa disable failed", "user_id", userID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "MFA disabled",
	})
}
