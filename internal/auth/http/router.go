package http

import (
	"errors"
	"net/http"

	"github.com/ysamarin/postline/backend/internal/auth/service"
	commonhttp "github.com/ysamarin/postline/backend/internal/common/http"
	"github.com/ysamarin/postline/backend/internal/common/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type accessResponse struct {
	Access string `json:"access"`
}

const (
	msgRefreshNotProvided = "Refresh token not provided"
	msgTokenInvalid       = "Token is invalid or expired"
)

type Handler struct {
	auth   *service.AuthService
	errors *commonhttp.ErrorHandler
	log    *logger.Logger
}

// NewHandler mounts the token routes on mux. Login and refresh are public;
// logout requires a valid bearer token and checks it before looking at the
// body, so an unauthenticated call is always a 401.
func NewHandler(
	mux *http.ServeMux,
	auth *service.AuthService,
	log *logger.Logger,
	authMW func(next http.Handler) http.Handler,
) {
	h := &Handler{
		auth:   auth,
		errors: commonhttp.NewErrorHandler(log),
		log:    log,
	}

	mux.HandleFunc("/api/token/", h.login)
	mux.HandleFunc("/api/token/refresh/", h.refresh)
	mux.Handle("/api/logout/", authMW(http.HandlerFunc(h.logout)))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("login failed: invalid json: %v", err)
		commonhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	pair, err := h.auth.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			commonhttp.WriteError(w, http.StatusUnauthorized, "no active account found with the given credentials")
			return
		}
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, tokenPairResponse{
		Access:  pair.AccessToken,
		Refresh: pair.RefreshToken,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("refresh failed: invalid json: %v", err)
		commonhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	access, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) || errors.Is(err, service.ErrRefreshTokenExpired) {
			commonhttp.WriteError(w, http.StatusUnauthorized, "token is invalid or expired")
			return
		}
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, accessResponse{Access: access})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		commonhttp.WriteErrorBody(w, http.StatusBadRequest, msgRefreshNotProvided)
		return
	}

	if err := h.auth.Logout(r.Context(), req.Refresh); err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshTokenNotProvided):
			commonhttp.WriteErrorBody(w, http.StatusBadRequest, msgRefreshNotProvided)
		case errors.Is(err, service.ErrInvalidRefreshToken), errors.Is(err, service.ErrRefreshTokenExpired):
			commonhttp.WriteErrorBody(w, http.StatusBadRequest, msgTokenInvalid)
		default:
			h.errors.HandleError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusResetContent)
}
