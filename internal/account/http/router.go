package http

import (
	"net/http"

	"github.com/ysamarin/postline/backend/internal/account/service"
	commonhttp "github.com/ysamarin/postline/backend/internal/common/http"
	"github.com/ysamarin/postline/backend/internal/common/jwtverify"
	"github.com/ysamarin/postline/backend/internal/common/logger"
)

type Handler struct {
	accounts *service.AccountService
	errors   *commonhttp.ErrorHandler
	log      *logger.Logger
}

// NewHandler mounts the registration and profile routes on mux. The profile
// route goes through authMW; registration is public.
func NewHandler(
	mux *http.ServeMux,
	accounts *service.AccountService,
	log *logger.Logger,
	authMW func(next http.Handler) http.Handler,
) {
	h := &Handler{
		accounts: accounts,
		errors:   commonhttp.NewErrorHandler(log),
		log:      log,
	}

	mux.HandleFunc("/api/register/", h.register)
	mux.Handle("/api/user/", authMW(http.HandlerFunc(h.profile)))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req service.RegisterInput
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("register failed: invalid json: %v", err)
		commonhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	profile, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		if vErr, ok := service.AsValidationError(err); ok {
			commonhttp.WriteFieldErrors(w, commonhttp.FieldErrors(vErr.Fields))
			return
		}
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, profile)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	profile, err := h.accounts.Profile(r.Context(), claims.UserID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, profile)
}
