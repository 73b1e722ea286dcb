package http

import (
	"net/http"
	"time"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/auth/service"
	"github.com/mentis-project/accounts/internal/common/constants"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	commonhttp "github.com/mentis-project/accounts/internal/common/http"
	"github.com/mentis-project/accounts/internal/common/jwtverify"
	"github.com/mentis-project/accounts/internal/common/logger"
	userdomain "github.com/mentis-project/accounts/internal/user/domain"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	PhoneNo   string `json:"phone_no" validate:"max=20"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type updateProfileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	PhoneNo   *string `json:"phone_no" validate:"omitempty,max=20"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	Password1   string `json:"password1"`
	Password2   string `json:"password2"`
}

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type updateProfileResponse struct {
	User   userdomain.Profile `json:"user"`
	Detail string             `json:"detail"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type Handler struct {
	auth   *service.AuthService
	log    *logger.Logger
	errors *commonhttp.ErrorHandler
}

// NewHandler routes the account endpoints. Routes that act on the caller's
// own account require a bearer access token checked by verifier.
func NewHandler(auth *service.AuthService, verifier jwtverify.Verifier, log *logger.Logger, requestTimeout time.Duration, pinger commonhttp.Pinger) http.Handler {
	h := &Handler{auth: auth, log: log, errors: commonhttp.NewErrorHandler(log)}

	bearer := jwtverify.Middleware(verifier, log)
	timeout := commonhttp.WithTimeout(requestTimeout)
	route := func(method string, fn http.HandlerFunc) http.HandlerFunc {
		return commonhttp.RequireMethod(method)(timeout(fn))
	}
	protected := func(method string, fn http.HandlerFunc) http.HandlerFunc {
		return commonhttp.RequireMethod(method)(bearer(timeout(fn)).ServeHTTP)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.root)
	mux.HandleFunc("/health", commonhttp.HealthHandler(log, pinger))
	mux.HandleFunc("/user/register", route(http.MethodPost, h.register))
	mux.HandleFunc("/user/login", route(http.MethodPost, h.login))
	mux.HandleFunc("/token/refresh/{$}", route(http.MethodPost, h.refresh))
	mux.HandleFunc("/user/logout", protected(http.MethodPost, h.logout))
	mux.HandleFunc("/user/update", protected(http.MethodPut, h.updateProfile))
	mux.HandleFunc("/user/update-password", protected(http.MethodPut, h.updatePassword))
	return mux
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		commonhttp.WriteErrorEnvelope(w, http.StatusNotFound, commonhttp.CodeNotFound, "not found", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", http.MethodGet)
		commonhttp.WriteErrorEnvelope(w, http.StatusMethodNotAllowed, commonhttp.CodeMethodNotAllowed, "method not allowed", nil, commonhttp.TraceIDFromContext(r.Context()))
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, constants.RootBanner)
}

// decode reads and validates the request body, writing the error response
// itself when it returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := commonhttp.DecodeJSON(r, dst); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": "decode_request",
			"path":   r.URL.Path,
		}).Warnf("invalid request body: %v", err)
		h.errors.HandleError(w, r, err)
		return false
	}
	if err := commonhttp.ValidateRequest(dst); err != nil {
		h.errors.HandleError(w, r, err)
		return false
	}
	return true
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (jwtverify.Principal, bool) {
	p, ok := jwtverify.FromContext(r.Context())
	if !ok {
		h.errors.HandleError(w, r, commonerrors.ErrUnauthorized)
	}
	return p, ok
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PhoneNo:   req.PhoneNo,
		Password1: req.Password1,
		Password2: req.Password2,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	writeTokenPair(w, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	writeTokenPair(w, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.auth.Logout(r.Context(), p.UserID, req.Refresh); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusResetContent)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.auth.UpdateProfile(r.Context(), p.UserID, userdomain.ProfileChanges{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PhoneNo:   req.PhoneNo,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, updateProfileResponse{User: profile, Detail: "updated user details!"})
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.auth.UpdatePassword(r.Context(), p.UserID, service.UpdatePasswordInput{
		OldPassword: req.OldPassword,
		Password1:   req.Password1,
		Password2:   req.Password2,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, detailResponse{Detail: "password updated!"})
}

func writeTokenPair(w http.ResponseWriter, pair domain.TokenPair) {
	w.Header().Set("Cache-Control", "no-store")
	commonhttp.WriteJSON(w, http.StatusOK, tokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}
