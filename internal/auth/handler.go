package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the auth endpoints. Login is rate limited per
// client IP to slow credential stuffing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
	})
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	TokenPair
	User userSummary `json:"user"`
}

type userSummary struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	PharmacyID int64    `json:"pharmacy_id,omitempty"`
	BranchID   int64    `json:"branch_id,omitempty"`
	IsManager  bool     `json:"is_manager"`
	Effective  []string `json:"effective_permissions"`
}

// Login verifies credentials and issues a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("email", req.Email))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}

	h.logger.Info("login", slog.Int64("user_id", account.ID), slog.String("role", string(account.Role)))
	httpx.JSON(w, http.StatusOK, loginResponse{
		TokenPair: pair,
		User:      summarize(*account),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a refresh token for a fresh pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid refresh token")
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the current access token and, when provided, the
// refresh token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", authz.ErrAuthenticationMissing.Error())
		return
	}
	var req logoutRequest
	_ = httpx.DecodeJSON(r, &req)

	if err := h.service.Logout(r.Context(), claims, req.RefreshToken); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated principal's profile with its derived
// effective permission set.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	claims := ClaimsFromContext(r.Context())
	if principal == nil || claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", authz.ErrAuthenticationMissing.Error())
		return
	}
	subject := claims.Subject()
	effective := authz.EffectivePermissions(subject)
	out := userSummary{
		ID:         subject.UserID,
		Role:       string(subject.UserRole),
		PharmacyID: subject.Pharmacy,
		BranchID:   subject.Branch,
		IsManager:  subject.IsManager,
		Effective:  permissionStrings(effective),
	}
	httpx.JSON(w, http.StatusOK, out)
}

func summarize(account Account) userSummary {
	return userSummary{
		ID:         account.ID,
		Email:      account.Email,
		Name:       account.Name,
		Role:       string(account.Role),
		PharmacyID: account.PharmacyID,
		BranchID:   account.BranchID,
		IsManager:  account.IsManager,
		Effective:  permissionStrings(authz.EffectivePermissions(account.Subject(nil))),
	}
}

func permissionStrings(perms []authz.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
