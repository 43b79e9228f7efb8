// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/tutoring-portal/internal/core"
	"github.com/angelamos/tutoring-portal/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts the auth endpoints under /auth. credentialLimit, if
// non-nil, guards the two endpoints that accept passwords from anyone.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	credentialLimit func(http.Handler) http.Handler,
) {
	if credentialLimit == nil {
		credentialLimit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(credentialLimit).Post("/register", h.Register)
		r.With(credentialLimit).Post("/login", h.Login)
		r.Post("/verify-token", h.VerifyToken)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Method(http.MethodGet, "/me", middleware.AuthenticatedHandlerFunc(h.GetMe))
			r.Method(http.MethodGet, "/user", middleware.AuthenticatedHandlerFunc(h.GetUser))
			r.Method(http.MethodPost, "/logout", middleware.AuthenticatedHandlerFunc(h.Logout))
			r.Method(
				http.MethodPost,
				"/change-password",
				middleware.AuthenticatedHandlerFunc(h.ChangePassword),
			)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			core.JSONError(w, core.EmailExistsError())
			return
		}
		core.InternalServerError(w, r, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.JSONError(w, core.InvalidCredentialsError())
			return
		}
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetMe(
	w http.ResponseWriter,
	r *http.Request,
	id middleware.Identity,
) {
	user, ok := h.currentUser(w, r, id)
	if !ok {
		return
	}

	core.OK(w, MeResponse{Success: true, User: *user})
}

// GetUser is the unwrapped variant of GetMe kept for older clients.
func (h *Handler) GetUser(
	w http.ResponseWriter,
	r *http.Request,
	id middleware.Identity,
) {
	user, ok := h.currentUser(w, r, id)
	if !ok {
		return
	}

	core.OK(w, user)
}

func (h *Handler) Logout(
	w http.ResponseWriter,
	r *http.Request,
	id middleware.Identity,
) {
	h.service.Logout(r.Context(), id)

	core.OK(w, MessageResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// VerifyToken reads the token from the body, falling back to the
// Authorization header.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil &&
		!errors.Is(err, io.EOF) {
		core.BadRequest(w, "invalid request body")
		return
	}

	token := req.Token
	if token == "" {
		token = middleware.ExtractToken(r)
	}

	result := h.service.VerifyToken(r.Context(), token)
	if !result.Valid {
		core.JSON(w, http.StatusUnauthorized, VerifyTokenResponse{Valid: false})
		return
	}

	identity := result.Identity
	core.OK(w, VerifyTokenResponse{Valid: true, User: &identity})
}

func (h *Handler) ChangePassword(
	w http.ResponseWriter,
	r *http.Request,
	id middleware.Identity,
) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), id.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			// 400 rather than 401 so clients do not treat it as a lost session
			core.JSONError(w, core.NewAppError(
				err,
				"Current password is incorrect",
				http.StatusBadRequest,
				core.CodeInvalidCredentials,
			))
		case errors.Is(err, ErrUserNotFound):
			core.NotFound(w, "user")
		default:
			core.InternalServerError(w, r, err)
		}
		return
	}

	core.OK(w, MessageResponse{
		Success: true,
		Message: "Password changed successfully",
	})
}

func (h *Handler) currentUser(
	w http.ResponseWriter,
	r *http.Request,
	id middleware.Identity,
) (*UserResponse, bool) {
	user, err := h.service.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			core.NotFound(w, "user")
			return nil, false
		}
		core.InternalServerError(w, r, err)
		return nil, false
	}

	return user, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.JSONError(w, core.ValidationError(core.FieldErrors(err)))
		return false
	}

	return true
}
