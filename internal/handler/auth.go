// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imranmaj/language-chat/internal/auth"
	"github.com/imranmaj/language-chat/internal/middleware"
	"github.com/imranmaj/language-chat/internal/model"
	"github.com/imranmaj/language-chat/internal/store"
	"github.com/imranmaj/language-chat/pkg/logger"
)

var validate = validator.New()

// AuthHandler handles signup, login and account settings.
type AuthHandler struct {
	store     *store.Store
	logger    *logger.Logger
	jwtSecret string
	jwtTTL    time.Duration
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st *store.Store, log *logger.Logger, jwtSecret string, jwtTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		store:     st,
		logger:    log,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", correlationField(r))
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, req.Email, hash)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.store.FindUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}
		writeServiceError(w, err)
		return
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, user.ID, user.Username, h.jwtTTL)
	if err != nil {
		h.logger.Error("failed to sign token", correlationField(r))
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, model.LoginResponse{Token: token, User: user})
}

// UpdateAccount handles PUT /api/v1/account
func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req model.UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.store.FindUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", correlationField(r))
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	user.Email = req.Email
	user.PasswordHash = hash
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// correlationField tags a handler log line with the request's correlation id.
func correlationField(r *http.Request) zap.Field {
	return zap.String("correlation_id", middleware.GetCorrelationID(r.Context()))
}

// validationMessage flattens a validator error into a user-visible message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	field := verrs[0]
	switch field.Tag() {
	case "required":
		return "you must fill in all fields"
	case "email":
		return "invalid email address"
	case "eqfield":
		return "passwords do not match"
	case "min":
		return field.Field() + " is too short"
	case "max":
		return field.Field() + " is too long"
	default:
		return "invalid " + field.Field()
	}
}
