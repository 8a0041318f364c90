package api

import (
	"net/http"

	"notely/internal/auth"
)

type AuthHandler struct {
	manager *auth.Manager
}

func NewAuthHandler(manager *auth.Manager) *AuthHandler {
	return &AuthHandler{manager: manager}
}

type UserResponse struct {
	Message string          `json:"message"`
	User    auth.PublicUser `json:"user"`
}

type LoginResponse struct {
	Message string       `json:"message"`
	User    LoggedInUser `json:"user"`
}

type LoggedInUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	user, err := h.manager.Register(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{
		Message: "User registered successfully",
		User:    *user,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	result, err := h.manager.Login(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "User logged in",
		User: LoggedInUser{
			ID:    result.User.ID,
			Name:  result.User.Name,
			Email: result.User.Email,
			Token: result.Token.Token,
		},
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context(), r.Header.Get(TokenHeader)); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "User logged out successfully")
}

// POST /auth/forget-password
func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgetPasswordInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	message, err := h.manager.ForgetPassword(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, message)
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	if err := h.manager.ResetPassword(r.Context(), req); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Password reset successfully")
}
