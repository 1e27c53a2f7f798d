package handlers

import (
	"net/http"

	"kidsactivity/internal/service"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register handles new account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, token, err := h.authService.Register(req.Email, req.Password, req.Name)
	if err != nil {
		respondServiceError(w, "Error registering user", err)
		return
	}

	writeJSON(w, http.StatusCreated, authView{Token: token, User: toUserView(user)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles email and password sign-in
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondServiceError(w, "Error logging in", err)
		return
	}

	writeJSON(w, http.StatusOK, authView{Token: token, User: toUserView(user)})
}

type oauthLoginRequest struct {
	AccessToken string `json:"accessToken"`
}

// OAuthLogin exchanges a Google access token for a local session token
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req oauthLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.AccessToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "accessToken is required"})
		return
	}

	user, token, err := h.authService.OAuthLogin(r.Context(), req.AccessToken)
	if err != nil {
		respondServiceError(w, "Error logging in with oauth", err)
		return
	}

	writeJSON(w, http.StatusOK, authView{Token: token, User: toUserView(user)})
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}
