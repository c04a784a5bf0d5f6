package server

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"voicewave/core/auth"
	"voicewave/logger"
	"voicewave/model"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 100
	maxBioLength      = 500
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func validateUsername(username string) *FieldError {
	if username == "" {
		return &FieldError{Field: "username", Msg: "username is required"}
	}
	if len(username) > maxUsernameLength {
		return &FieldError{Field: "username", Msg: "username is too long"}
	}
	return nil
}

// RegisterHandler creates an account and returns a session token.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	var errs []FieldError
	if fe := validateUsername(req.Username); fe != nil {
		errs = append(errs, *fe)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		errs = append(errs, FieldError{Field: "email", Msg: "a valid email is required"})
	}
	if len(req.Password) < minPasswordLength {
		errs = append(errs, FieldError{Field: "password", Msg: "password must be at least 8 characters"})
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("failed to hash password", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	id, err := h.userRepo.CreateUser(r.Context(), user)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	user.ID = id

	created, err := h.userRepo.GetUserByID(r.Context(), id)
	if err == nil && created != nil {
		user = created
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		logger.Error("failed to issue token", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info("user registered",
		logger.Int64("user", user.ID),
		logger.String("username", user.Username))
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// LoginHandler authenticates by email and password.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userRepo.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	// The same response for unknown email and wrong password.
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		logger.Error("failed to issue token", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// MeHandler returns the authenticated user's account.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.GetUserByID(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

// UpdateProfileHandler changes the authenticated user's username and bio.
func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	var errs []FieldError
	if fe := validateUsername(req.Username); fe != nil {
		errs = append(errs, *fe)
	}
	if len(req.Bio) > maxBioLength {
		errs = append(errs, FieldError{Field: "bio", Msg: "bio is too long"})
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	userID := userIDFromContext(r.Context())
	if err := h.userRepo.UpdateProfile(r.Context(), userID, req.Username, req.Bio); err != nil {
		handleRepoError(w, err, "user not found")
		return
	}

	user, err := h.userRepo.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		handleRepoError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UploadAvatarHandler stores a new avatar image and updates the account.
func (h *APIHandler) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(int64(h.cfg.MaxUploadSizeMB) << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeValidationErrors(w, []FieldError{{Field: "avatar", Msg: "avatar file is required"}})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeValidationErrors(w, []FieldError{{Field: "avatar", Msg: "avatar must be an image"}})
		return
	}

	url, err := h.store.Upload(r.Context(), "avatars", header.Filename, contentType, file, header.Size)
	if err != nil {
		logger.Error("failed to upload avatar", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	userID := userIDFromContext(r.Context())
	if err := h.userRepo.UpdateAvatar(r.Context(), userID, url); err != nil {
		handleRepoError(w, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"msg": "avatar updated", "avatar": url})
}
