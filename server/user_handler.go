package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"voicewave/logger"
	"voicewave/model"
	"voicewave/repository"

	"github.com/gorilla/mux"
)

func (h *APIHandler) userByPathUsername(w http.ResponseWriter, r *http.Request) *model.User {
	username := mux.Vars(r)["username"]
	user, err := h.userRepo.GetUserByUsername(r.Context(), username)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return nil
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return user
}

// GetProfileHandler returns a user's public profile: relationship lists
// expanded plus their visible audios.
func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := h.userByPathUsername(w, r)
	if user == nil {
		return
	}

	followers, err := h.userRepo.ListFollowers(r.Context(), user.ID)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	following, err := h.userRepo.ListFollowing(r.Context(), user.ID)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}

	audios, err := h.audioRepo.ListAudios(r.Context(), repository.AudioFilter{
		OwnerID:     user.ID,
		RequesterID: userIDFromContext(r.Context()),
	}, 1, MaxPageSize)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}

	profile := &model.Profile{
		ID:        user.ID,
		Username:  user.Username,
		Bio:       user.Bio,
		Avatar:    user.Avatar,
		Followers: summariesToRefs(followers),
		Following: summariesToRefs(following),
		Audios:    audios.Audios,
		CreatedAt: user.CreatedAt,
	}
	writeJSON(w, http.StatusOK, profile)
}

func summariesToRefs(summaries []*model.UserSummary) []model.UserRef {
	refs := make([]model.UserRef, 0, len(summaries))
	for _, s := range summaries {
		refs = append(refs, model.UserRef{ID: s.ID, Username: s.Username, Avatar: s.Avatar})
	}
	return refs
}

// GetUserAudiosHandler lists a user's audios. The owner sees their
// private audios too.
func (h *APIHandler) GetUserAudiosHandler(w http.ResponseWriter, r *http.Request) {
	user := h.userByPathUsername(w, r)
	if user == nil {
		return
	}

	page, pageSize := pageParams(r)
	filter := repository.AudioFilter{
		OwnerID:     user.ID,
		RequesterID: userIDFromContext(r.Context()),
	}
	result, err := h.audioRepo.ListAudios(r.Context(), filter, page, pageSize)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// FollowHandler toggles the authenticated user's follow on the target.
func (h *APIHandler) FollowHandler(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	actorID := userIDFromContext(r.Context())
	following, followers, err := h.userRepo.ToggleFollow(r.Context(), actorID, targetID)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}

	msg := "user unfollowed"
	if following {
		msg = "user followed"
	}
	logger.Info("follow toggled",
		logger.Int64("actor", actorID),
		logger.Int64("target", targetID),
		logger.Bool("following", following))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"msg":         msg,
		"isFollowing": following,
		"followers":   followers,
	})
}

// ListFollowersHandler lists who follows the user.
func (h *APIHandler) ListFollowersHandler(w http.ResponseWriter, r *http.Request) {
	h.listRelations(w, r, h.userRepo.ListFollowers, "followers")
}

// ListFollowingHandler lists who the user follows.
func (h *APIHandler) ListFollowingHandler(w http.ResponseWriter, r *http.Request) {
	h.listRelations(w, r, h.userRepo.ListFollowing, "following")
}

func (h *APIHandler) listRelations(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, userID int64) ([]*model.UserSummary, error),
	key string,
) {
	user := h.userByPathUsername(w, r)
	if user == nil {
		return
	}

	users, err := list(r.Context(), user.ID)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*model.UserSummary{key: users})
}

// SearchUsersHandler searches usernames and bios.
func (h *APIHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeValidationErrors(w, []FieldError{{Field: "q", Msg: "search query is required"}})
		return
	}

	users, err := h.userRepo.SearchUsers(r.Context(), query)
	if err != nil {
		handleRepoError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"msg":   fmt.Sprintf("%d users found", len(users)),
	})
}
