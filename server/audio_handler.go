package server

import (
	"net/http"
	"strconv"
	"strings"

	"voicewave/logger"
	"voicewave/model"
	"voicewave/repository"
)

// ListAudiosHandler returns a page of public audios, optionally
// filtered by tag or full-text query.
func (h *APIHandler) ListAudiosHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	filter := repository.AudioFilter{
		Tag:         strings.TrimSpace(r.URL.Query().Get("tag")),
		Query:       strings.TrimSpace(r.URL.Query().Get("q")),
		RequesterID: userIDFromContext(r.Context()),
	}

	result, err := h.audioRepo.ListAudios(r.Context(), filter, page, pageSize)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TrendingHandler returns the trending listing, served from cache when
// fresh enough. The caller may size it with ?limit, clamped.
func (h *APIHandler) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := trendingLimit(r)
	windowDays := h.cfg.TrendingWindowDays

	audios, err := h.trending.Get(ctx, limit, windowDays)
	if err != nil {
		logger.Warn("trending cache read failed", logger.ErrorField(err))
	}
	if audios == nil {
		audios, err = h.audioRepo.GetTrending(ctx, limit, windowDays)
		if err != nil {
			handleRepoError(w, err, "audio not found")
			return
		}
		if err := h.trending.Set(ctx, limit, windowDays, audios); err != nil {
			logger.Warn("trending cache write failed", logger.ErrorField(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string][]*model.Audio{"audios": audios})
}

// FeedHandler returns the audios of the users the requester follows.
func (h *APIHandler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := h.audioRepo.GetFeed(r.Context(), userIDFromContext(r.Context()), page, pageSize)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetAudioHandler returns one audio and counts the view. Private audios
// only resolve for their owner.
func (h *APIHandler) GetAudioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	audio, err := h.audioRepo.GetByID(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}

	requesterID := userIDFromContext(r.Context())
	if audio.IsPrivate && audio.UserID != requesterID {
		// Existence of a private audio is not disclosed.
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	if err := h.audioRepo.IncrementViews(r.Context(), id); err != nil {
		logger.Warn("failed to count view", logger.ErrorField(err), logger.Int64("audio", id))
	} else {
		audio.Views++
	}

	writeJSON(w, http.StatusOK, audio)
}

// UploadAudioHandler accepts a multipart audio upload and creates the post.
func (h *APIHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(int64(h.cfg.MaxUploadSizeMB) << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))

	var errs []FieldError
	if title == "" {
		errs = append(errs, FieldError{Field: "title", Msg: "title is required"})
	} else if len(title) > model.MaxTitleLength {
		errs = append(errs, FieldError{Field: "title", Msg: "title is too long"})
	}
	if len(description) > model.MaxDescriptionLength {
		errs = append(errs, FieldError{Field: "description", Msg: "description is too long"})
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		errs = append(errs, FieldError{Field: "audio", Msg: "audio file is required"})
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") && contentType != "application/octet-stream" {
		writeValidationErrors(w, []FieldError{{Field: "audio", Msg: "file must be audio"}})
		return
	}

	url, err := h.store.Upload(r.Context(), "audio", header.Filename, contentType, file, header.Size)
	if err != nil {
		logger.Error("failed to upload audio", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)
	isPrivate, _ := strconv.ParseBool(r.FormValue("isPrivate"))

	audio := &model.Audio{
		UserID:      userIDFromContext(r.Context()),
		Title:       title,
		Description: description,
		AudioURL:    url,
		Duration:    duration,
		Tags:        model.SplitTags(r.FormValue("tags")),
		IsPrivate:   isPrivate,
	}

	id, err := h.audioRepo.Create(r.Context(), audio)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}

	created, err := h.audioRepo.GetByID(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}

	h.invalidateTrending(r.Context())
	logger.Info("audio uploaded",
		logger.Int64("audio", id),
		logger.Int64("user", audio.UserID),
		logger.String("username", usernameFromContext(r.Context())),
		logger.String("title", title))
	writeJSON(w, http.StatusCreated, created)
}

// LikeAudioHandler toggles the requester's like on an audio.
func (h *APIHandler) LikeAudioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	liked, likeCount, err := h.likes.Toggle(r.Context(), repository.LikeAudio, id, userIDFromContext(r.Context()))
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}

	h.invalidateTrending(r.Context())

	msg := "audio unliked"
	if liked {
		msg = "audio liked"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"msg":       msg,
		"isLiked":   liked,
		"likeCount": likeCount,
	})
}

// DeleteAudioHandler removes an audio the requester owns, along with
// its stored media.
func (h *APIHandler) DeleteAudioHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	audio, err := h.audioRepo.GetByID(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}
	if audio.UserID != userIDFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "you can only delete your own audios")
		return
	}

	if err := h.audioRepo.Delete(r.Context(), id); err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}

	// Media removal is best-effort; the row is already gone.
	if err := h.store.Remove(r.Context(), audio.AudioURL); err != nil {
		logger.Warn("failed to remove audio object",
			logger.ErrorField(err),
			logger.Int64("audio", id))
	}

	h.invalidateTrending(r.Context())
	logger.Info("audio deleted", logger.Int64("audio", id), logger.Int64("user", audio.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"msg": "audio deleted"})
}
