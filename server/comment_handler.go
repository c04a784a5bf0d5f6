package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"voicewave/logger"
	"voicewave/model"
	"voicewave/repository"
)

// ListCommentsHandler returns a page of an audio's comments, newest first.
func (h *APIHandler) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	audioID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	if !h.audioVisible(w, r, audioID, http.StatusNotFound) {
		return
	}

	page, pageSize := pageParams(r)
	result, err := h.commentRepo.ListByAudio(r.Context(), audioID, page, pageSize)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateCommentHandler posts a comment on an audio. The body is JSON
// for text comments, or multipart when an audio reply is attached.
// A comment needs text content or an audio reply, possibly both.
func (h *APIHandler) CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	audioID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	// Commenting on someone else's private audio is Forbidden rather
	// than NotFound: the commenter already proved they can address it.
	if !h.audioVisible(w, r, audioID, http.StatusForbidden) {
		return
	}

	comment := &model.Comment{
		UserID:  userIDFromContext(r.Context()),
		AudioID: audioID,
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(int64(h.cfg.MaxUploadSizeMB) << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		comment.Content = strings.TrimSpace(r.FormValue("content"))

		if file, header, err := r.FormFile("audio"); err == nil {
			defer file.Close()

			contentType := header.Header.Get("Content-Type")
			if !strings.HasPrefix(contentType, "audio/") && contentType != "application/octet-stream" {
				writeValidationErrors(w, []FieldError{{Field: "audio", Msg: "file must be audio"}})
				return
			}
			url, err := h.store.Upload(r.Context(), "comments", header.Filename, contentType, file, header.Size)
			if err != nil {
				logger.Error("failed to upload comment audio", logger.ErrorField(err))
				writeError(w, http.StatusInternalServerError, "failed to store audio")
				return
			}
			comment.AudioURL = url
			comment.AudioDuration, _ = strconv.ParseFloat(r.FormValue("audioDuration"), 64)
		}
	} else {
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		comment.Content = strings.TrimSpace(req.Content)
	}

	var errs []FieldError
	if comment.Content == "" && comment.AudioURL == "" {
		errs = append(errs, FieldError{Field: "content", Msg: "comment needs text or an audio reply"})
	}
	if len(comment.Content) > model.MaxCommentLength {
		errs = append(errs, FieldError{Field: "content", Msg: "comment is too long"})
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	if err := h.commentRepo.Create(r.Context(), comment); err != nil {
		handleRepoError(w, err, "audio not found")
		return
	}

	// Room delivery is best-effort and decoupled from persistence.
	if err := h.hub.BroadcastNewComment(strconv.FormatInt(audioID, 10), comment); err != nil {
		logger.Warn("failed to broadcast comment",
			logger.ErrorField(err),
			logger.Int64("audio", audioID))
	}

	h.invalidateTrending(r.Context())
	logger.Info("comment created",
		logger.Int64("comment", comment.ID),
		logger.Int64("audio", audioID),
		logger.Int64("user", comment.UserID))
	writeJSON(w, http.StatusCreated, comment)
}

// LikeCommentHandler toggles the requester's like on a comment.
func (h *APIHandler) LikeCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}

	liked, likeCount, err := h.likes.Toggle(r.Context(), repository.LikeComment, id, userIDFromContext(r.Context()))
	if err != nil {
		handleRepoError(w, err, "comment not found")
		return
	}

	msg := "comment unliked"
	if liked {
		msg = "comment liked"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"msg":       msg,
		"isLiked":   liked,
		"likeCount": likeCount,
	})
}

// DeleteCommentHandler removes a comment. Allowed for the commenter and
// for the owner of the audio it sits on.
func (h *APIHandler) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}

	comment, err := h.commentRepo.GetByID(r.Context(), id)
	if err != nil {
		handleRepoError(w, err, "comment not found")
		return
	}

	requesterID := userIDFromContext(r.Context())
	if comment.UserID != requesterID {
		audio, err := h.audioRepo.GetByID(r.Context(), comment.AudioID)
		if err != nil {
			handleRepoError(w, err, "comment not found")
			return
		}
		if audio.UserID != requesterID {
			writeError(w, http.StatusForbidden, "you cannot delete this comment")
			return
		}
	}

	if err := h.commentRepo.Delete(r.Context(), id); err != nil {
		handleRepoError(w, err, "comment not found")
		return
	}

	if comment.AudioURL != "" {
		if err := h.store.Remove(r.Context(), comment.AudioURL); err != nil {
			logger.Warn("failed to remove comment audio object",
				logger.ErrorField(err),
				logger.Int64("comment", id))
		}
	}

	h.invalidateTrending(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"msg": "comment deleted"})
}

// audioVisible checks the audio exists and is visible to the requester,
// writing the error response when it is not. privateStatus picks the
// status for a private audio hit by a non-owner.
func (h *APIHandler) audioVisible(w http.ResponseWriter, r *http.Request, audioID int64, privateStatus int) bool {
	audio, err := h.audioRepo.GetByID(r.Context(), audioID)
	if err != nil {
		handleRepoError(w, err, "audio not found")
		return false
	}
	if audio.IsPrivate && audio.UserID != userIDFromContext(r.Context()) {
		if privateStatus == http.StatusForbidden {
			writeError(w, http.StatusForbidden, "this audio is private")
		} else {
			writeError(w, http.StatusNotFound, "audio not found")
		}
		return false
	}
	return true
}
