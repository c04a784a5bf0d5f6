package server

import (
	"context"
	"net/http"
	"strconv"

	"voicewave/core/room"
	"voicewave/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is open API-wide; the socket follows.
		return true
	},
}

// AudioRoomHandler upgrades the connection and joins the client to the
// audio's comment room. Requires authentication; the token may ride in
// the query string since browsers cannot set websocket headers.
func (h *APIHandler) AudioRoomHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := h.claimsFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	audioIDStr := mux.Vars(r)["audioId"]
	audioID, err := strconv.ParseInt(audioIDStr, 10, 64)
	if err != nil || audioID <= 0 {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	audio, getErr := h.audioRepo.GetByID(r.Context(), audioID)
	if getErr != nil {
		handleRepoError(w, getErr, "audio not found")
		return
	}
	if audio.IsPrivate && audio.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &room.Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		AudioID:  audioIDStr,
		UserID:   claims.UserID,
		Username: claims.Username,
	}

	h.hub.Register(client)

	// The request context dies when this handler returns; the pumps
	// outlive it.
	go client.WritePump()
	go client.ReadPump(context.Background())

	client.SendMessage(&room.WSMessage{
		Type:     room.MsgTypeJoin,
		AudioID:  audioIDStr,
		UserID:   claims.UserID,
		Username: claims.Username,
	})
}
