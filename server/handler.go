package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"voicewave/cache"
	"voicewave/config"
	"voicewave/core/auth"
	"voicewave/core/room"
	"voicewave/logger"
	"voicewave/repository"
	"voicewave/storage"

	"github.com/gorilla/mux"
)

// Pagination defaults.
const (
	DefaultPageSize      = 10
	MaxPageSize          = 50
	DefaultTrendingLimit = 10
	MaxTrendingLimit     = 50
)

type contextKey string

const (
	ctxUserID   contextKey = "userID"
	ctxUsername contextKey = "username"
)

// APIHandler carries the dependencies of every HTTP handler.
type APIHandler struct {
	cfg         *config.Config
	userRepo    repository.UserRepository
	audioRepo   repository.AudioRepository
	commentRepo repository.CommentRepository
	likes       repository.LikeStore
	store       storage.ObjectStore
	tokens      *auth.TokenIssuer
	hub         *room.CommentHub
	trending    *cache.TrendingCache
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	audioRepo repository.AudioRepository,
	commentRepo repository.CommentRepository,
	likes repository.LikeStore,
	store storage.ObjectStore,
	tokens *auth.TokenIssuer,
	hub *room.CommentHub,
	trending *cache.TrendingCache,
) *APIHandler {
	return &APIHandler{
		cfg:         cfg,
		userRepo:    userRepo,
		audioRepo:   audioRepo,
		commentRepo: commentRepo,
		likes:       likes,
		store:       store,
		tokens:      tokens,
		hub:         hub,
		trending:    trending,
	}
}

// AuthMiddleware rejects requests without a valid bearer token.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.claimsFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// OptionalAuthMiddleware attaches identity when a valid token is
// present and lets anonymous requests through.
func (h *APIHandler) OptionalAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, err := h.claimsFromRequest(r); err == nil {
			r = r.WithContext(withClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	}
}

func (h *APIHandler) claimsFromRequest(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		// Websocket clients cannot set headers; accept a query token.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.tokens.ParseToken(token)
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, claims.UserID)
	return context.WithValue(ctx, ctxUsername, claims.Username)
}

// userIDFromContext returns the authenticated user id, or 0 when the
// request is anonymous.
func userIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxUserID).(int64)
	return id
}

func usernameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(ctxUsername).(string)
	return name
}

// pathID extracts a positive int64 path variable. A malformed id is
// indistinguishable from an absent entity for the caller.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParams parses page/limit query parameters with clamping.
func pageParams(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = DefaultPageSize

	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		pageSize = v
		if pageSize > MaxPageSize {
			pageSize = MaxPageSize
		}
	}
	return page, pageSize
}

// trendingLimit parses the trending ?limit parameter with clamping.
func trendingLimit(r *http.Request) int {
	limit := DefaultTrendingLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
		if limit > MaxTrendingLimit {
			limit = MaxTrendingLimit
		}
	}
	return limit
}

// handleRepoError maps repository sentinels onto the error taxonomy.
func handleRepoError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, repository.ErrSelfFollow):
		writeError(w, http.StatusBadRequest, "you cannot follow yourself")
	case errors.Is(err, repository.ErrDuplicateUser):
		writeError(w, http.StatusConflict, "username or email already exists")
	default:
		logger.Error("request failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// invalidateTrending drops the trending cache after a ranking-relevant
// write. Failures are logged, never surfaced.
func (h *APIHandler) invalidateTrending(ctx context.Context) {
	if err := h.trending.Invalidate(ctx); err != nil {
		logger.Warn("failed to invalidate trending cache", logger.ErrorField(err))
	}
}
