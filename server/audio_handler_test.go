package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicewave/model"
	"voicewave/repository"
)

func TestGetAudio_PrivateVisibility(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.getByID = func(ctx context.Context, id int64) (*model.Audio, error) {
		if id != 10 {
			return nil, fmt.Errorf("audio %d: %w", id, repository.ErrNotFound)
		}
		return &model.Audio{ID: 10, UserID: 1, Title: "secret take", IsPrivate: true, Views: 3}, nil
	}
	d.audios.incrementViews = func(ctx context.Context, id int64) error { return nil }

	router := NewRouter(d.handler)

	// The owner sees it, with the view counted.
	req := httptest.NewRequest(http.MethodGet, "/api/audios/10", nil)
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(1, "alice"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var audio model.Audio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audio))
	assert.Equal(t, int64(4), audio.Views)

	// Another user gets 404, not 403.
	req = httptest.NewRequest(http.MethodGet, "/api/audios/10", nil)
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(2, "bob"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Anonymous too.
	req = httptest.NewRequest(http.MethodGet, "/api/audios/10", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAudio_MalformedID(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodGet, "/api/audios/not-a-number", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLikeAudio_Toggle(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	liked := false
	d.likes.toggle = func(ctx context.Context, kind repository.LikeKind, itemID, userID int64) (bool, int64, error) {
		assert.Equal(t, repository.LikeAudio, kind)
		assert.Equal(t, int64(10), itemID)
		assert.Equal(t, int64(2), userID)
		liked = !liked
		count := int64(0)
		if liked {
			count = 1
		}
		return liked, count, nil
	}

	router := NewRouter(d.handler)

	post := func() map[string]interface{} {
		req := httptest.NewRequest(http.MethodPut, "/api/audios/10/like", nil)
		req.Header.Set("Authorization", "Bearer "+d.tokenFor(2, "bob"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := post()
	assert.Equal(t, true, first["isLiked"])
	assert.Equal(t, float64(1), first["likeCount"])

	second := post()
	assert.Equal(t, false, second["isLiked"])
	assert.Equal(t, float64(0), second["likeCount"])
}

func TestDeleteAudio_Forbidden(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.getByID = func(ctx context.Context, id int64) (*model.Audio, error) {
		return &model.Audio{ID: id, UserID: 1, Title: "owned by alice"}, nil
	}

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodDelete, "/api/audios/10", nil)
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(2, "bob"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteAudio_RemovesMedia(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.getByID = func(ctx context.Context, id int64) (*model.Audio, error) {
		return &model.Audio{ID: id, UserID: 1, AudioURL: "http://media/audio/a.mp3"}, nil
	}
	deleted := false
	d.audios.delete = func(ctx context.Context, id int64) error {
		deleted = true
		return nil
	}
	var removedURL string
	d.store.remove = func(ctx context.Context, url string) error {
		removedURL = url
		return nil
	}

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodDelete, "/api/audios/10", nil)
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(1, "alice"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, deleted)
	assert.Equal(t, "http://media/audio/a.mp3", removedURL)
}

func TestListAudios_PassesFilterAndPaging(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.listAudios = func(ctx context.Context, filter repository.AudioFilter, page, pageSize int) (*model.AudioPage, error) {
		assert.Equal(t, "ambient", filter.Tag)
		assert.Equal(t, 2, page)
		assert.Equal(t, 5, pageSize)
		return &model.AudioPage{
			Audios:      []*model.Audio{},
			CurrentPage: page,
			TotalPages:  4,
			TotalAudios: 17,
		}, nil
	}

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodGet, "/api/audios?tag=ambient&page=2&limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var page model.AudioPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 4, page.TotalPages)
	assert.Equal(t, int64(17), page.TotalAudios)
}

func TestListAudios_ClampsPageSize(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.listAudios = func(ctx context.Context, filter repository.AudioFilter, page, pageSize int) (*model.AudioPage, error) {
		assert.Equal(t, 1, page)
		assert.Equal(t, MaxPageSize, pageSize)
		return &model.AudioPage{Audios: []*model.Audio{}, CurrentPage: 1}, nil
	}

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodGet, "/api/audios?page=0&limit=9999", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrending_CacheDisabledFallsThrough(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.getTrending = func(ctx context.Context, limit, windowDays int) ([]*model.Audio, error) {
		assert.Equal(t, DefaultTrendingLimit, limit)
		assert.Equal(t, 7, windowDays)
		return []*model.Audio{{ID: 1, Title: "hot take", LikeCount: 9}}, nil
	}

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodGet, "/api/audios/trending", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Audios []*model.Audio `json:"audios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Audios, 1)
	assert.Equal(t, "hot take", resp.Audios[0].Title)
}

func TestTrending_LimitParam(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	var gotLimit int
	d.audios.getTrending = func(ctx context.Context, limit, windowDays int) ([]*model.Audio, error) {
		gotLimit = limit
		return []*model.Audio{}, nil
	}

	router := NewRouter(d.handler)

	fetch := func(url string) {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	fetch("/api/audios/trending?limit=7")
	assert.Equal(t, 7, gotLimit)

	fetch("/api/audios/trending?limit=9999")
	assert.Equal(t, MaxTrendingLimit, gotLimit)

	fetch("/api/audios/trending?limit=-3")
	assert.Equal(t, DefaultTrendingLimit, gotLimit)
}

func TestUploadAudio_CreatesPost(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	var created *model.Audio
	d.audios.create = func(ctx context.Context, audio *model.Audio) (int64, error) {
		created = audio
		return 42, nil
	}
	d.audios.getByID = func(ctx context.Context, id int64) (*model.Audio, error) {
		require.Equal(t, int64(42), id)
		return &model.Audio{ID: 42, UserID: 2, Title: "field recording"}, nil
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	require.NoError(t, form.WriteField("title", "field recording"))
	require.NoError(t, form.WriteField("tags", "Ambient, rain"))
	part, err := form.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="audio"; filename="take.mp3"`},
		"Content-Type":        {"audio/mpeg"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("not really audio"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodPost, "/api/audios", body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(2, "bob"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, created)
	assert.Equal(t, int64(2), created.UserID)
	assert.Equal(t, "field recording", created.Title)
	assert.Equal(t, []string{"ambient", "rain"}, created.Tags)
	assert.Equal(t, "http://media/test/object.mp3", created.AudioURL)

	var resp model.Audio
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.ID)
}

func TestFeed_RequiresAuth(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodGet, "/api/audios/feed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeed_UsesRequesterID(t *testing.T) {
	d := newTestDeps()
	defer d.close()

	d.audios.getFeed = func(ctx context.Context, userID int64, page, pageSize int) (*model.AudioPage, error) {
		assert.Equal(t, int64(5), userID)
		return &model.AudioPage{Audios: []*model.Audio{}, CurrentPage: 1}, nil
	}

	router := NewRouter(d.handler)
	req := httptest.NewRequest(http.MethodGet, "/api/audios/feed", nil)
	req.Header.Set("Authorization", "Bearer "+d.tokenFor(5, "carol"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
