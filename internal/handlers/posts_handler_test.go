package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCreatePostRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/posts", gin.H{
		"title": "Hello",
		"body":  "World",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ada", "ada@example.com", "correct-horse-1")

	created := env.do(t, http.MethodPost, "/api/posts", gin.H{
		"title":     "First Post",
		"body":      "Some body text",
		"published": true,
	}, cookie)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	body := decodeBody(t, created)
	post := body["data"].(map[string]any)["post"].(map[string]any)
	require.Equal(t, "first-post", post["slug"])
	postID := post["id"].(string)

	// Publicly visible without a session.
	public := env.do(t, http.MethodGet, "/api/posts/first-post", nil)
	require.Equal(t, http.StatusOK, public.Code)

	listed := env.do(t, http.MethodGet, "/api/posts", nil)
	require.Equal(t, http.StatusOK, listed.Code)

	updated := env.do(t, http.MethodPatch, "/api/posts/"+postID, gin.H{
		"title": "First Post, Edited",
	}, cookie)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())

	deleted := env.do(t, http.MethodDelete, "/api/posts/"+postID, nil, cookie)
	require.Equal(t, http.StatusOK, deleted.Code)

	gone := env.do(t, http.MethodGet, "/api/posts/first-post", nil)
	require.Equal(t, http.StatusNotFound, gone.Code)
}

func TestUpdateForeignPostForbidden(t *testing.T) {
	env := newTestEnv(t)
	author := env.register(t, "Ada", "ada@example.com", "correct-horse-1")
	other := env.register(t, "Bob", "bob@example.com", "correct-horse-2")

	created := env.do(t, http.MethodPost, "/api/posts", gin.H{
		"title":     "Mine",
		"body":      "Content",
		"published": true,
	}, author)
	require.Equal(t, http.StatusCreated, created.Code)
	postID := decodeBody(t, created)["data"].(map[string]any)["post"].(map[string]any)["id"].(string)

	w := env.do(t, http.MethodPatch, "/api/posts/"+postID, gin.H{
		"title": "Hijacked",
	}, other)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnpublishedPostHiddenFromPublic(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ada", "ada@example.com", "correct-horse-1")

	created := env.do(t, http.MethodPost, "/api/posts", gin.H{
		"title": "Draft",
		"body":  "Not ready",
	}, cookie)
	require.Equal(t, http.StatusCreated, created.Code)

	public := env.do(t, http.MethodGet, "/api/posts/draft", nil)
	require.Equal(t, http.StatusNotFound, public.Code)

	mine := env.do(t, http.MethodGet, "/api/posts/mine", nil, cookie)
	require.Equal(t, http.StatusOK, mine.Code)
}
