package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/internal/services"
	"github.com/inkpost/inkpost/pkg/errors"
	"github.com/inkpost/inkpost/pkg/response"
)

const defaultPageSize = 20

// PostHandler serves the public blog listing and the author CRUD surface.
type PostHandler struct {
	posts *services.PostService
}

func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type createPostRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Excerpt   string `json:"excerpt" validate:"max=500"`
	Body      string `json:"body" validate:"required"`
	Published bool   `json:"published"`
}

type updatePostRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=200"`
	Excerpt   *string `json:"excerpt" validate:"omitempty,max=500"`
	Body      *string `json:"body"`
	Published *bool   `json:"published"`
}

// GET /api/posts
func (h *PostHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := parseIntQuery(c, "per_page", defaultPageSize)
	if perPage < 1 {
		perPage = defaultPageSize
	}

	posts, total, err := h.posts.ListPublished(requestContext(c), services.ListPostsOptions{
		Page:     page,
		PageSize: perPage,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"posts": posts}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// GET /api/posts/:slug
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.GetBySlug(requestContext(c), c.Param("slug"))
	if err != nil {
		if goerrors.Is(err, services.ErrPostNotFound) {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.Error(c, errors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// GET /api/posts/mine
func (h *PostHandler) Mine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	posts, err := h.posts.ListByAuthor(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"posts": posts})
}

// POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createPostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.Create(requestContext(c), userID, services.CreatePostInput{
		Title:     req.Title,
		Excerpt:   req.Excerpt,
		Body:      req.Body,
		Published: req.Published,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"post": post})
}

// PATCH /api/posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req updatePostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.Update(requestContext(c), c.Param("id"), userID, services.UpdatePostInput{
		Title:     req.Title,
		Excerpt:   req.Excerpt,
		Body:      req.Body,
		Published: req.Published,
	})
	if err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// DELETE /api/posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.posts.Delete(requestContext(c), c.Param("id"), userID); err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Post deleted"})
}

func postError(err error) error {
	switch {
	case goerrors.Is(err, services.ErrPostNotFound):
		return errors.ErrNotFound
	case goerrors.Is(err, services.ErrNotPostAuthor):
		return errors.ErrForbidden
	default:
		return errors.ErrInternalServer
	}
}
