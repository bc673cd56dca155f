package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/models"
	apperrors "github.com/inkpost/inkpost/pkg/errors"
)

var (
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = errors.New("post service: not found")
	// ErrNotPostAuthor is returned when someone else's post is edited.
	ErrNotPostAuthor = errors.New("post service: not the author")
)

// CreatePostInput describes the fields accepted when creating a post.
type CreatePostInput struct {
	Title     string
	Excerpt   string
	Body      string
	Published bool
}

// UpdatePostInput enumerates mutable post attributes.
type UpdatePostInput struct {
	Title     *string
	Excerpt   *string
	Body      *string
	Published *bool
}

// ListPostsOptions controls pagination for the public listing.
type ListPostsOptions struct {
	Page     int
	PageSize int
}

// PostService manages the blog post lifecycle. Plain validated persistence;
// the only rule with teeth is that authors edit only their own posts.
type PostService struct {
	db *gorm.DB
}

// NewPostService constructs a PostService instance.
func NewPostService(db *gorm.DB) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	return &PostService{db: db}, nil
}

// Create persists a new post for the author, deriving a unique slug from the title.
func (s *PostService) Create(ctx context.Context, authorID string, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	if strings.TrimSpace(authorID) == "" {
		return nil, apperrors.NewBadRequest("author is required")
	}

	post := &models.Post{
		AuthorID:  authorID,
		Title:     title,
		Slug:      slugify(title),
		Excerpt:   strings.TrimSpace(input.Excerpt),
		Body:      input.Body,
		Published: input.Published,
	}

	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Create(post).Error
		if err == nil {
			return post, nil
		}
		if !isUniqueConstraintError(err) || attempt >= 3 {
			return nil, fmt.Errorf("post service: create post: %w", err)
		}
		post.ID = ""
		post.Slug = fmt.Sprintf("%s-%d", slugify(title), attempt+2)
	}
}

// Update applies the supplied changes after verifying authorship.
func (s *PostService) Update(ctx context.Context, postID, userID string, input UpdatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.getByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrNotPostAuthor
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Excerpt != nil {
		updates["excerpt"] = strings.TrimSpace(*input.Excerpt)
	}
	if input.Body != nil {
		updates["body"] = *input.Body
	}
	if input.Published != nil {
		updates["published"] = *input.Published
	}

	if len(updates) == 0 {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("post service: update post: %w", err)
	}

	return s.getByID(ctx, postID)
}

// Delete removes a post after verifying authorship.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	ctx = ensureContext(ctx)

	post, err := s.getByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return ErrNotPostAuthor
	}

	if err := s.db.WithContext(ctx).Delete(post).Error; err != nil {
		return fmt.Errorf("post service: delete post: %w", err)
	}
	return nil
}

// GetBySlug returns a published post by its slug.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	err := s.db.WithContext(ctx).Preload("Author").
		Where("slug = ? AND published = ?", slug, true).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post service: find post: %w", err)
	}

	return &post, nil
}

// ListPublished returns published posts, newest first, with pagination.
func (s *PostService) ListPublished(ctx context.Context, opts ListPostsOptions) ([]models.Post, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("published = ?", true).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("post service: count posts: %w", err)
	}

	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("published = ?", true).
		Preload("Author").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("post service: list posts: %w", err)
	}

	return posts, total, nil
}

// ListByAuthor returns every post by the author, drafts included.
func (s *PostService) ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	ctx = ensureContext(ctx)

	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("post service: list by author: %w", err)
	}
	return posts, nil
}

func (s *PostService) getByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Take(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("post service: find post: %w", err)
	}
	return &post, nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "post"
	}
	return slug
}
