// Package repository persists posts, categories, profiles and auth records.
package repository

import (
	"context"
	"errors"

	"github.com/debemdeboas/war-room/internal/model"
	"github.com/rs/zerolog"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

var ErrNotFound = errors.New("not found")

// PostFilter narrows a post listing. Zero values mean "any".
type PostFilter struct {
	Status model.PostStatus
	Type   model.PostType
	Limit  int
}

type ChangeKind string

const (
	ChangeCreated  ChangeKind = "post.created"
	ChangeUpdated  ChangeKind = "post.updated"
	ChangeDeleted  ChangeKind = "post.deleted"
	ChangeReloaded ChangeKind = "posts.reloaded"
)

type Change struct {
	Kind   ChangeKind   `json:"kind"`
	PostID model.PostID `json:"post_id,omitempty"`
}

type PostRepository interface {
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	GetPost(ctx context.Context, id model.PostID) (*model.Post, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error)

	// CreatePost assigns id, unique slug and timestamps, then stores the post.
	CreatePost(ctx context.Context, post *model.Post) error
	// UpdatePost rewrites every writable field and regenerates the slug from the title.
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id model.PostID) error

	// SetChangeNotifier sets a function that will be called after every successful write.
	SetChangeNotifier(notifier func(Change))
}

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	// RefreshCounts recomputes post_count from published posts.
	RefreshCounts(ctx context.Context) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, id model.UserID) (*model.User, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.User, error)
	CreateProfile(ctx context.Context, user *model.User) error
	DeleteProfile(ctx context.Context, id model.UserID) error
	CountByRole(ctx context.Context, role model.Role) (int, error)
}
