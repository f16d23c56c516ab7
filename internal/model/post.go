// Package model defines core data structures and types for the blog application.
package model

import (
	"slices"
	"time"
)

type PostID string

type PostType string

const (
	PostTypeFeatured PostType = "featured"
	PostTypeNormal   PostType = "normal"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Categories is the fixed set of blog categories, in display order.
var Categories = []string{"Strategy", "Growth", "Leadership", "Tactics", "Insights"}

func ValidCategory(name string) bool {
	return slices.Contains(Categories, name)
}

func (t PostType) Valid() bool {
	return t == PostTypeFeatured || t == PostTypeNormal
}

func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Author is the subset of a profile embedded in every post read.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Post struct {
	ID         PostID     `json:"id"`
	Title      string     `json:"title"`
	Excerpt    string     `json:"excerpt"`
	Content    string     `json:"content"`
	Category   string     `json:"category"`
	Type       PostType   `json:"type"`
	Status     PostStatus `json:"status"`
	ReadTime   string     `json:"read_time"`
	CoverImage string     `json:"cover_image,omitempty"`
	Slug       string     `json:"slug"`
	AuthorID   UserID     `json:"author_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Author *Author `json:"author,omitempty"`

	// Used for change detection on reload; hash of the stored (compressed) content.
	ContentHash string `json:"-"`
}

func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

func (p *Post) IsFeatured() bool {
	return p.Type == PostTypeFeatured
}

// OwnedBy reports whether the given user may mutate this post.
func (p *Post) OwnedBy(u *User) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || p.AuthorID == u.ID
}

// PostInput is the writable part of a post as submitted by a client.
// CoverImage carries an already-hosted URL; uploads travel separately.
type PostInput struct {
	Title      string     `json:"title"`
	Excerpt    string     `json:"excerpt"`
	Content    string     `json:"content"`
	Category   string     `json:"category"`
	Type       PostType   `json:"type"`
	Status     PostStatus `json:"status"`
	ReadTime   string     `json:"readTime"`
	CoverImage string     `json:"cover_image,omitempty"`
	AuthorID   UserID     `json:"author_id,omitempty"`

	// Cover is a new cover image to upload with the post.
	Cover *ImageFile `json:"-"`
}

type ImageFile struct {
	Name string
	Data []byte
}

// InputFromPost returns the writable fields of p, the starting point for an update.
// ReadTime is left empty so the server recomputes it from the content.
func InputFromPost(p *Post) PostInput {
	return PostInput{
		Title:      p.Title,
		Excerpt:    p.Excerpt,
		Content:    p.Content,
		Category:   p.Category,
		Type:       p.Type,
		Status:     p.Status,
		CoverImage: p.CoverImage,
		AuthorID:   p.AuthorID,
	}
}

// Normalize fills in the default type and status.
func (in *PostInput) Normalize() {
	if in.Type == "" {
		in.Type = PostTypeNormal
	}
	if in.Status == "" {
		in.Status = PostStatusDraft
	}
}

// Validate checks required fields and enumerations. It never has side effects.
func (in *PostInput) Validate() error {
	if in.Title == "" || in.Excerpt == "" || in.Content == "" || in.Category == "" {
		return ErrMissingFields
	}
	if !ValidCategory(in.Category) {
		return &ValidationError{Field: "category", Value: in.Category}
	}
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Value: string(in.Type)}
	}
	if !in.Status.Valid() {
		return &ValidationError{Field: "status", Value: string(in.Status)}
	}
	return nil
}
