package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/storage"
	"github.com/debemdeboas/war-room/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	maxFeaturedLimit = 50

	formCoverImage    = "coverImage"
	formCoverImageURL = "coverImageUrl"
)

var (
	errInvalidFileExt = &uploadError{status: http.StatusBadRequest, msg: config.ErrInvalidFileExt}
	errFileRequired   = &uploadError{status: http.StatusBadRequest, msg: config.ErrFileRequired}
)

type uploadError struct {
	status int
	msg    string
	err    error
}

func (e *uploadError) Error() string { return e.msg }
func (e *uploadError) Unwrap() error { return e.err }

func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPosts(r.Context(), repository.PostFilter{Status: model.PostStatusPublished})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(posts))
}

func (h *Handler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	limit := h.featuredLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxFeaturedLimit)
	}

	posts, err := h.posts.ListPosts(r.Context(), repository.PostFilter{
		Status: model.PostStatusPublished,
		Type:   model.PostTypeFeatured,
		Limit:  limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(posts))
}

func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.requireAdmin(r); err != nil {
		h.fail(w, r, err)
		return
	}

	posts, err := h.posts.ListPosts(r.Context(), repository.PostFilter{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(posts))
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.requireAdmin(r); err != nil {
		h.fail(w, r, err)
		return
	}

	post, err := h.posts.GetPost(r.Context(), model.PostID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// CreatePost validates the form before touching storage so a rejected request
// leaves no uploaded objects behind.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	in, err := h.parsePostForm(w, r)
	if err != nil {
		h.failForm(w, r, err)
		return
	}

	cover, err := h.uploadFormImage(r, formCoverImage, false)
	if err != nil {
		h.failUpload(w, r, err)
		return
	}
	if cover != "" {
		in.CoverImage = cover
	}

	post := &model.Post{
		Title:      in.Title,
		Excerpt:    in.Excerpt,
		Content:    in.Content,
		Category:   in.Category,
		Type:       in.Type,
		Status:     in.Status,
		ReadTime:   readTimeFor(in),
		CoverImage: in.CoverImage,
		AuthorID:   user.ID,
	}
	if err := h.posts.CreatePost(r.Context(), post); err != nil {
		h.fail(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("post_id", string(post.ID)).
		Str("user_id", string(user.ID)).
		Msg("Post created")

	h.respondPost(w, r, http.StatusCreated, post)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.posts.GetPost(r.Context(), model.PostID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !existing.OwnedBy(user) {
		h.fail(w, r, errNotOwner)
		return
	}

	in, err := h.parsePostForm(w, r)
	if err != nil {
		h.failForm(w, r, err)
		return
	}

	cover, err := h.uploadFormImage(r, formCoverImage, false)
	if err != nil {
		h.failUpload(w, r, err)
		return
	}

	updated := *existing
	updated.Title = in.Title
	updated.Excerpt = in.Excerpt
	updated.Content = in.Content
	updated.Category = in.Category
	updated.Type = in.Type
	updated.Status = in.Status
	updated.ReadTime = readTimeFor(in)
	switch {
	case cover != "":
		updated.CoverImage = cover
	case in.CoverImage != "":
		updated.CoverImage = in.CoverImage
	}

	if err := h.posts.UpdatePost(r.Context(), &updated); err != nil {
		h.fail(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("post_id", string(updated.ID)).
		Str("user_id", string(user.ID)).
		Msg("Post updated")

	h.respondPost(w, r, http.StatusOK, &updated)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, err := h.requireUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.posts.GetPost(r.Context(), model.PostID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !existing.OwnedBy(user) {
		h.fail(w, r, errNotOwner)
		return
	}

	if err := h.posts.DeletePost(r.Context(), existing.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("post_id", string(existing.ID)).
		Str("user_id", string(user.ID)).
		Msg("Post deleted")

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// UploadImage stores a standalone image, e.g. one embedded in post content.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.requireUser(r); err != nil {
		h.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, config.ErrInvalidBody)
		return
	}

	url, err := h.uploadFormImage(r, "file", true)
	if err != nil {
		h.failUpload(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// respondPost re-reads the stored post so the response carries the embedded author.
func (h *Handler) respondPost(w http.ResponseWriter, r *http.Request, status int, post *model.Post) {
	stored, err := h.posts.GetPost(r.Context(), post.ID)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("post_id", string(post.ID)).Msg("Could not reload post after write")
		stored = post
	}
	respondJSON(w, status, stored)
}

func (h *Handler) parsePostForm(w http.ResponseWriter, r *http.Request) (*model.PostInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, err
		}
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	}

	in := &model.PostInput{
		Title:      strings.TrimSpace(r.FormValue("title")),
		Excerpt:    strings.TrimSpace(r.FormValue("excerpt")),
		Content:    r.FormValue("content"),
		Category:   r.FormValue("category"),
		Type:       model.PostType(r.FormValue("type")),
		Status:     model.PostStatus(r.FormValue("status")),
		ReadTime:   strings.TrimSpace(r.FormValue("readTime")),
		CoverImage: strings.TrimSpace(r.FormValue(formCoverImageURL)),
	}
	in.Normalize()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func (h *Handler) failForm(w http.ResponseWriter, r *http.Request, err error) {
	if model.IsValidation(err) {
		h.fail(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Unreadable post form")
	respondError(w, http.StatusBadRequest, config.ErrInvalidBody)
}

// uploadFormImage uploads the named multipart file and returns its URL.
// A missing file yields "" unless required is set.
func (h *Handler) uploadFormImage(r *http.Request, field string, required bool) (string, error) {
	if r.MultipartForm == nil {
		if required {
			return "", errFileRequired
		}
		return "", nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return "", errFileRequired
		}
		return "", nil
	}
	if err != nil {
		return "", &uploadError{status: http.StatusBadRequest, msg: config.ErrInvalidBody, err: err}
	}
	defer file.Close()

	if header.Size == 0 {
		if required {
			return "", errFileRequired
		}
		return "", nil
	}

	return h.upload(r.Context(), file, header)
}

func (h *Handler) upload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType, ok := storage.ImageContentType(header.Filename)
	if !ok {
		return "", errInvalidFileExt
	}

	key := storage.ObjectName(config.ImagesPrefix, header.Filename, h.now())
	url, err := h.storage.Upload(ctx, key, contentType, file)
	if err != nil {
		return "", &uploadError{
			status: http.StatusInternalServerError,
			msg:    config.ErrUploadFailed,
			err:    fmt.Errorf("upload %s: %w", key, err),
		}
	}
	return url, nil
}

func (h *Handler) failUpload(w http.ResponseWriter, r *http.Request, err error) {
	var ue *uploadError
	if !errors.As(err, &ue) {
		h.fail(w, r, err)
		return
	}
	ev := zerolog.Ctx(r.Context()).Debug()
	if ue.status >= http.StatusInternalServerError {
		ev = zerolog.Ctx(r.Context()).Error()
	}
	ev.Err(err).Msg("Image upload rejected")
	respondError(w, ue.status, ue.msg)
}

func readTimeFor(in *model.PostInput) string {
	if in.ReadTime != "" {
		return in.ReadTime
	}
	return util.CalculateReadTime(in.Content)
}

func nonNil(posts []model.Post) []model.Post {
	if posts == nil {
		return []model.Post{}
	}
	return posts
}
