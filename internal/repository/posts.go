package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/war-room/internal/cache"
	"github.com/debemdeboas/war-room/internal/db"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/util"
	"github.com/debemdeboas/war-room/internal/util/compression"
	"github.com/google/uuid"
)

const selectPost = `
SELECT p.id, p.title, p.excerpt, p.content, p.content_hash, p.category, p.type, p.status,
       p.read_time, p.cover_image, p.slug, p.author_id, p.created_at, p.updated_at,
       pr.name, pr.email
FROM posts p
LEFT JOIN profiles pr ON pr.id = p.author_id`

// fallbackSlug is used when a title has no slug-able characters.
const fallbackSlug = "post"

type DBPostRepository struct { // implements PostRepository
	slugCache *cache.Cache[string, *model.Post]

	changeNotifier func(Change)

	mu       sync.Mutex
	lastSeen string

	db         db.DB
	compressor compression.Compressor
	categories CategoryRepository

	now func() time.Time
}

func NewDBPostRepository(db db.DB) *DBPostRepository {
	return &DBPostRepository{
		slugCache: cache.NewCache[string, *model.Post](),

		db: db,

		compressor: compression.ZstdCompressor{},
		categories: NewDBCategoryRepository(db),

		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *DBPostRepository) SetChangeNotifier(notifier func(Change)) {
	r.changeNotifier = notifier
}

func (r *DBPostRepository) notify(kind ChangeKind, id model.PostID) {
	r.slugCache.Clear()
	if r.changeNotifier != nil {
		go r.changeNotifier(Change{Kind: kind, PostID: id})
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DBPostRepository) scanPost(row rowScanner) (*model.Post, error) {
	var post model.Post
	var compressed []byte
	var excerpt, hash, readTime, cover, authorID, authorName, authorEmail sql.NullString

	err := row.Scan(&post.ID, &post.Title, &excerpt, &compressed, &hash, &post.Category, &post.Type, &post.Status,
		&readTime, &cover, &post.Slug, &authorID, &post.CreatedAt, &post.UpdatedAt,
		&authorName, &authorEmail)
	if err != nil {
		return nil, err
	}

	content, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("error decompressing content: %w", err)
	}

	post.Content = string(content)
	post.Excerpt = excerpt.String
	post.ContentHash = hash.String
	post.ReadTime = readTime.String
	post.CoverImage = cover.String
	post.AuthorID = model.UserID(authorID.String)
	post.Author = &model.Author{Name: authorName.String, Email: authorEmail.String}

	return &post, nil
}

func (r *DBPostRepository) ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		where = append(where, "p.type = ?")
		args = append(args, filter.Type)
	}

	query := selectPost
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		post, err := r.scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	// Stored timestamps are text; keep the order exact regardless of formatting.
	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return -a.CreatedAt.Compare(b.CreatedAt)
	})

	return posts, nil
}

func (r *DBPostRepository) GetPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	post, err := r.scanPost(r.db.QueryRowContext(ctx, selectPost+" WHERE p.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading post %s: %w", id, err)
	}
	return post, nil
}

func (r *DBPostRepository) GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error) {
	if post, ok := r.slugCache.Get(slug); ok {
		return post, nil
	}

	post, err := r.scanPost(r.db.QueryRowContext(ctx, selectPost+" WHERE p.slug = ? AND p.status = ?",
		slug, model.PostStatusPublished))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading post %s: %w", slug, err)
	}

	r.slugCache.Set(slug, post)
	return post, nil
}

// uniqueSlug derives a slug from title, appending -2, -3, ... while another post holds it.
func (r *DBPostRepository) uniqueSlug(ctx context.Context, title string, exclude model.PostID) (string, error) {
	base := util.GenerateSlug(title)
	if base == "" {
		base = fallbackSlug
	}

	slug := base
	for i := 2; ; i++ {
		var count int
		err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE slug = ? AND id != ?`, slug, exclude).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("error checking slug: %w", err)
		}
		if count == 0 {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func (r *DBPostRepository) encodeContent(post *model.Post) ([]byte, error) {
	compressed, err := r.compressor.Compress([]byte(post.Content))
	if err != nil {
		return nil, fmt.Errorf("error compressing content: %w", err)
	}

	// Calculate the content hash for the compressed content
	post.ContentHash = util.ContentHash(compressed)
	return compressed, nil
}

func (r *DBPostRepository) CreatePost(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = model.PostID(uuid.New().String())
	}
	now := r.now()
	post.CreatedAt = now
	post.UpdatedAt = now

	slug, err := r.uniqueSlug(ctx, post.Title, post.ID)
	if err != nil {
		return err
	}
	post.Slug = slug

	compressed, err := r.encodeContent(post)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, excerpt, content, content_hash, category, type, status, read_time, cover_image, slug, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Excerpt, compressed, post.ContentHash, post.Category, post.Type, post.Status,
		post.ReadTime, post.CoverImage, post.Slug, post.AuthorID, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving post: %w", err)
	}

	repoLogger.Debug().Str("post_id", string(post.ID)).Str("slug", post.Slug).Msg("Post saved")

	r.afterWrite(ctx, ChangeCreated, post.ID)
	return nil
}

func (r *DBPostRepository) UpdatePost(ctx context.Context, post *model.Post) error {
	slug, err := r.uniqueSlug(ctx, post.Title, post.ID)
	if err != nil {
		return err
	}
	post.Slug = slug
	post.UpdatedAt = r.now()

	compressed, err := r.encodeContent(post)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = ?, excerpt = ?, content = ?, content_hash = ?, category = ?, type = ?, status = ?,
		 read_time = ?, cover_image = ?, slug = ?, updated_at = ? WHERE id = ?`,
		post.Title, post.Excerpt, compressed, post.ContentHash, post.Category, post.Type, post.Status,
		post.ReadTime, post.CoverImage, post.Slug, post.UpdatedAt, post.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	repoLogger.Debug().Str("post_id", string(post.ID)).Str("slug", post.Slug).Msg("Post updated")

	r.afterWrite(ctx, ChangeUpdated, post.ID)
	return nil
}

func (r *DBPostRepository) DeletePost(ctx context.Context, id model.PostID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	r.afterWrite(ctx, ChangeDeleted, id)
	return nil
}

// SetTimestamps overwrites the creation and modification times of a post.
// Importers use it to keep the dates of the source documents.
func (r *DBPostRepository) SetTimestamps(ctx context.Context, id model.PostID, created, updated time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET created_at = ?, updated_at = ? WHERE id = ?`,
		created.UTC(), updated.UTC(), id)
	if err != nil {
		return fmt.Errorf("error updating timestamps: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	r.afterWrite(ctx, ChangeUpdated, id)
	return nil
}

func (r *DBPostRepository) afterWrite(ctx context.Context, kind ChangeKind, id model.PostID) {
	if err := r.categories.RefreshCounts(ctx); err != nil {
		repoLogger.Error().Err(err).Msg("Error refreshing category counts")
	}
	if _, err := r.CheckForChanges(ctx); err != nil {
		repoLogger.Warn().Err(err).Msg("Error updating change fingerprint")
	}
	r.notify(kind, id)
}

// fingerprint summarizes the posts table so that writes from other processes can be detected.
func (r *DBPostRepository) fingerprint(ctx context.Context) (string, error) {
	var count int
	var latest sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(updated_at) FROM posts`).Scan(&count, &latest)
	if err != nil {
		return "", fmt.Errorf("error scanning latest modified time: %w", err)
	}
	return strconv.Itoa(count) + "@" + latest.String, nil
}

// WatchChanges polls the posts table until ctx is done and reports writes made
// outside this repository (importers, maintenance tools) as ChangeReloaded.
func (r *DBPostRepository) WatchChanges(ctx context.Context, interval time.Duration) {
	if _, err := r.CheckForChanges(ctx); err != nil {
		repoLogger.Warn().Err(err).Msg("Error reading initial change fingerprint")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if changed, err := r.CheckForChanges(ctx); err != nil {
			repoLogger.Error().Err(err).Msg("Error checking latest modification time")
		} else if changed {
			repoLogger.Info().Msg("Posts changed outside the API, notifying")
			r.notify(ChangeReloaded, "")
		} else {
			repoLogger.Debug().Msg("No posts modified, skipping reload")
		}
	}
}

// CheckForChanges compares the current fingerprint with the last one seen.
func (r *DBPostRepository) CheckForChanges(ctx context.Context) (bool, error) {
	fp, err := r.fingerprint(ctx)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	changed := fp != r.lastSeen
	r.lastSeen = fp
	return changed, nil
}
