package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/debemdeboas/war-room/internal/db"
	"github.com/debemdeboas/war-room/internal/model"
)

type DBCategoryRepository struct { // implements CategoryRepository
	db db.DB
}

func NewDBCategoryRepository(db db.DB) *DBCategoryRepository {
	return &DBCategoryRepository{db: db}
}

func (r *DBCategoryRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, description, post_count FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &description, &c.PostCount); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		c.Description = description.String
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *DBCategoryRepository) RefreshCounts(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE categories SET post_count = (
    SELECT COUNT(*) FROM posts WHERE posts.category = categories.name AND posts.status = ?
)`, model.PostStatusPublished)
	if err != nil {
		return fmt.Errorf("error refreshing category counts: %w", err)
	}
	return nil
}
