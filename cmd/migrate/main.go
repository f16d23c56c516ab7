// Command migrate imports a directory of markdown files as posts.
//
// Each file may start with a %%% delimited TOML front matter block declaring
// title, date, category, type, status, excerpt and cover_image.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/db"
	"github.com/debemdeboas/war-room/internal/logger"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/render"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/util"
	"github.com/rs/zerolog"
)

const (
	defaultCategory = "Insights"
	excerptLength   = 200
)

func main() {
	dir := flag.String("path", "", "Path to the directory containing .md files")
	ownerID := flag.String("owner-id", "", "Author user ID for the imported posts")
	configPath := flag.String("config", config.ConfigPath(), "path to the YAML config file")
	dryRun := flag.Bool("dry-run", false, "Parse files without writing to the database")
	flag.Parse()

	log := logger.New("info", logger.WithComponent("migrate"))
	config.SetLogger(log)
	db.SetLogger(log)
	repository.SetLogger(log)
	render.SetLogger(log)

	if *dir == "" || *ownerID == "" {
		log.Fatal().Msg("Both --path and --owner-id flags are required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if err := render.SetEngine(cfg.Site.MarkdownEngine); err != nil {
		log.Fatal().Err(err).Msg("Error selecting markdown engine")
	}

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		log.Fatal().Err(err).Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	repo := repository.NewDBPostRepository(database)
	imported, failed := importDir(context.Background(), log, repo, *dir, model.UserID(*ownerID), *dryRun)
	log.Info().Int("imported", imported).Int("failed", failed).Bool("dry_run", *dryRun).Msg("Import finished")
	if failed > 0 {
		os.Exit(1)
	}
}

// importer is the subset of the post repository the import needs.
type importer interface {
	CreatePost(ctx context.Context, post *model.Post) error
	SetTimestamps(ctx context.Context, id model.PostID, created, updated time.Time) error
}

func importDir(ctx context.Context, log zerolog.Logger, repo importer, dir string, owner model.UserID, dryRun bool) (imported, failed int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("path", dir).Msg("Error reading directory")
		return 0, 1
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		l := log.With().Str("file", entry.Name()).Logger()

		post, created, err := readPost(filepath.Join(dir, entry.Name()), owner)
		if err != nil {
			l.Error().Err(err).Msg("Error parsing file")
			failed++
			continue
		}
		if dryRun {
			l.Info().Str("title", post.Title).Str("category", post.Category).Str("read_time", post.ReadTime).Msg("Parsed")
			imported++
			continue
		}

		if err := repo.CreatePost(ctx, post); err != nil {
			l.Error().Err(err).Msg("Error saving post")
			failed++
			continue
		}
		if err := repo.SetTimestamps(ctx, post.ID, created, created); err != nil {
			l.Warn().Err(err).Msg("Error keeping original date")
		}
		l.Info().Str("post_id", string(post.ID)).Str("slug", post.Slug).Msg("Imported")
		imported++
	}
	return imported, failed
}

// readPost turns one markdown file into a post. The returned time is the
// front matter date, or the file's modification time when none is declared.
func readPost(path string, owner model.UserID) (*model.Post, time.Time, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}

	in := model.PostInput{
		Title:    strings.TrimSuffix(filepath.Base(path), ".md"),
		Category: defaultCategory,
		Status:   model.PostStatusPublished,
	}
	created := info.ModTime().UTC()

	if fm, err := util.GetFrontMatter(content); err == nil {
		if fm.Title != "" {
			in.Title = fm.Title
		}
		if !fm.Date.IsZero() {
			created = fm.Date.UTC()
		}
		if fm.Category != "" {
			in.Category = fm.Category
		}
		in.Type = model.PostType(fm.Type)
		if fm.Status != "" {
			in.Status = model.PostStatus(fm.Status)
		}
		in.Excerpt = fm.Excerpt
		in.CoverImage = fm.Cover
	}

	body := util.StripFrontMatter(content)
	in.Content = render.RenderPost(body, util.ContentHash(body))
	if in.Excerpt == "" {
		in.Excerpt = excerptFrom(body)
	}

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, time.Time{}, fmt.Errorf("invalid post: %w", err)
	}

	return &model.Post{
		Title:      in.Title,
		Excerpt:    in.Excerpt,
		Content:    in.Content,
		Category:   in.Category,
		Type:       in.Type,
		Status:     in.Status,
		ReadTime:   util.CalculateReadTime(in.Content),
		CoverImage: in.CoverImage,
		AuthorID:   owner,
	}, created, nil
}

// excerptFrom returns the first prose paragraph of a markdown body, shortened to excerptLength runes.
func excerptFrom(md []byte) string {
	for _, para := range strings.Split(string(md), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" || strings.HasPrefix(para, "#") || strings.HasPrefix(para, "```") || strings.HasPrefix(para, "!") {
			continue
		}
		para = strings.Join(strings.Fields(para), " ")
		if utf8.RuneCountInString(para) <= excerptLength {
			return para
		}
		runes := []rune(para)
		return strings.TrimSpace(string(runes[:excerptLength])) + "..."
	}
	return ""
}
