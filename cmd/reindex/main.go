// Command reindex recomputes derived post data: read times, category counts
// and, optionally, creation dates supplied in a dates file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/db"
	"github.com/debemdeboas/war-room/internal/logger"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/util"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", config.ConfigPath(), "path to the YAML config file")
	datesPath := flag.String("dates", "", "Optional file of '<slug or id> <timestamp>' lines")
	dryRun := flag.Bool("dry-run", false, "Report changes without writing them")
	flag.Parse()

	log := logger.New("info", logger.WithComponent("reindex"))
	config.SetLogger(log)
	db.SetLogger(log)
	repository.SetLogger(log)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		log.Fatal().Err(err).Msgf(config.ErrInitializeDatabaseFmt, err)
	}
	defer database.Close()

	var dates map[string]time.Time
	if *datesPath != "" {
		f, err := os.Open(*datesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening dates file")
		}
		dates, err = readDates(f)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading dates file")
		}
	}

	ctx := context.Background()
	r := &reindexer{
		posts:      repository.NewDBPostRepository(database),
		categories: repository.NewDBCategoryRepository(database),
		log:        log,
		dryRun:     *dryRun,
	}
	stats, err := r.run(ctx, dates)
	if err != nil {
		log.Fatal().Err(err).Msg("Reindex failed")
	}
	log.Info().
		Int("posts", stats.posts).
		Int("read_times", stats.readTimes).
		Int("dates", stats.dates).
		Int("errors", stats.errors).
		Bool("dry_run", *dryRun).
		Msg("Reindex complete")
}

// parseFuzzyTime attempts to parse a timestamp string using multiple formats.
func parseFuzzyTime(timeStr string) (time.Time, error) {
	timeFormats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339,
		"2006-01-02 15:04:05",
		time.DateOnly,
	}

	for _, format := range timeFormats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time '%s' with any known format", timeStr)
}

// readDates parses "<key> <timestamp>" lines. Blank lines and # comments are skipped.
func readDates(r io.Reader) (map[string]time.Time, error) {
	dates := map[string]time.Time{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, ts, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: expected '<slug or id> <timestamp>'", n)
		}
		t, err := parseFuzzyTime(strings.TrimSpace(ts))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		dates[key] = t
	}
	return dates, sc.Err()
}

type postStore interface {
	ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	SetTimestamps(ctx context.Context, id model.PostID, created, updated time.Time) error
}

type reindexer struct {
	posts      postStore
	categories repository.CategoryRepository
	log        zerolog.Logger
	dryRun     bool
}

type stats struct {
	posts, readTimes, dates, errors int
}

func (r *reindexer) run(ctx context.Context, dates map[string]time.Time) (stats, error) {
	var s stats

	posts, err := r.posts.ListPosts(ctx, repository.PostFilter{})
	if err != nil {
		return s, err
	}
	s.posts = len(posts)

	for i := range posts {
		p := &posts[i]
		l := r.log.With().Str("post_id", string(p.ID)).Str("slug", p.Slug).Logger()

		created, updated := p.CreatedAt, p.UpdatedAt
		retime := false
		if d, ok := dates[p.Slug]; ok {
			created, retime = d, true
		} else if d, ok := dates[string(p.ID)]; ok {
			created, retime = d, true
		}
		if updated.Before(created) {
			updated = created
		}

		if rt := util.CalculateReadTime(p.Content); rt != p.ReadTime {
			l.Info().Str("from", p.ReadTime).Str("to", rt).Msg("Read time changed")
			s.readTimes++
			if !r.dryRun {
				p.ReadTime = rt
				if err := r.posts.UpdatePost(ctx, p); err != nil {
					l.Error().Err(err).Msg("Failed to update read time")
					s.errors++
					continue
				}
				// UpdatePost stamps a new modification time; keep the old one.
				retime = true
			}
		}

		if !retime {
			continue
		}
		if _, ok := dates[p.Slug]; ok {
			s.dates++
		} else if _, ok := dates[string(p.ID)]; ok {
			s.dates++
		}
		if r.dryRun {
			l.Info().Time("created_at", created).Msg("Would set date")
			continue
		}
		if err := r.posts.SetTimestamps(ctx, p.ID, created, updated); err != nil {
			l.Error().Err(err).Msg("Failed to update timestamps")
			s.errors++
		}
	}

	if r.dryRun {
		return s, nil
	}
	return s, r.categories.RefreshCounts(ctx)
}
