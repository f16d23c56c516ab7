package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/repository"
	"github.com/debemdeboas/war-room/internal/sse"
	"github.com/spf13/cobra"
)

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories with their published post counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.FetchCategories(cmd.Context()); err != nil {
				return err
			}
			printCategories(cmd.OutOrStdout(), a.store.State().Categories)
			return nil
		},
	}
}

func (a *app) featuredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "featured",
		Short: "List the featured posts shown on the home page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.FetchFeaturedPosts(cmd.Context()); err != nil {
				return err
			}
			printPosts(cmd.OutOrStdout(), a.store.State().FeaturedPosts)
			return nil
		},
	}
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local post cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "invalidate",
			Short: "Force the next listing to refetch",
			RunE: func(cmd *cobra.Command, args []string) error {
				a.store.InvalidateCache()
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Cache invalidated"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the cache file",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.snapshots.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Removed ")+mutedStyle.Render(a.snapshots.Path()))
				return nil
			},
		},
	)
	return cmd
}

var errStopWatching = errors.New("stop watching")

func (a *app) watchCmd() *cobra.Command {
	var maxEvents int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow post changes live and keep the cache current",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			seen := 0
			err := a.client.Events(ctx, func(ev sse.Event) error {
				changed, err := a.onEvent(ctx, cmd.OutOrStdout(), ev)
				if err != nil {
					return err
				}
				if changed {
					seen++
				}
				if maxEvents > 0 && seen >= maxEvents {
					return errStopWatching
				}
				return nil
			})
			if errors.Is(err, errStopWatching) || ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Exit after this many post changes (0 runs until interrupted)")
	return cmd
}

// onEvent refreshes the cache for a change event and reports whether ev was one.
func (a *app) onEvent(ctx context.Context, w io.Writer, ev sse.Event) (bool, error) {
	if ev.Name == "connected" {
		fmt.Fprintln(w, okStyle.Render("Watching ")+mutedStyle.Render(a.client.BaseURL()))
		return false, nil
	}

	var change repository.Change
	if err := json.Unmarshal([]byte(ev.Data), &change); err != nil {
		fmt.Fprintln(w, warnStyle.Render("Ignoring event "+ev.Name))
		return false, nil
	}

	a.store.InvalidateCache()
	if err := a.store.FetchPosts(ctx); err != nil {
		return true, err
	}

	stamp := mutedStyle.Render(time.Now().Format(time.TimeOnly))
	label := accentStyle.Render(string(change.Kind))
	if p, ok := a.store.Post(change.PostID); ok {
		fmt.Fprintf(w, "%s %s %s\n", stamp, label, p.Title)
	} else {
		fmt.Fprintf(w, "%s %s %s\n", stamp, label, change.PostID)
	}
	return true, nil
}

// exportFrontMatter mirrors the fields the markdown importer reads back.
type exportFrontMatter struct {
	Title    string    `toml:"title"`
	Date     time.Time `toml:"date"`
	Category string    `toml:"category"`
	Type     string    `toml:"type"`
	Status   string    `toml:"status"`
	Excerpt  string    `toml:"excerpt"`
	Cover    string    `toml:"cover_image,omitempty"`
}

func (a *app) exportCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every post as a markdown file with front matter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.FetchPosts(cmd.Context()); err != nil {
				return err
			}
			if err := os.MkdirAll(args[0], 0o755); err != nil {
				return err
			}

			converter := md.NewConverter("", true, nil)
			n := 0
			for _, p := range a.store.State().Posts {
				if status != "" && string(p.Status) != status {
					continue
				}
				doc, err := exportPost(converter, p)
				if err != nil {
					return fmt.Errorf("exporting %s: %w", p.Slug, err)
				}
				if err := os.WriteFile(filepath.Join(args[0], p.Slug+".md"), doc, 0o644); err != nil {
					return err
				}
				n++
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Exported %d posts to ", n))+mutedStyle.Render(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only export posts with this status (draft, published)")
	return cmd
}

func exportPost(converter *md.Converter, p model.Post) ([]byte, error) {
	body, err := converter.ConvertString(p.Content)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("%%%\n")
	err = toml.NewEncoder(&buf).Encode(exportFrontMatter{
		Title:    p.Title,
		Date:     p.CreatedAt.UTC(),
		Category: p.Category,
		Type:     string(p.Type),
		Status:   string(p.Status),
		Excerpt:  p.Excerpt,
		Cover:    p.CoverImage,
	})
	if err != nil {
		return nil, err
	}
	buf.WriteString("%%%\n\n")
	buf.WriteString(body)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}
