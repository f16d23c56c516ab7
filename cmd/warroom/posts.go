package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/render"
	"github.com/debemdeboas/war-room/internal/store"
	"github.com/debemdeboas/war-room/internal/util"
	"github.com/spf13/cobra"
)

func (a *app) postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "posts",
		Aliases: []string{"post"},
		Short:   "List and manage posts",
	}
	cmd.AddCommand(
		a.postsListCmd(),
		a.postsStatsCmd(),
		a.postsShowCmd(),
		a.postsCreateCmd(),
		a.postsUpdateCmd(),
		a.postsDeleteCmd(),
	)
	return cmd
}

func (a *app) postsListCmd() *cobra.Command {
	var status string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts (all posts for admins, published posts otherwise)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				a.store.InvalidateCache()
			}
			if err := a.store.FetchPosts(cmd.Context()); err != nil {
				return err
			}

			posts := a.store.State().Posts
			counts := countPosts(posts)
			if status != "" {
				filtered := posts[:0]
				for _, p := range posts {
					if string(p.Status) == status {
						filtered = append(filtered, p)
					}
				}
				posts = filtered
			}
			printPosts(cmd.OutOrStdout(), posts)
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(counts.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show posts with this status (draft, published)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached list")
	return cmd
}

type postStats struct {
	total, published, draft, featured int
}

func countPosts(posts []model.Post) postStats {
	st := postStats{total: len(posts)}
	for _, p := range posts {
		switch p.Status {
		case model.PostStatusPublished:
			st.published++
		case model.PostStatusDraft:
			st.draft++
		}
		if p.IsFeatured() {
			st.featured++
		}
	}
	return st
}

func (st postStats) String() string {
	return fmt.Sprintf("%d posts · %d published · %d draft · %d featured", st.total, st.published, st.draft, st.featured)
}

func (a *app) postsStatsCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count cached posts by status and type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				a.store.InvalidateCache()
			}
			if err := a.store.FetchPosts(cmd.Context()); err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), countPosts(a.store.State().Posts))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached list")
	return cmd
}

// lookup finds a post by id or slug, in the cache first.
func (a *app) lookup(cmd *cobra.Command, ref string) (model.Post, error) {
	if err := a.store.FetchPosts(cmd.Context()); err != nil {
		return model.Post{}, err
	}
	if p, ok := a.store.Post(model.PostID(ref)); ok {
		return p, nil
	}
	if p, ok := a.store.PostBySlug(ref); ok {
		return p, nil
	}
	if p, err := a.client.GetPostBySlug(cmd.Context(), ref); err == nil {
		return *p, nil
	}
	return model.Post{}, fmt.Errorf("post %q not found", ref)
}

func (a *app) postsShowCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id|slug>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lookup(cmd, args[0])
			if err != nil {
				return err
			}
			body := p.Content
			if !raw {
				body, err = md.NewConverter("", true, nil).ConvertString(p.Content)
				if err != nil {
					return err
				}
			}
			printPost(cmd.OutOrStdout(), p, body)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored HTML instead of markdown")
	return cmd
}

// postFlags are the writable fields shared by create and update.
type postFlags struct {
	title, excerpt, content, contentFile string
	category, postType, status, readTime string
	cover, coverURL                      string
}

func (f *postFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.title, "title", "t", "", "Title")
	fs.StringVar(&f.excerpt, "excerpt", "", "Excerpt")
	fs.StringVar(&f.content, "content", "", "HTML content")
	fs.StringVarP(&f.contentFile, "file", "f", "", "Read content from a file (.md files are rendered to HTML)")
	fs.StringVar(&f.category, "category", "", "Category ("+strings.Join(model.Categories, ", ")+")")
	fs.StringVar(&f.postType, "type", "", "Post type (normal, featured)")
	fs.StringVar(&f.status, "status", "", "Status (draft, published)")
	fs.StringVar(&f.readTime, "read-time", "", "Read time, e.g. '4 min read' (computed when omitted)")
	fs.StringVar(&f.cover, "cover", "", "Cover image file to upload")
	fs.StringVar(&f.coverURL, "cover-url", "", "Already hosted cover image URL")
}

// apply copies every flag the user set onto in.
func (f *postFlags) apply(cmd *cobra.Command, in *model.PostInput) error {
	set := cmd.Flags().Changed
	if set("title") {
		in.Title = f.title
	}
	if set("excerpt") {
		in.Excerpt = f.excerpt
	}
	if set("content") {
		in.Content = f.content
	}
	if set("file") {
		content, err := readContent(f.contentFile)
		if err != nil {
			return err
		}
		in.Content = content
	}
	if set("category") {
		in.Category = f.category
	}
	if set("type") {
		in.Type = model.PostType(f.postType)
	}
	if set("status") {
		in.Status = model.PostStatus(f.status)
	}
	if set("read-time") {
		in.ReadTime = f.readTime
	}
	if set("cover-url") {
		in.CoverImage = f.coverURL
	}
	if set("cover") {
		data, err := os.ReadFile(f.cover)
		if err != nil {
			return err
		}
		in.Cover = &model.ImageFile{Name: filepath.Base(f.cover), Data: data}
	}
	return nil
}

func readContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(path), ".md") {
		body := util.StripFrontMatter(data)
		return render.RenderPost(body, util.ContentHash(body)), nil
	}
	return string(data), nil
}

func (a *app) postsCreateCmd() *cobra.Command {
	var f postFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in model.PostInput
			if err := f.apply(cmd, &in); err != nil {
				return err
			}
			p, err := a.store.CreatePost(cmd.Context(), in)
			if err != nil {
				return sessionHint(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Created")+" "+accentStyle.Render(p.Title)+" "+mutedStyle.Render(string(p.ID)+" /"+p.Slug))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) postsUpdateCmd() *cobra.Command {
	var f postFlags

	cmd := &cobra.Command{
		Use:   "update <id|slug>",
		Short: "Update a post; fields not given keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.lookup(cmd, args[0])
			if err != nil {
				return err
			}
			in := model.InputFromPost(&current)
			if err := f.apply(cmd, &in); err != nil {
				return err
			}
			p, err := a.store.UpdatePost(cmd.Context(), current.ID, in)
			if err != nil {
				return sessionHint(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Updated")+" "+accentStyle.Render(p.Title)+" "+mutedStyle.Render(string(p.ID)+" /"+p.Slug))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) postsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|slug>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lookup(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeletePost(cmd.Context(), p.ID); err != nil {
				return sessionHint(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Deleted")+" "+accentStyle.Render(p.Title))
			return nil
		},
	}
}

func sessionHint(err error) error {
	if errors.Is(err, store.ErrNoSession) {
		return fmt.Errorf("%w (run 'warroom login')", err)
	}
	return err
}
