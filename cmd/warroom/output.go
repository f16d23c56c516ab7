package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/debemdeboas/war-room/internal/model"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func statusLabel(s model.PostStatus) string {
	if s == model.PostStatusPublished {
		return okStyle.Render(string(s))
	}
	return warnStyle.Render(string(s))
}

func printPosts(w io.Writer, posts []model.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No posts."))
		return
	}
	t := newTable("ID", "TITLE", "CATEGORY", "TYPE", "STATUS", "READ", "UPDATED")
	for _, p := range posts {
		t.Row(string(p.ID), p.Title, p.Category, string(p.Type), statusLabel(p.Status), p.ReadTime, p.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w, t)
}

func printStats(w io.Writer, st postStats) {
	t := newTable("TOTAL", "PUBLISHED", "DRAFT", "FEATURED")
	t.Row(strconv.Itoa(st.total), okStyle.Render(strconv.Itoa(st.published)), warnStyle.Render(strconv.Itoa(st.draft)), accentStyle.Render(strconv.Itoa(st.featured)))
	fmt.Fprintln(w, t)
}

func printCategories(w io.Writer, categories []model.Category) {
	t := newTable("NAME", "SLUG", "POSTS")
	for _, c := range categories {
		t.Row(c.Name, c.Slug, strconv.Itoa(c.PostCount))
	}
	fmt.Fprintln(w, t)
}

func printPost(w io.Writer, p model.Post, body string) {
	fmt.Fprintln(w, titleStyle.Render(p.Title))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s · %s · %s · %s", p.Category, p.Type, p.ReadTime, p.Slug)))
	fmt.Fprintln(w, "Status: "+statusLabel(p.Status))
	if p.Author != nil {
		fmt.Fprintln(w, "Author: "+accentStyle.Render(p.Author.Name)+" "+mutedStyle.Render("<"+p.Author.Email+">"))
	}
	fmt.Fprintln(w, "Created: "+p.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(w, "Updated: "+p.UpdatedAt.Local().Format(time.DateTime))
	if p.CoverImage != "" {
		fmt.Fprintln(w, "Cover: "+p.CoverImage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render(p.Excerpt))
	fmt.Fprintln(w)
	fmt.Fprintln(w, body)
}

func printUser(w io.Writer, u *model.User) {
	fmt.Fprintf(w, "%s %s %s\n", accentStyle.Render(u.Name), mutedStyle.Render("<"+u.Email+">"), titleStyle.Render(string(u.Role)))
}
