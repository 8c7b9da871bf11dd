package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/postboard/internal/store"
)

// detailChrome is the number of lines the sheet spends on its title,
// border and hint line.
const detailChrome = 6

// Detail is the sheet shown for a single post.
type Detail struct {
	post     store.Post
	viewport viewport.Model
	width    int
}

// NewDetail creates a detail sheet sized for a width x height terminal.
func NewDetail(p store.Post, width, height int) Detail {
	d := Detail{post: p, viewport: viewport.New(0, 0)}
	d.SetSize(width, height)
	return d
}

// SetSize resizes the sheet and rewraps the body.
func (d *Detail) SetSize(width, height int) {
	d.width = width
	d.viewport.Width = max(width-4, 10)
	d.viewport.Height = max(height-detailChrome, 1)
	d.viewport.SetContent(lipgloss.NewStyle().Width(d.viewport.Width).Render(d.post.Body))
}

// Post returns the post being shown.
func (d Detail) Post() store.Post {
	return d.post
}

// SetFavorite updates the flag shown on the sheet.
func (d *Detail) SetFavorite(v bool) {
	d.post.Favorite = v
}

// Update scrolls the body.
func (d Detail) Update(msg tea.Msg) (Detail, tea.Cmd) {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return d, cmd
}

// View renders the sheet.
func (d Detail) View() string {
	star := "☆"
	if d.post.Favorite {
		star = FavoriteMark.Render("★")
	}
	title := DetailTitle.Render(fmt.Sprintf("%s #%d %s", star, d.post.ID, d.post.Title))

	hints := []string{
		StatusBarKey.Render("f") + StatusBarText.Render(":favorite"),
		StatusBarKey.Render("j/k") + StatusBarText.Render(":scroll"),
		StatusBarKey.Render("esc") + StatusBarText.Render(":back"),
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(DetailPanel.Width(max(d.width-2, 12)).Render(d.viewport.View()))
	b.WriteString("\n")
	b.WriteString(strings.Join(hints, " "))
	return b.String()
}
