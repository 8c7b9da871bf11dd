package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/postboard/internal/store"
)

// RenderList renders the post list, scrolled so the cursor is visible.
// When loading is true a spinner row is reserved below the last post.
func RenderList(posts []store.Post, cursor, width, height int, loading bool, spin string) string {
	if len(posts) == 0 {
		if loading {
			return LoadingRow.Render(spin+" Loading posts...") + "\n"
		}
		return HelpStyle.Render("No posts to display. Press 'r' to refresh.")
	}

	availableHeight := height
	if loading {
		availableHeight--
	}
	if availableHeight < 1 {
		availableHeight = 1
	}

	offset := calcScrollOffset(len(posts), cursor, availableHeight)

	var b strings.Builder
	for i := offset; i < len(posts) && i < offset+availableHeight; i++ {
		b.WriteString(renderPostLine(posts[i], i == cursor, width))
		b.WriteString("\n")
	}
	if loading {
		b.WriteString(LoadingRow.Render(spin + " Loading more..."))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first visible row so that cursor fits in
// availableHeight rows.
func calcScrollOffset(n, cursor, availableHeight int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		cursor = n - 1
	}
	if cursor >= availableHeight {
		return cursor - availableHeight + 1
	}
	return 0
}

// renderPostLine renders one row: favorite mark, id, title.
func renderPostLine(p store.Post, selected bool, width int) string {
	mark := "  "
	if p.Favorite {
		mark = FavoriteMark.Render("★") + " "
	}
	id := IDBadge.Render(fmt.Sprintf("#%d", p.ID))
	prefixWidth := lipgloss.Width(mark) + lipgloss.Width(id) + 1

	// Padding on the title style takes two columns.
	titleWidth := width - prefixWidth - 2
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := truncateRunes(p.Title, titleWidth)

	style := NormalItem
	if selected {
		style = SelectedItem
	}
	return mark + id + " " + style.Render(title)
}

// truncateRunes shortens s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

// formatAgeShort formats how long ago t was.
func formatAgeShort(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// RenderStatusBar renders the bottom status bar with position and key hints.
// cachedAge is empty unless the list came from the mirror.
func RenderStatusBar(cursor, total, page, totalPages, width int, cachedAge string) string {
	position := fmt.Sprintf(" %d/%d  page %d/%d ", min(cursor+1, total), total, page, totalPages)
	if cachedAge != "" {
		position += StatusBarText.Render("cached "+cachedAge) + " "
	}

	hints := []string{
		StatusBarKey.Render("j/k") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("Enter") + StatusBarText.Render(":open"),
		StatusBarKey.Render("r") + StatusBarText.Render(":refresh"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(hints, " ")

	padding := width - lipgloss.Width(position) - lipgloss.Width(keyHints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(position + strings.Repeat(" ", padding) + keyHints)
}
