package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abelbrown/postboard/internal/controller"
	"github.com/abelbrown/postboard/internal/logging"
	"github.com/abelbrown/postboard/internal/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch pages without the TUI and print them",
	Long: `Fetch page 1 and then --pages-1 further pages, replacing the mirror
after each page exactly as the TUI does, and print one post per line.

Examples:
  postboard fetch
  postboard fetch --pages 3
  postboard fetch --base-url http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, _ := cmd.Flags().GetInt("pages")
		if pages < 1 {
			return fmt.Errorf("--pages must be at least 1, got %d", pages)
		}

		mirror, err := openMirror()
		if err != nil {
			return err
		}
		defer mirror.Close()

		ctrl := newController(newClient(), mirror)
		defer ctrl.Close()

		posts, err := fetchPages(ctrl, pages)
		if err != nil {
			return err
		}
		logging.Info("fetch finished", "posts", len(posts), "page", ctrl.Page())
		printPosts(cmd.OutOrStdout(), posts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().Int("pages", 1, "number of pages to fetch")
}

// fetchPages runs a reset followed by up to pages-1 load-more steps, waiting
// for each. It stops early at the page ceiling.
func fetchPages(ctrl *controller.PostsController, pages int) ([]store.Post, error) {
	if !ctrl.Reset() {
		return nil, errors.New("fetch already in progress")
	}
	ctrl.Wait()
	if err := fetchErr(ctrl); err != nil {
		return nil, err
	}

	for i := 1; i < pages; i++ {
		if !ctrl.LoadMore() {
			break
		}
		ctrl.Wait()
		if err := fetchErr(ctrl); err != nil {
			return ctrl.Posts(), err
		}
	}
	return ctrl.Posts(), nil
}

func fetchErr(ctrl *controller.PostsController) error {
	if state, msg := ctrl.State(); state == controller.StateError {
		return fmt.Errorf("fetch failed: %s", msg)
	}
	return nil
}

// printPosts writes "id  title" lines, marking favorites.
func printPosts(w io.Writer, posts []store.Post) {
	for _, p := range posts {
		mark := " "
		if p.Favorite {
			mark = "★"
		}
		_, _ = fmt.Fprintf(w, "%s %4d  %s\n", mark, p.ID, p.Title)
	}
}
