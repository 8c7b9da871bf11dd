package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or empty the local mirror",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the mirrored posts, sorted by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		mirror, err := openMirror()
		if err != nil {
			return err
		}
		defer mirror.Close()

		posts, err := mirror.ReadAll()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(posts) == 0 {
			_, _ = fmt.Fprintln(out, "Mirror is empty. Run 'postboard fetch' to fill it.")
			return nil
		}

		at, err := mirror.LastReplaced()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%d posts, replaced %s\n\n", len(posts), at.Local().Format("2006-01-02 15:04:05"))
		printPosts(out, posts)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every post from the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		mirror, err := openMirror()
		if err != nil {
			return err
		}
		defer mirror.Close()

		if err := mirror.ReplaceAll(nil); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Mirror cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
