package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"toon-shelf/comments"
)

var (
	commentUser string
	likeUser    string
)

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Read and post comments",
}

var commentsListCmd = &cobra.Command{
	Use:   "list [id]",
	Short: "List comments on an entry, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		list := sess.Comments.List(id)
		if len(list) == 0 {
			fmt.Fprintln(out, "No comments")
			return nil
		}
		for _, c := range list {
			liked := ""
			if sess.Comments.IsLiked(id, c.ID, "") {
				liked = " (liked)"
			}
			fmt.Fprintf(out, "[%s] %s  %s  %d likes%s\n  %s\n",
				c.ID, c.Username, c.PostedAt.Local().Format(time.DateTime), c.Likes, liked, c.Content)
		}
		return nil
	},
}

var commentsAddCmd = &cobra.Command{
	Use:   "add [id] [content...]",
	Short: "Post a comment",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		username := commentUser
		if username == "" {
			username = sess.Identity.Username()
		}
		content := strings.Join(args[1:], " ")
		if n := utf8.RuneCountInString(strings.TrimSpace(content)); n > comments.MaxContentLength {
			return fmt.Errorf("comment is %d characters, the limit is %d", n, comments.MaxContentLength)
		}
		c, err := sess.Comments.Add(id, content, username)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Posted %s as %s\n", c.ID, c.Username)
		return nil
	},
}

var commentsRemoveCmd = &cobra.Command{
	Use:   "remove [id] [comment-id]",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if !sess.Comments.Remove(id, args[1]) {
			return fmt.Errorf("comment %s not found on entry %d", args[1], id)
		}
		return nil
	},
}

var commentsLikeCmd = &cobra.Command{
	Use:   "like [id] [comment-id]",
	Short: "Like a comment, or withdraw the like",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, ok := sess.Comments.ToggleLike(id, args[1], likeUser)
		if !ok {
			return fmt.Errorf("comment %s not found on entry %d", args[1], id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d likes\n", c.Likes)
		return nil
	},
}

var commentsWhoamiCmd = &cobra.Command{
	Use:   "whoami [new-username]",
	Short: "Show the local identity, or change the display name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if err := sess.Identity.SetUsername(args[0]); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", sess.Identity.Username(), sess.Identity.UserID())
		return nil
	},
}

func init() {
	commentsAddCmd.Flags().StringVar(&commentUser, "user", "", "Display name (default: the local identity)")
	commentsLikeCmd.Flags().StringVar(&likeUser, "user-id", "", "Like as this user id (default: the local identity)")

	commentsCmd.AddCommand(commentsListCmd)
	commentsCmd.AddCommand(commentsAddCmd)
	commentsCmd.AddCommand(commentsRemoveCmd)
	commentsCmd.AddCommand(commentsLikeCmd)
	commentsCmd.AddCommand(commentsWhoamiCmd)
}
