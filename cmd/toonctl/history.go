package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"toon-shelf/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Watch history and playback progress",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recently watched episodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		openCatalog(cmd)
		items := sess.ContinueWatching(historyLimit)
		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, "No history")
			return nil
		}
		for _, item := range items {
			resume := "-"
			if item.Progress != nil {
				resume = history.FormatDuration(item.Progress.Position)
			}
			fmt.Fprintf(out, "%s  %-32s  ep %-3d  resume %s\n",
				item.WatchedAt.Local().Format(time.DateTime), item.Entry.Title, item.Episode, resume)
		}
		return nil
	},
}

var historyRecordCmd = &cobra.Command{
	Use:   "record [id] [episode]",
	Short: "Record that an episode was watched",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		episode, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid episode %q: %w", args[1], err)
		}
		if !sess.History.RecordView(id, episode) {
			return fmt.Errorf("history write was dropped")
		}
		return nil
	},
}

var historyProgressCmd = &cobra.Command{
	Use:   "progress [id] [episode] [seconds]",
	Short: "Show, or with seconds save, the playback position",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		episode, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid episode %q: %w", args[1], err)
		}

		if len(args) == 3 {
			seconds, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[2], err)
			}
			if !sess.History.SaveProgress(id, episode, seconds) {
				return fmt.Errorf("progress write was dropped")
			}
			return nil
		}

		p, ok := sess.History.Progress(id, episode)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved position")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (saved %s)\n",
			history.FormatDuration(p.Position), p.SavedAt.Local().Format(time.DateTime))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the watch history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sess.History.Clear()
	},
}

var historySweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired playback positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := sess.History.PurgeExpiredProgress()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired positions\n", n)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum entries to show (0 for all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyRecordCmd)
	historyCmd.AddCommand(historyProgressCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historySweepCmd)
}
