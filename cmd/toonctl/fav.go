package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var favCmd = &cobra.Command{
	Use:   "fav",
	Short: "Manage favorites",
}

var favListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		openCatalog(cmd)
		printEntries(cmd, sess.CollectedEntries())
		return nil
	},
}

var favAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Add an entry to favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if sess.Collection.Add(id) {
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%d not added (already a favorite or store full)\n", id)
		}
		return nil
	},
}

var favRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove an entry from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if sess.Collection.Remove(id) {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%d is not a favorite\n", id)
		}
		return nil
	},
}

var favClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all favorites",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sess.Collection.Clear()
	},
}

func init() {
	favCmd.AddCommand(favListCmd)
	favCmd.AddCommand(favAddCmd)
	favCmd.AddCommand(favRemoveCmd)
	favCmd.AddCommand(favClearCmd)
}
