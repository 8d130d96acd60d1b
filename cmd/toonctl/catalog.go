package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"toon-shelf/catalog"
	"toon-shelf/history"
)

var (
	listCategory string
	listDecade   int
	listTag      string
	listSort     string
	listAsc      bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the cartoon catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries with optional filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := openCatalog(cmd)
		entries = catalog.FilterByCategory(entries, listCategory)
		entries = catalog.FilterByDecade(entries, listDecade)
		entries = catalog.FilterByTag(entries, listTag)

		order := catalog.Descending
		if listAsc {
			order = catalog.Ascending
		}
		switch listSort {
		case "":
		case "rating":
			entries = catalog.SortByRating(entries, order)
		case "year":
			entries = catalog.SortByYear(entries, order)
		default:
			return fmt.Errorf("unknown sort %q: use rating or year", listSort)
		}

		printEntries(cmd, entries)
		return nil
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search titles, directors, tags and descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printEntries(cmd, catalog.Search(openCatalog(cmd), strings.Join(args, " ")))
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one entry and its episodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		openCatalog(cmd)
		e, ok := sess.Focus(id)
		if !ok {
			return fmt.Errorf("entry %d not found", id)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s", e.Title)
		if e.EnglishTitle != "" {
			fmt.Fprintf(out, " (%s)", e.EnglishTitle)
		}
		fmt.Fprintln(out)
		if e.Director != "" {
			fmt.Fprintf(out, "Director: %s\n", e.Director)
		}
		if len(e.Tags) > 0 {
			fmt.Fprintf(out, "Tags: %s\n", strings.Join(e.Tags, ", "))
		}
		if e.Description != "" {
			fmt.Fprintf(out, "\n%s\n", e.Description)
		}
		fmt.Fprintf(out, "Favorite: %t  Comments: %d\n", sess.Collection.Contains(id), sess.Comments.Count(id))
		for _, ep := range e.Episodes {
			line := fmt.Sprintf("  Ep %d  %s  %s", ep.Number, ep.Title, history.FormatDuration(ep.Duration))
			if p, ok := sess.History.Progress(id, ep.Number); ok {
				line += fmt.Sprintf("  (resume at %s)", history.FormatDuration(p.Position))
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var catalogCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range catalog.Categories(openCatalog(cmd)) {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the catalog again, keeping the cached copy if the fetch fails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		entries, err := catalogCache.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh catalog: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d entries\n", len(entries))
		return nil
	},
}

func init() {
	catalogListCmd.Flags().StringVar(&listCategory, "category", "", "Only entries in this category")
	catalogListCmd.Flags().IntVar(&listDecade, "decade", 0, "Only entries from this decade, e.g. 1980")
	catalogListCmd.Flags().StringVar(&listTag, "tag", "", "Only entries with this tag")
	catalogListCmd.Flags().StringVar(&listSort, "sort", "", "Sort by rating or year")
	catalogListCmd.Flags().BoolVar(&listAsc, "asc", false, "Sort ascending")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogCategoriesCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
}
