package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ganot/coursetrace/internal/config"
	"github.com/ganot/coursetrace/internal/domain/verbs"
	"github.com/ganot/coursetrace/internal/retry"
	sqlitetable "github.com/ganot/coursetrace/internal/storage/sqlite"
)

func verbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verb",
		Short: "Administer the custom verb-classification table",
	}
	cmd.AddCommand(verbAddCmd(), verbRemoveCmd(), verbListCmd())
	return cmd
}

func openRegistry(ctx context.Context) (*verbs.Registry, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	table, err := sqlitetable.Open(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := table.Migrate(); err != nil {
		table.Close()
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		Jitter:      0.1,
	}
	registry := verbs.NewRegistry(table, cfg.Verbs.UsageCacheCap, policy, logger)
	if err := registry.LoadCustom(ctx); err != nil {
		table.Close()
		return nil, nil, err
	}
	return registry, func() { table.Close() }, nil
}

func verbAddCmd() *cobra.Command {
	var category, action, description string
	cmd := &cobra.Command{
		Use:   "add <verb-id>",
		Short: "Add or update a custom verb entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, closeFn, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			entry := verbs.Entry{
				ID:          args[0],
				Category:    verbs.Category(category),
				Action:      action,
				Description: description,
			}
			if err := registry.Add(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Printf("added %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "interaction", "verb category (completion|progress|interaction)")
	cmd.Flags().StringVar(&action, "action", verbs.ActionTrackVerb, "classification action")
	cmd.Flags().StringVar(&description, "description", "", "human description")
	return cmd
}

func verbRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <verb-id>",
		Short: "Remove a custom verb entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, closeFn, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := registry.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed %s\n", args[0])
			return nil
		},
	}
}

func verbListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the merged verb-classification table",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, closeFn, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			entries := registry.Entries()
			sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

			categoryColor := map[verbs.Category]*color.Color{
				verbs.CategoryCompletion:  color.New(color.FgGreen),
				verbs.CategoryProgress:    color.New(color.FgCyan),
				verbs.CategoryInteraction: color.New(color.FgYellow),
			}
			for _, e := range entries {
				c, ok := categoryColor[e.Category]
				if !ok {
					c = color.New(color.FgWhite)
				}
				fmt.Printf("%-12s %-18s %s\n", c.Sprint(e.Category), e.Action, e.ID)
			}
			return nil
		},
	}
}
