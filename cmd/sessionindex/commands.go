// File path: cmd/sessionindex/commands.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/brettcrane/sessionindex/internal/common"
	"github.com/brettcrane/sessionindex/internal/engine"
	"github.com/brettcrane/sessionindex/internal/index"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionindex",
		Short:         "Index and search recorded coding session logs",
		Long:          "sessionindex maintains a searchable SQLite index over append-only JSONL session logs. The log files stay the source of truth; the index can be rebuilt from them at any time.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newListCmd(),
		newShowCmd(),
		newSyncCmd(),
		newRebuildCmd(),
		newStatsCmd(),
		newRepairCmd(),
		newWatchCmd(),
	)
	return root
}

func openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := engine.LoadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCmd() *cobra.Command {
	var (
		project string
		from    string
		to      string
		search  string
		offset  int
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed sessions with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			filter := index.Filter{Project: project, Search: search, Offset: offset, Limit: limit}
			if from != "" {
				ts, err := time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
				filter.DateFrom = &ts
			}
			if to != "" {
				ts, err := time.Parse(time.RFC3339, to)
				if err != nil {
					return fmt.Errorf("parse --to: %w", err)
				}
				filter.DateTo = &ts
			}

			summaries, total, err := eng.Sessions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"data":   summaries,
				"total":  total,
				"offset": filter.Offset,
				"limit":  filter.Limit,
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "filter by project name (exact)")
	cmd.Flags().StringVar(&from, "from", "", "include sessions starting at or after this RFC3339 time")
	cmd.Flags().StringVar(&to, "to", "", "include sessions starting at or before this RFC3339 time")
	cmd.Flags().StringVar(&search, "search", "", "full-text search term")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	cmd.Flags().IntVar(&limit, "limit", index.DefaultLimit, "page size")
	return cmd
}

func newShowCmd() *cobra.Command {
	var includeThinking bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session's full timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			detail, err := eng.Session(cmd.Context(), args[0], includeThinking)
			if err != nil {
				return err
			}
			return printJSON(detail)
		},
	}
	cmd.Flags().BoolVar(&includeThinking, "thinking", false, "include thinking events")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Index only new or changed session files",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			count, err := eng.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"sessions_indexed": count})
		},
	}
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Discard the index and re-derive it from every session file",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			result, err := eng.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"sessions_indexed": result.Count,
				"elapsed_seconds":  result.Elapsed.Seconds(),
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			return printJSON(eng.Stats(cmd.Context()))
		},
	}
}

func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Rebuild the full-text search structure from stored events",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			if err := eng.RepairSearch(cmd.Context()); err != nil {
				return err
			}
			return printJSON(map[string]string{"status": "ok"})
		},
	}
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run incremental sync on a fixed schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			log := common.Component("watch")
			runSync := func() {
				count, err := eng.Sync(cmd.Context())
				if err != nil {
					log.Warn("scheduled sync failed", "error", err)
					return
				}
				if count > 0 {
					log.Info("scheduled sync indexed sessions", "count", count)
				}
			}

			runSync()
			scheduler := cron.New()
			if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), runSync); err != nil {
				return fmt.Errorf("schedule sync: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()

			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "time between incremental syncs")
	return cmd
}
