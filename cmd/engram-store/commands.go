package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thebtf/engram-storage/internal/db"
	"github.com/thebtf/engram-storage/pkg/models"
)

func newInitCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the storage schema or directory tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withStore(cmd.Context(), func(store db.Store) error {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"adapter": store.Name(),
					"status":  "ready",
				})
			})
		},
	}
}

func newProjectsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List known projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withStore(cmd.Context(), func(store db.Store) error {
				projects, err := store.GetAllProjects(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), projects)
			})
		},
	}
}

func newSessionsCmd(f *flags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions <project>",
		Short: "List the most recent sessions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withStore(cmd.Context(), func(store db.Store) error {
				sessions, err := store.GetRecentSessions(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if sessions == nil {
					sessions = []*models.SDKSession{}
				}
				return writeJSON(cmd.OutOrStdout(), sessions)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", db.DefaultRecentLimit, "Maximum number of sessions")
	return cmd
}

func newQueueCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "queue <session-id>",
		Short: "List pending messages of a session, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || sessionID <= 0 {
				return fmt.Errorf("invalid session id %q: must be a positive integer", args[0])
			}
			return f.withStore(cmd.Context(), func(store db.Store) error {
				messages, err := store.GetPendingMessages(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				if messages == nil {
					messages = []*models.PendingMessage{}
				}
				return writeJSON(cmd.OutOrStdout(), messages)
			})
		},
	}
}

func newPromptsCmd(f *flags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "List the most recent user prompts across sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withStore(cmd.Context(), func(store db.Store) error {
				prompts, err := store.GetAllRecentUserPrompts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if prompts == nil {
					prompts = []*models.UserPromptWithSession{}
				}
				return writeJSON(cmd.OutOrStdout(), prompts)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", db.DefaultRecentLimit, "Maximum number of prompts")
	return cmd
}
