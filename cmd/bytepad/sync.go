package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bytepad-backend/internal/di"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/pkg/api"
)

func syncCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the dataset with the remote mirror",
	}

	var force bool
	for _, action := range []struct {
		use, short, command string
		forceable           bool
	}{
		{"status", "Show the sync configuration and last sync time", "sync_status", false},
		{"pull", "Replace local data with the remote copy", "sync_pull", true},
		{"push", "Replace the remote copy with local data", "sync_push", true},
		{"smart", "Pull or push, whichever side is newer", "sync_smart", false},
		{"create-remote", "Create a private remote mirror for this dataset", "sync_create_remote", false},
	} {
		sub := &cobra.Command{
			Use:   action.use,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var params map[string]any
				if action.forceable {
					params = map[string]any{"force": force}
				}
				return runCommand(cmd.Context(), flags, action.command, params, cmd.OutOrStdout())
			},
		}
		if action.forceable {
			sub.Flags().BoolVar(&force, "force", false, "skip the data-loss guard")
		}
		cmd.AddCommand(sub)
	}
	cmd.AddCommand(syncConfigureCmd(flags))
	return cmd
}

func syncConfigureCmd(flags *globalFlags) *cobra.Command {
	var (
		token    string
		gistID   string
		autoSync bool
		interval int
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set the sync token, remote id and auto-sync schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if cmd.Flags().Changed("token") {
				params["token"] = token
			}
			if cmd.Flags().Changed("gist-id") {
				params["gistId"] = gistID
			}
			if cmd.Flags().Changed("auto") {
				params["autoSync"] = autoSync
			}
			if cmd.Flags().Changed("interval") {
				params["intervalMinutes"] = interval
			}
			return runCommand(cmd.Context(), flags, "sync_configure", params, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "GitHub token with gist scope")
	cmd.Flags().StringVar(&gistID, "gist-id", "", "existing gist id")
	cmd.Flags().BoolVar(&autoSync, "auto", false, "enable periodic smart sync")
	cmd.Flags().IntVar(&interval, "interval", 0, "minutes between auto syncs")
	return cmd
}

func execCmd(flags *globalFlags) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "exec <command> [json-arguments]",
		Short: "Run a single command",
		Long: `Run a single command and print its JSON response.

Examples:
  bytepad exec --list
  bytepad exec create_task '{"title":"Ship it","priority":"P1"}'
  bytepad exec list_items '{"collection":"habits"}'`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return listCommands(cmd.Context(), flags, cmd.OutOrStdout())
			}
			var params map[string]any
			if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
				if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}
			return runCommand(cmd.Context(), flags, args[0], params, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the available commands")
	return cmd
}

func runCommand(ctx context.Context, flags *globalFlags, name string, params map[string]any, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	container, cleanup, err := flags.container(ctx, di.Options{}, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, execErr := container.Gateway.Execute(ctx, name, params)
	if execErr != nil {
		resp = api.CommandFailure(execErr)
	}
	if err := writeJSON(out, resp); err != nil {
		return err
	}
	if execErr != nil {
		return fmt.Errorf("%s failed: %s", name, apperrors.TypeOf(execErr))
	}
	return nil
}

func listCommands(ctx context.Context, flags *globalFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	container, cleanup, err := flags.container(ctx, di.Options{}, nil)
	if err != nil {
		return err
	}
	defer cleanup()
	return writeJSON(out, container.Registry.List())
}

func writeJSON(out io.Writer, v any) error {
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
