package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "talkctl",
		Short:         "Administer the Food for Talk chat engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file (default $CONFIG_PATH or ./config/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		buildMigrateCmd(opts),
		buildParticipantCmd(opts),
		buildAgentCmd(opts),
		buildPasskeyCmd(opts),
		buildTokenCmd(opts),
		buildHistoryCmd(opts),
	)
	return cmd
}

func buildMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}
}

func buildParticipantCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Manage participants",
	}

	var displayName string
	create := &cobra.Command{
		Use:   "create [id]",
		Short: "Register a participant and print its check-in passkey",
		Long: `Register an active participant. Without an id one is generated.

The plaintext passkey is printed once; only its hash is stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runParticipantCreate(cmd, opts, id, displayName)
		},
	}
	create.Flags().StringVarP(&displayName, "name", "n", "", "Display name")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show a participant",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runParticipantGet(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "activate <id>",
			Short: "Allow a participant to connect",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runParticipantSetActive(cmd, opts, args[0], true)
			},
		},
		&cobra.Command{
			Use:   "deactivate <id>",
			Short: "Refuse further connections from a participant",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runParticipantSetActive(cmd, opts, args[0], false)
			},
		},
	)
	return cmd
}

func buildAgentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Assign or unassign a participant's agent",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "assign <participant-id> <agent-id>",
			Short: "Assign an agent",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAgentAssign(cmd, opts, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "unassign <participant-id>",
			Short: "Remove the assigned agent",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAgentUnassign(cmd, opts, args[0])
			},
		},
	)
	return cmd
}

func buildPasskeyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passkey",
		Short: "Manage check-in passkeys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate <participant-id>",
		Short: "Replace a participant's passkey and print the new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasskeyRegenerate(cmd, opts, args[0])
		},
	})
	return cmd
}

func buildTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue access tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "issue <participant-id>",
		Short: "Print an access token for an active participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(cmd, opts, args[0])
		},
	})
	return cmd
}

func buildHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage chat history",
	}
	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Irreversibly delete the public room history",
		Long:  "Delete every public message. Private conversations are not touched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(cmd, opts, yes)
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	cmd.AddCommand(clearCmd)
	return cmd
}
