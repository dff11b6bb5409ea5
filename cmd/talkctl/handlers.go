package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/foodfortalk/talk-service/config"
	"github.com/foodfortalk/talk-service/internal/app"

	"github.com/spf13/cobra"
)

var errNotConfirmed = errors.New("refusing to clear history without --yes")

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Logging.Debug = cfg.Logging.Debug || opts.debug
	cfg.Logging.Service = "talkctl"
	return cfg, nil
}

// withApp wires the application, runs fn and releases everything.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(a *app.App) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	app.InitLogger(cfg.Logging)

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runMigrate(cmd *cobra.Command, opts *rootOptions) error {
	// app.New applies pending migrations.
	return withApp(cmd, opts, func(*app.App) error {
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	})
}

func runParticipantCreate(cmd *cobra.Command, opts *rootOptions, id, name string) error {
	return withApp(cmd, opts, func(a *app.App) error {
		res, err := a.Admin.CreateParticipant(cmd.Context(), id, name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "id:      %s\n", res.Participant.ID)
		fmt.Fprintf(out, "name:    %s\n", res.Participant.DisplayName)
		fmt.Fprintf(out, "passkey: %s\n", res.Passkey)
		return nil
	})
}

func runParticipantGet(cmd *cobra.Command, opts *rootOptions, id string) error {
	return withApp(cmd, opts, func(a *app.App) error {
		p, err := a.Admin.GetParticipant(cmd.Context(), id)
		if err != nil {
			return err
		}
		agent := "-"
		if p.AssignedAgentID != nil {
			agent = *p.AssignedAgentID
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "id\t%s\n", p.ID)
		fmt.Fprintf(tw, "name\t%s\n", p.DisplayName)
		fmt.Fprintf(tw, "active\t%t\n", p.Active)
		fmt.Fprintf(tw, "agent\t%s\n", agent)
		fmt.Fprintf(tw, "created\t%s\n", p.CreatedAt.Format(time.RFC3339))
		return tw.Flush()
	})
}

func runParticipantSetActive(cmd *cobra.Command, opts *rootOptions, id string, active bool) error {
	return withApp(cmd, opts, func(a *app.App) error {
		if err := a.Admin.SetActive(cmd.Context(), id, active); err != nil {
			return err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, state)
		return nil
	})
}

func runAgentAssign(cmd *cobra.Command, opts *rootOptions, id, agentID string) error {
	return withApp(cmd, opts, func(a *app.App) error {
		if err := a.Admin.AssignAgent(cmd.Context(), id, agentID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "agent %s assigned to %s\n", agentID, id)
		return nil
	})
}

func runAgentUnassign(cmd *cobra.Command, opts *rootOptions, id string) error {
	return withApp(cmd, opts, func(a *app.App) error {
		if err := a.Admin.UnassignAgent(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "agent unassigned from %s\n", id)
		return nil
	})
}

func runPasskeyRegenerate(cmd *cobra.Command, opts *rootOptions, id string) error {
	return withApp(cmd, opts, func(a *app.App) error {
		plain, err := a.Admin.RegeneratePasskey(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "passkey: %s\n", plain)
		return nil
	})
}

func runTokenIssue(cmd *cobra.Command, opts *rootOptions, id string) error {
	return withApp(cmd, opts, func(a *app.App) error {
		tok, exp, err := a.Admin.IssueToken(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
		return nil
	})
}

func runHistoryClear(cmd *cobra.Command, opts *rootOptions, yes bool) error {
	if !yes {
		return errNotConfirmed
	}
	return withApp(cmd, opts, func(a *app.App) error {
		n, err := a.Admin.ClearPublicHistory(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d public messages\n", n)
		return nil
	})
}
