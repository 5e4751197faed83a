package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/erazemk/gamelog/internal/backlog"
	"github.com/erazemk/gamelog/internal/client"
	"github.com/erazemk/gamelog/internal/config"
	"github.com/erazemk/gamelog/internal/model"
)

// newClient returns an API client using the saved token.
func (a *app) newClient() (*client.Client, error) {
	token, err := config.ReadToken(a.cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return client.New(a.cfg.Server, client.WithToken(token), client.WithUserAgent("gamelog-cli")), nil
}

// synchronizer loads the collection from the store.
func (a *app) synchronizer(ctx context.Context) (*backlog.Synchronizer, error) {
	c, err := a.newClient()
	if err != nil {
		return nil, err
	}
	s := backlog.New(c, slog.Default())
	if err := s.Load(ctx); err != nil {
		return nil, explain(err)
	}
	return s, nil
}

// clientCmd wraps run with config loading for commands that talk to the
// store. Logs go to stderr so stdout carries only the command's output.
func clientCmd(a *app, cmd *cobra.Command, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := a.load(cmd, nil, true); err != nil {
			return err
		}
		return run(cmd, args)
	}
	return cmd
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	if client.StatusCode(err) == http.StatusUnauthorized {
		return fmt.Errorf("%w (run 'gamelog login' first)", err)
	}
	return err
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the game store and save the token",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (read from stdin when omitted)")

	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		c := client.New(a.cfg.Server, client.WithUserAgent("gamelog-cli"))
		token, err := c.Login(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		if err := config.WriteToken(a.cfg.TokenFile, token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", username)
		return nil
	})
}

func newLogoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved token",
		Args:  cobra.NoArgs,
	}
	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		c, err := a.newClient()
		if err != nil {
			return err
		}
		if c.Token() != "" {
			if err := c.Logout(cmd.Context()); err != nil && client.StatusCode(err) != http.StatusUnauthorized {
				return err
			}
		}
		return config.WriteToken(a.cfg.TokenFile, "")
	})
}

func newListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the board",
		Args:    cobra.NoArgs,
	}
	cmd.Flags().StringVar(&status, "status", "", "show only this group")

	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		if status != "" && !model.ValidStatus(status) {
			return fmt.Errorf("unknown status %q (want one of %s)", status, strings.Join(model.Statuses, ", "))
		}
		s, err := a.synchronizer(cmd.Context())
		if err != nil {
			return err
		}
		if status != "" {
			printGroup(cmd.OutOrStdout(), status, s.Group(status))
			return nil
		}
		printBoard(cmd.OutOrStdout(), s.Groups())
		return nil
	})
}

// formFlags registers the add/edit form fields on fs.
func formFlags(fs *pflag.FlagSet, d *backlog.Draft, coverPath *string) {
	fs.StringVarP(&d.Name, "name", "n", "", "game name")
	fs.StringVarP(&d.Platform, "platform", "p", "", "platform, e.g. "+strings.Join(model.Platforms, ", "))
	fs.StringVar(&d.Status, "status", model.StatusBacklog, "one of "+strings.Join(model.Statuses, ", "))
	fs.StringVar(&d.Description, "description", "", "free-form notes")
	fs.StringVar(coverPath, "cover", "", "cover image file (JPEG, PNG or WebP)")
}

func readCover(path string) (*client.Cover, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cover: %w", err)
	}
	return &client.Cover{Filename: filepath.Base(path), Data: data}, nil
}

func newAddCmd(a *app) *cobra.Command {
	draft := backlog.NewDraft()
	var coverPath string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a game",
		Args:  cobra.NoArgs,
	}
	formFlags(cmd.Flags(), draft, &coverPath)

	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		cover, err := readCover(coverPath)
		if err != nil {
			return err
		}
		draft.Cover = cover

		s, err := a.synchronizer(cmd.Context())
		if err != nil {
			return err
		}
		g, err := s.Create(cmd.Context(), draft)
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added #%d %s.\n\n", g.ID, g.Name)
		printBoard(cmd.OutOrStdout(), s.Groups())
		return nil
	})
}

func newEditCmd(a *app) *cobra.Command {
	var form backlog.Draft
	var coverPath string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a game; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
	}
	formFlags(cmd.Flags(), &form, &coverPath)

	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := a.synchronizer(cmd.Context())
		if err != nil {
			return err
		}
		e, err := s.Edit(id)
		if err != nil {
			return fmt.Errorf("game #%d: %w", id, err)
		}

		f := cmd.Flags()
		if f.Changed("name") {
			e.Name = form.Name
		}
		if f.Changed("platform") {
			e.Platform = form.Platform
		}
		if f.Changed("status") {
			e.Status = form.Status
		}
		if f.Changed("description") {
			e.Description = form.Description
		}
		if e.Cover, err = readCover(coverPath); err != nil {
			return err
		}

		g, err := s.Update(cmd.Context(), e)
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated #%d %s.\n\n", g.ID, g.Name)
		printBoard(cmd.OutOrStdout(), s.Groups())
		return nil
	})
}

func newRemoveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a game",
		Args:    cobra.ExactArgs(1),
	}
	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := a.synchronizer(cmd.Context())
		if err != nil {
			return err
		}
		if err := s.Delete(cmd.Context(), id); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d.\n\n", id)
		printBoard(cmd.OutOrStdout(), s.Groups())
		return nil
	})
}

func newUncoverCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uncover <id>",
		Short: "Remove a game's cover image",
		Args:  cobra.ExactArgs(1),
	}
	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := a.synchronizer(cmd.Context())
		if err != nil {
			return err
		}
		g, err := s.RemoveCoverImage(cmd.Context(), id)
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed cover of #%d %s.\n", g.ID, g.Name)
		return nil
	})
}

func newShowCmd(a *app) *cobra.Command {
	var saveCover string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one game",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&saveCover, "save-cover", "", "write the cover image to this file")

	return clientCmd(a, cmd, func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		c, err := a.newClient()
		if err != nil {
			return err
		}
		g, err := c.GetGame(cmd.Context(), id)
		if err != nil {
			return explain(err)
		}
		printGame(cmd.OutOrStdout(), g)

		if saveCover == "" {
			return nil
		}
		if !g.HasCover() {
			return fmt.Errorf("game #%d has no cover", id)
		}
		data, _, err := c.GetCover(cmd.Context(), id)
		if err != nil {
			return explain(err)
		}
		if err := os.WriteFile(saveCover, data, 0o644); err != nil {
			return fmt.Errorf("saving cover: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cover saved to %s.\n", saveCover)
		return nil
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	return id, nil
}
