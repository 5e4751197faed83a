package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erazemk/gamelog/internal/config"
	"github.com/erazemk/gamelog/internal/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	closeLog func() error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "gamelog",
		Short:         "Track a video game backlog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (yaml, toml, json or env)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-file", "", "also write logs to this file, rotated")
	pf.StringP("server", "s", "http://localhost:8080", "game store URL (client commands)")
	pf.String("token-file", "", "where the login token is kept (client commands)")

	root.AddCommand(
		newServeCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newRemoveCmd(a),
		newUncoverCmd(a),
		newShowCmd(a),
	)
	return root
}

// load resolves the configuration for cmd and sets up logging. Subcommands
// call it first; console logs go to stderr when the subcommand writes its
// own output to stdout.
func (a *app) load(cmd *cobra.Command, keys map[string]string, logsToStderr bool) error {
	common := map[string]string{
		"log-level":  "log.level",
		"log-file":   "log.file",
		"server":     "server",
		"token-file": "token_file",
	}
	for k, v := range keys {
		common[k] = v
	}
	if err := config.BindFlags(a.v, cmd.Flags(), common); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	opts := logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	}
	if logsToStderr {
		opts.Stdout = cmd.ErrOrStderr()
	}
	closeLog, err := logging.Setup(opts)
	if err != nil {
		return err
	}
	a.closeLog = closeLog
	return nil
}
