package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"rehla/internal/auth"
	sessionstore "rehla/internal/auth/store/session"
	"rehla/internal/cms"
	"rehla/internal/platform/config"
	"rehla/internal/platform/logger"
	"rehla/internal/serial"
	treeservice "rehla/internal/tree/service"
)

// app carries flag values and what PersistentPreRunE builds from them.
type app struct {
	configPath  string
	cmsURL      string
	sessionFile string
	verbose     bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "treescan",
		Short:         "Scan Rehla tree tags and register planted trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.cmsURL, "cms-url", "", "CMS base URL (overrides config)")
	flags.StringVar(&a.sessionFile, "session-file", "", "where the login session is kept")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		a.resolveCmd(),
		a.devicesCmd(),
		a.scanCmd(),
		a.encodeCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.profileCmd(),
		a.submitCmd(),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.cmsURL != "" {
		cfg.CMS.BaseURL = a.cmsURL
	}
	if a.sessionFile != "" {
		cfg.Scan.SessionFile = a.sessionFile
	}
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.cfg = cfg
	a.logger = logger.NewWithWriter(stderr, level, "text")
	return nil
}

// extractor warns on stderr when a tag points at an unexpected host.
func (a *app) extractor(stderr io.Writer) *serial.Extractor {
	return serial.NewExtractor(a.cfg.Resolver.ExpectedDomain, a.logger,
		serial.WithObserver(serial.ObserverFunc(func(_ context.Context, adv serial.Advisory) {
			_, _ = io.WriteString(stderr, "warning: tag points at "+adv.Host+", expected "+adv.ExpectedDomain+"\n")
		})),
	)
}

func (a *app) cmsClient() (*cms.Client, error) {
	return cms.NewClient(a.cfg.CMS.BaseURL, a.cfg.CMS.Timeout)
}

func (a *app) sessions() (*sessionstore.File, error) {
	path := a.cfg.Scan.SessionFile
	if path == "" {
		var err error
		if path, err = sessionstore.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return sessionstore.NewFile(path), nil
}

func (a *app) manager() (*auth.Manager, error) {
	client, err := a.cmsClient()
	if err != nil {
		return nil, err
	}
	store, err := a.sessions()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(client, store, a.logger), nil
}

func (a *app) treeService(stderr io.Writer) (*treeservice.Service, error) {
	client, err := a.cmsClient()
	if err != nil {
		return nil, err
	}
	return treeservice.New(client, a.extractor(stderr), a.logger), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
