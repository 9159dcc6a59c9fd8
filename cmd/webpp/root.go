package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/searchktools/webpp/config"
)

// rootCommand keeps what every subcommand shares
type rootCommand struct {
	cfg    config.Config
	logger *logrus.Logger
	out    io.Writer
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &rootCommand{logger: logrus.New(), out: out}
	root.logger.SetOutput(io.Discard)

	// environment first so that flags override it
	cfg, envErr := config.Load()
	root.cfg = cfg

	cmd := &cobra.Command{
		Use:          "webpp",
		Short:        "HTTP/1.x server and client over plain TCP or TLS",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return envErr
			}
			root.logger.SetOutput(cmd.ErrOrStderr())
			if err := root.cfg.Validate(); err != nil {
				return err
			}
			return root.cfg.Logging.Apply(root.logger)
		},
	}
	cmd.SetOut(out)
	root.cfg.Logging.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		getServeCmd(root),
		getRequestCmd(root, "get"),
		getRequestCmd(root, "post"),
	)
	return cmd
}
