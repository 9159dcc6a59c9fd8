package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/searchktools/webpp/core/client"
	"github.com/searchktools/webpp/core/http"
)

type cmdRequest struct {
	root    *rootCommand
	method  string
	data    string
	headers []string
	include bool
}

func getRequestCmd(root *rootCommand, name string) *cobra.Command {
	c := &cmdRequest{root: root, method: strings.ToUpper(name)}
	cmd := &cobra.Command{
		Use:   name + " [path]",
		Short: "Send a " + c.method + " request and print the response body",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.run,
	}
	flags := cmd.Flags()
	root.cfg.Client.BindFlags(flags)
	flags.StringArrayVarP(&c.headers, "header", "H", nil, "extra header as 'Name: value', repeatable")
	flags.BoolVarP(&c.include, "include", "i", false, "print the status line and headers too")
	if c.method == "POST" {
		flags.StringVarP(&c.data, "data", "d", "", "request body, '@file' to read a file or '@-' for stdin")
	}
	return cmd
}

func (c *cmdRequest) run(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 1 {
		path = args[0]
	}

	var header http.Header
	for _, h := range c.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return errors.Errorf("invalid header %q", h)
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	body, err := c.body(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg := c.root.cfg.Client
	opts, err := cfg.ClientOptions(c.root.logger)
	if err != nil {
		return err
	}
	cl, err := client.New(cfg.Target, opts)
	if err != nil {
		return err
	}
	defer cl.Close()

	res, err := cl.Request(cmd.Context(), c.method, path, body, &header)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.include {
		fmt.Fprintf(out, "HTTP/%s %s\r\n", res.Version, res.Status)
		_, _ = res.Header.WriteTo(out)
		fmt.Fprint(out, "\r\n")
	}
	_, err = io.Copy(out, res.Content)
	return err
}

func (c *cmdRequest) body(stdin io.Reader) ([]byte, error) {
	switch {
	case c.data == "":
		return nil, nil
	case c.data == "@-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(c.data, "@"):
		return os.ReadFile(c.data[1:])
	default:
		return []byte(c.data), nil
	}
}
