package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wudi/pdfstamp/observability"
)

type globals struct {
	output   string
	logLevel string
	logger   observability.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{logger: observability.NopLogger{}}
	root := &cobra.Command{
		Use:           "pdfstamp",
		Short:         "Stamp text, images, markup and ads onto PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if g.logLevel == "" {
				return nil
			}
			l, err := observability.NewLogrusFromConfig(g.logLevel, "text")
			if err != nil {
				return err
			}
			g.logger = l
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.output, "output", "o", "", "output file (default stdout)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log to stderr at this level")

	root.AddCommand(
		newStampCmd(g),
		newAdsCmd(g),
		newCoverCmd(g),
		newPagesCmd(),
		newValidateCmd(),
	)
	return root
}

var errTerminal = errors.New("refusing to write PDF data to a terminal; use -o")

// write sends data to -o or to stdout. Binary output never goes to a terminal.
func (g *globals) write(cmd *cobra.Command, data []byte) error {
	if g.output != "" && g.output != "-" {
		return os.WriteFile(g.output, data, 0o644)
	}
	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return errTerminal
	}
	_, err := out.Write(data)
	return err
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// transform reads args[0], applies fn and writes the result.
func (g *globals) transform(cmd *cobra.Command, args []string, fn func(ctx context.Context, doc []byte) ([]byte, error)) error {
	doc, err := readInput(args[0])
	if err != nil {
		return err
	}
	out, err := fn(cmd.Context(), doc)
	if err != nil {
		return err
	}
	return g.write(cmd, out)
}
