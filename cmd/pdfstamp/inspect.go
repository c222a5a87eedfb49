package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfstamp/compliance"
	"github.com/wudi/pdfstamp/document"
	"github.com/wudi/pdfstamp/stamp"
)

func newPagesCmd() *cobra.Command {
	var expr string
	cmd := &cobra.Command{
		Use:   "pages <input.pdf>",
		Short: "Print the 1-based pages a selector picks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			doc, err := document.Open(cmd.Context(), data)
			if err != nil {
				return err
			}
			n := doc.PageCount()
			doc.Close()
			pages, err := stamp.ResolvePages(expr, n)
			if err != nil {
				return err
			}
			nums := make([]string, len(pages))
			for i, p := range pages {
				nums[i] = strconv.Itoa(p + 1)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", strings.Join(nums, ","))
			return err
		},
	}
	cmd.Flags().StringVar(&expr, "pages", stamp.PagesAll, "page selector")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <input.pdf>",
		Short: "Validate a PDF with pdfcpu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			v := &compliance.Validator{Strict: strict}
			report, err := v.Inspect(cmd.Context(), data)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "valid (%s): PDF %s, %d pages\n", report.Mode, report.Version, report.Pages)
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "use strict validation")
	return cmd
}
