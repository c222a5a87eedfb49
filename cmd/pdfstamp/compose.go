package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/compose"
)

func newAdsCmd(g *globals) *cobra.Command {
	var (
		url, file, filter, baseURL string
		timeout                    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ads <input.pdf>",
		Short: "Stamp header ads and prepend the full-page ad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := compose.ParseFilter(filter)
			if err != nil {
				return err
			}
			var src compose.AdSource
			switch {
			case file != "":
				src, err = loadAds(file)
				if err != nil {
					return err
				}
			case url != "":
				fetcher := adsource.NewFetcher(adsource.WithTimeout(timeout), adsource.WithLogger(g.logger))
				src = adsource.Feed{Source: fetcher, URL: url}
			default:
				return fmt.Errorf("one of --url or --file is required")
			}
			p := compose.NewPipeline(compose.WithLogger(g.logger), compose.WithAdBaseURL(baseURL))
			return g.transform(cmd, args, func(ctx context.Context, doc []byte) ([]byte, error) {
				return p.Compose(ctx, doc, src, f)
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "ad system URL")
	cmd.Flags().StringVar(&file, "file", "", "read the ad response from a local JSON file")
	cmd.Flags().StringVar(&filter, "filter", string(compose.FilterAll), `all, header or "pdf ad one"`)
	cmd.Flags().StringVar(&baseURL, "base-url", compose.DefaultAdBaseURL, "base for root-relative ad links")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "ad fetch timeout")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	return cmd
}

func loadAds(path string) (adsource.Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ads: %w", err)
	}
	var resp adsource.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode ads: %w", err)
	}
	return adsource.Static(resp.Locations()), nil
}

func newCoverCmd(g *globals) *cobra.Command {
	var c compose.CoverPage
	cmd := &cobra.Command{
		Use:   "cover <input.pdf>",
		Short: "Prepend a metadata cover page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := compose.NewPipeline(compose.WithLogger(g.logger))
			return g.transform(cmd, args, func(ctx context.Context, doc []byte) ([]byte, error) {
				return p.CoverPage(ctx, doc, c)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.LogoURL, "logo-url", "", "logo image URL")
	f.StringVar(&c.LogoText, "logo-text", "", "text shown when there is no logo")
	f.StringVar(&c.Title, "title", "", "article title")
	f.StringVar(&c.Authors, "authors", "", "author list")
	f.StringVar(&c.Citation, "citation", "", "citation line")
	f.StringVar(&c.DOI, "doi", "", "DOI or DOI URL")
	f.StringVar(&c.AdditionalLink, "link", "", "additional link")
	f.BoolVar(&c.IncludeDate, "date", false, "include the generation date")
	return cmd
}
