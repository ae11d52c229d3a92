package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/islands"
	"github.com/vango-dev/islands/pkg/router"
)

func navigateCmd() *cobra.Command {
	var (
		prefix  string
		output  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "navigate <base-url> <path>...",
		Short: "Load a page and follow client navigations",
		Long: `Load the page at base-url, hydrate it and navigate through each
path in turn, patching router regions the way the browser runtime does.
Pages are fetched over HTTP, or from S3 when islands.json names a bucket.

The final document is printed to stdout.

Examples:
  islands navigate http://localhost:3000/ /blog /blog/first-post
  islands navigate -o final.html https://example.com/ /about`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(prefix)
			if err != nil {
				return err
			}
			base, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid base URL: %w", err)
			}

			opts := islands.FromConfig(cfg)
			var o islands.Options
			for _, opt := range opts {
				opt(&o)
			}
			fetcher := o.Fetcher
			if fetcher == nil {
				fetcher = &router.HTTPFetcher{}
				opts = append(opts, islands.WithFetcher(fetcher))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			body, err := fetcher.Fetch(ctx, base)
			if err != nil {
				return err
			}
			var fullLoad *url.URL
			opts = append(opts,
				islands.WithURL(base),
				islands.WithFullLoad(func(u *url.URL) { fullLoad = u }),
			)
			rt, err := islands.ParseString(string(body), opts...)
			if err != nil {
				return err
			}
			rt.Hydrate(ctx)

			for _, href := range args[1:] {
				req, err := rt.Navigate(ctx, href)
				if err != nil {
					return fmt.Errorf("navigate %s: %w", href, err)
				}
				if err := rt.Wait(ctx); err != nil {
					return err
				}
				if req.Status != router.StatusCommitted {
					errorMsg("%s: %s", req.URL, req.Status)
					if fullLoad != nil {
						return fmt.Errorf("navigation to %s needs a full page load: %w", fullLoad, req.Err)
					}
					continue
				}
				success("%s: patched %v", req.URL, req.Regions)
			}
			return writeOutput(cmd, output, rt.Render())
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Directive attribute prefix (default from islands.json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the final document to a file instead of stdout")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")

	return cmd
}
