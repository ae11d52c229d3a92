package main

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/islands"
	"github.com/vango-dev/islands/internal/errors"
)

func hydrateCmd() *cobra.Command {
	var (
		pageURL string
		prefix  string
		output  string
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "hydrate <file>",
		Short: "Hydrate a page and print the result",
		Long: `Hydrate a server-rendered page once and print the markup its
directives produce. Use "-" to read the page from stdin.

Warnings are printed to stderr. With --strict any warning fails the
command, which makes it usable as a check in CI.

Examples:
  islands hydrate pages/index.html
  islands hydrate --url https://example.com/shop - < shop.html
  islands hydrate --strict -o out.html pages/cart.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(prefix)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var warnings []*errors.Error
			opts := append(islands.FromConfig(cfg),
				islands.WithWarningHandler(func(e *errors.Error) { warnings = append(warnings, e) }),
			)
			if pageURL != "" {
				u, err := url.Parse(pageURL)
				if err != nil {
					return fmt.Errorf("invalid --url: %w", err)
				}
				opts = append(opts, islands.WithURL(u))
			}

			rt, err := islands.Parse(in, opts...)
			if err != nil {
				return err
			}
			n := rt.Hydrate(cmd.Context())

			if err := writeOutput(cmd, output, rt.Render()); err != nil {
				return err
			}
			for _, w := range warnings {
				if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
					fmt.Fprint(cmd.ErrOrStderr(), w.Format())
					continue
				}
				fmt.Fprintln(cmd.ErrOrStderr(), w.FormatCompact())
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d warnings", len(warnings))
			}
			success("Hydrated %d islands, %d elements", n, rt.Engine().Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "URL of the page")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Directive attribute prefix (default from islands.json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when hydration raises warnings")

	return cmd
}

func writeOutput(cmd *cobra.Command, path, markup string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), markup+"\n")
		return err
	}
	return os.WriteFile(path, []byte(markup+"\n"), 0o644)
}
