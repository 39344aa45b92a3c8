package main

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/docscrawl/internal/config"
)

//go:embed templates/docscrawl.yaml
var configTemplate embed.FS

type initOptions struct {
	output string
	xdg    bool
	force  bool
	sites  []string
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented configuration file",
		Long: `Init writes a configuration file documenting every option.

Without flags the file is written as .docscrawl in the current directory.
With --xdg it goes to the per-user location that every docscrawl run
falls back to. Each --site adds an entry for that host under "sites",
ready for cookies, headers and deny patterns.

Examples:
  docscrawl init
  docscrawl init --xdg
  docscrawl init --site https://docs.example.com --site partner.example.com
  docscrawl init -o team/docscrawl.yaml -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", config.DefaultConfigFile, "Path of the file to write")
	cmd.Flags().BoolVar(&opts.xdg, "xdg", false, "Write to the per-user config directory instead of --output")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringSliceVar(&opts.sites, "site", nil, "Add a site entry for this URL or host (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("output", "xdg")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	path := opts.output
	if opts.xdg {
		path = config.XDGConfigFile()
	}

	content, err := renderConfig(opts.sites)
	if err != nil {
		return err
	}

	if !opts.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	// Site sections may hold session cookies.
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	// The written file must be accepted by the loader a crawl will use.
	if _, err := config.LoadConfigFile(path); err != nil {
		return fmt.Errorf("generated configuration does not load: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", path)
	for _, s := range opts.sites {
		fmt.Fprintf(out, "  site %s\n", config.SiteKey(s))
	}
	if config.FindConfigFile("") != absPath(path) {
		fmt.Fprintf(out, "\nThis file is not on the search path; pass --config %s to use it.\n", path)
	}
	return nil
}

// renderConfig returns the template with a site entry appended for every
// host in sites. "sites:" is the template's last key, so the entries land
// under it.
func renderConfig(sites []string) ([]byte, error) {
	tmpl, err := configTemplate.ReadFile("templates/docscrawl.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config template: %w", err)
	}
	if len(sites) == 0 {
		return tmpl, nil
	}

	buf := bytes.NewBuffer(tmpl)
	seen := make(map[string]bool, len(sites))
	for _, s := range sites {
		host := config.SiteKey(s)
		if host == "" {
			return nil, fmt.Errorf("invalid --site %q", s)
		}
		if seen[host] {
			return nil, fmt.Errorf("--site %s given twice", host)
		}
		seen[host] = true
		fmt.Fprintf(buf, "\n  %s:\n    depth: %d\n    maxPages: %d\n", host, config.DefaultMaxDepth, config.DefaultMaxPages)
	}
	return buf.Bytes(), nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
