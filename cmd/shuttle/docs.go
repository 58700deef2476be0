package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "gen-docs",
		Short:  "Generate documentation for shuttle",
		Hidden: true,
		RunE:   runGenDocs,
	}
	cmd.Flags().String("dir", "docs", "output directory")
	cmd.Flags().String("format", "man", "output format (man or markdown)")
	return cmd
}

func runGenDocs(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")       //nolint:errcheck // flag name is hardcoded
	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // flag name is hardcoded

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	root := cmd.Root()
	root.DisableAutoGenTag = true

	switch format {
	case "man":
		header := &doc.GenManHeader{
			Title:   "SHUTTLE",
			Section: "1",
			Source:  "shuttle " + version,
		}
		return doc.GenManTree(root, header, dir)
	case "markdown":
		return doc.GenMarkdownTree(root, dir)
	default:
		return fmt.Errorf("unknown format %q (use man or markdown)", format)
	}
}
