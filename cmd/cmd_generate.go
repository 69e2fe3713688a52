package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var (
	generateTypes  []string
	generateOutDir string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Fetch, summarize and write an OpGuide once",
	Example: `  opguide generate                               # Cover every fetched type
  opguide generate --types "App Service,Firewall"  # Cover the given types only
  opguide generate --out ./reports               # Write into ./reports`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringSliceVarP(&generateTypes, "types", "t", nil, "Resource types to cover (default all fetched types)")
	generateCmd.Flags().StringVarP(&generateOutDir, "out", "o", ".", "Directory to write the OpGuide into")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	service, err := newService(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}

	doc, summaries, err := service.Run(ctx, "cli", trimTypes(generateTypes))
	if err != nil {
		return fmt.Errorf("run OpGuide: %w", err)
	}

	if err = os.MkdirAll(generateOutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(generateOutDir, doc.FileName)
	if err = os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, resourceType := range slices.Sorted(maps.Keys(summaries)) {
		gs := summaries[resourceType]

		status := "ok"
		if gs.Failed() {
			status = "error: " + gs.Error
		}
		fmt.Fprintf(out, "%-32s %3d  %s\n", gs.ResourceType, gs.Count, status)
	}
	fmt.Fprintf(out, "\nOpGuide written to %s\n", path)

	return nil
}

func trimTypes(types []string) []string {
	var trimmed []string
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return trimmed
}
