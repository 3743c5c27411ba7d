package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"salience/internal/config"
	"salience/internal/manifest"
	"salience/internal/store"
)

func newSamplesCommand(ctx *commandContext) *cobra.Command {
	samplesCmd := &cobra.Command{
		Use:   "samples",
		Short: "Sample card management",
	}

	samplesCmd.AddCommand(newSamplesImportCommand(ctx))
	samplesCmd.AddCommand(newSamplesListCommand(ctx))

	return samplesCmd
}

func newSamplesImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.json>",
		Short: "Import sample cards from a manifest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				result, err := manifest.ImportFile(cmd.Context(), st, args[0], nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d samples (%d already present)\n",
					result.Imported, result.Skipped)
				return nil
			})
		},
	}
}

func newSamplesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				samples, err := st.ListSamples(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(samples) == 0 {
					fmt.Fprintln(out, "No samples; run 'salience samples import' first")
					return nil
				}

				allocations, err := st.Allocations(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(samples))
				for _, sample := range samples {
					tagged := "no"
					if _, ok := allocations[sample.ID]; ok {
						tagged = "yes"
					}
					rows = append(rows, []string{
						strconv.FormatInt(sample.ID, 10),
						sample.DrugNameDisplay,
						strconv.FormatInt(sample.CardID, 10),
						sample.Filename,
						tagged,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Drug", "Card", "Filename", "Tagged"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
