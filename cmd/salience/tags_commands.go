package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"salience/internal/config"
	"salience/internal/logging"
	"salience/internal/store"
	"salience/internal/tagging"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "AprilTag allocation and identification",
	}

	tagsCmd.AddCommand(newTagsAllocateCommand(ctx))
	tagsCmd.AddCommand(newTagsListCommand(ctx))
	tagsCmd.AddCommand(newTagsIdentifyCommand(ctx))

	return tagsCmd
}

func newTagsAllocateCommand(ctx *commandContext) *cobra.Command {
	var sampleID int64
	var reallocateAll bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Assign tag quadruples to samples",
		Long: `Assigns a quadruple of AprilTag markers to every sample that lacks one.
With --sample-id a single sample is allocated; --reallocate-all drops the
entire relation and rebuilds it. --dry-run prints the plan without writing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("sample-id") && reallocateAll {
				return fmt.Errorf("--sample-id and --reallocate-all are mutually exclusive")
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				svc := tagging.NewService(st, cfg.TagConfig(), logging.NewNop())
				out := cmd.OutOrStdout()

				switch {
				case cmd.Flags().Changed("sample-id"):
					allocation, err := svc.AllocateSample(cmd.Context(), sampleID, dryRun)
					if err != nil {
						return err
					}
					printAllocationPlan(out, []tagging.Allocation{*allocation}, dryRun)
				case reallocateAll:
					plan, err := svc.ReallocateAll(cmd.Context(), dryRun)
					if err != nil {
						return err
					}
					printAllocationPlan(out, plan.Allocations, plan.DryRun)
				default:
					plan, err := svc.AllocateMissing(cmd.Context(), dryRun)
					if err != nil {
						return err
					}
					if len(plan.Allocations) == 0 {
						fmt.Fprintln(out, "All samples already have tags")
						return nil
					}
					printAllocationPlan(out, plan.Allocations, plan.DryRun)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&sampleID, "sample-id", 0, "Allocate tags for a single sample")
	cmd.Flags().BoolVar(&reallocateAll, "reallocate-all", false, "Drop all allocations and rebuild from scratch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without writing")
	return cmd
}

func newTagsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted tag allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				svc := tagging.NewService(st, cfg.TagConfig(), logging.NewNop())
				allocations, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(allocations) == 0 {
					fmt.Fprintln(out, "No allocations")
					return nil
				}
				printAllocationPlan(out, allocations, false)
				return nil
			})
		},
	}
}

func newTagsIdentifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "identify <tag-id>...",
		Short: "Resolve detected tag IDs to a sample",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detected := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid tag id %q", arg)
				}
				detected = append(detected, id)
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				svc := tagging.NewService(st, cfg.TagConfig(), logging.NewNop())
				sample, ok, err := svc.Identify(cmd.Context(), detected)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintln(out, "No confident match; select the sample manually")
					return nil
				}
				fmt.Fprintf(out, "Sample %d: %s (card %d)\n", sample.ID, sample.DrugNameDisplay, sample.CardID)
				return nil
			})
		},
	}
}

func printAllocationPlan(out io.Writer, allocations []tagging.Allocation, dryRun bool) {
	rows := make([][]string, 0, len(allocations))
	for _, allocation := range allocations {
		tags := make([]string, len(allocation.Tags))
		for i, tag := range allocation.Tags {
			tags[i] = strconv.Itoa(tag)
		}
		rows = append(rows, []string{
			strconv.FormatInt(allocation.SampleID, 10),
			allocation.DrugName,
			strconv.FormatInt(allocation.CardID, 10),
			strings.Join(tags, ", "),
		})
	}
	rendered := renderTable(
		[]string{"Sample", "Drug", "Card", "Tags"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
	fmt.Fprintln(out, rendered)
	if dryRun {
		fmt.Fprintln(out, "Dry run: nothing was written")
	}
}
