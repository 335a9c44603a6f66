package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/store"
	"github.com/raysh454/reconai/internal/tracker"
)

func newModulesCmd(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List registered modules and the scan types that select them",
		Args:  cobra.NoArgs,
		RunE: s.runE(func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			a, err := s.application()
			if err != nil {
				return err
			}
			entries := a.Orch.Registry().Entries()
			return render(cmd.OutOrStdout(), format, entries, func(w io.Writer) error {
				return writeModulesTable(w, entries)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func writeModulesTable(w io.Writer, entries []module.Entry) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "MODULE\tTARGETS\tFULL\tQUICK")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, joinTargets(e.TargetTypes), joinTargets(e.Default), joinTargets(e.Quick))
	}
	return tw.Flush()
}

func newHistoryCmd(s *session) *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scans from the history database",
		Args:  cobra.NoArgs,
		RunE: s.runE(func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			a, err := s.application()
			if err != nil {
				return err
			}
			if a.Comps.Store == nil {
				return errHistoryDisabled
			}
			scans, err := a.Comps.Store.ListRecentScans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, scans, func(w io.Writer) error {
				return writeHistoryTable(w, scans)
			})
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of scans to show")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func writeHistoryTable(w io.Writer, scans []*model.Scan) error {
	if len(scans) == 0 {
		fmt.Fprintln(w, "No scans recorded.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTARGET\tTYPE\tSTATUS\tMODULES\tRISK\tCREATED")
	for _, sc := range scans {
		risk := "-"
		if sc.Analysis != nil {
			risk = strconv.Itoa(sc.Analysis.RiskScore)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(sc.ID), sc.Target, sc.TargetType, colorStatus(string(sc.Status)),
			len(sc.RequestedModules), risk, sc.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func newStatsCmd(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the scan history",
		Args:  cobra.NoArgs,
		RunE: s.runE(func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			a, err := s.application()
			if err != nil {
				return err
			}
			if a.Comps.Store == nil {
				return errHistoryDisabled
			}
			stats, err := a.Comps.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, stats, func(w io.Writer) error {
				return writeStatsTable(w, stats)
			})
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func writeStatsTable(w io.Writer, st *store.Stats) error {
	fmt.Fprintf(w, "%s\n", colorBold("History"))
	fmt.Fprintf(w, "  scans:      %d (completed %d, failed %d)\n",
		st.TotalScans, st.ByStatus[string(model.ScanCompleted)], st.ByStatus[string(model.ScanFailed)])
	fmt.Fprintf(w, "  findings:   %d\n", st.TotalFindings)
	fmt.Fprintf(w, "  avg risk:   %.1f\n", st.AverageRiskScore)
	for _, sev := range []string{"critical", "high", "medium", "low", "info"} {
		if n := st.FindingsBySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "    %s: %d\n", colorSeverity(sev), n)
		}
	}
	if len(st.Modules) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", colorBold("Modules"))
	tw := newTable(w)
	fmt.Fprintln(tw, "MODULE\tSUCCESS\tFAILED\tTIMED OUT\tAVG MS")
	for _, m := range st.Modules {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0f\n", m.Module, m.Success, m.Failed, m.TimedOut, m.AvgDurationMs)
	}
	return tw.Flush()
}

func newDiffCmd(s *session) *cobra.Command {
	var (
		base   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "diff <scan-id>",
		Short: "Show what changed since an earlier scan of the same target",
		Args:  cobra.ExactArgs(1),
		RunE: s.runE(func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			a, err := s.application()
			if err != nil {
				return err
			}
			d, err := a.DiffScan(cmd.Context(), args[0], base)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, d, func(w io.Writer) error {
				return writeDiffTable(w, d)
			})
		}),
	}
	cmd.Flags().StringVar(&base, "base", "", "scan to compare against (default: previous scan of the target)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func writeDiffTable(w io.Writer, d *tracker.ScanDiff) error {
	fmt.Fprintf(w, "%s %s: %s -> %s\n", colorBold("Diff"), d.Target, shortID(d.BaseID), shortID(d.HeadID))
	tw := newTable(w)
	fmt.Fprintln(tw, "MODULE\tSTATUS\tADDED\tREMOVED")
	for _, m := range d.Modules {
		status := colorStatus(string(m.HeadStatus))
		if m.StatusChanged {
			status = colorStatus(string(m.BaseStatus)) + " -> " + status
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Module, status,
			colorGreen(fmt.Sprintf("+%d", m.Added)), colorRed(fmt.Sprintf("-%d", m.Removed)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, name := range d.OnlyInHead {
		fmt.Fprintf(w, "  %s %s\n", colorGreen("new module"), name)
	}
	for _, name := range d.OnlyInBase {
		fmt.Fprintf(w, "  %s %s\n", colorRed("dropped module"), name)
	}
	if d.Risk != nil {
		fmt.Fprintf(w, "  risk: %d -> %d (%+d)\n", d.Risk.Base, d.Risk.Head, d.Risk.Delta)
	}
	if d.Findings != nil {
		for _, t := range d.Findings.New {
			fmt.Fprintf(w, "  %s %s\n", colorRed("+"), t)
		}
		for _, t := range d.Findings.Resolved {
			fmt.Fprintf(w, "  %s %s\n", colorGreen("-"), t)
		}
	}
	return nil
}
