package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/reconai/internal/model"
)

func newScanCmd(s *session) *cobra.Command {
	var (
		targetType string
		scanType   string
		modules    []string
		params     []string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "scan <target>",
		Short: "Run a scan against a domain or a person and print the result",
		Example: "  reconai scan example.com\n" +
			"  reconai scan example.com --scan-type quick -o json\n" +
			"  reconai scan \"Jane Doe\" -t person -p state=CA -p dob=1990-04-01",
		Args: cobra.ExactArgs(1),
		RunE: s.runE(func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			a, err := s.application()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			scan, err := a.Orch.Scan(ctx, model.ScanRequest{
				Target:     args[0],
				TargetType: targetType,
				ScanType:   scanType,
				Modules:    modules,
				Params:     p,
			})
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), format, scan, func(w io.Writer) error {
				return writeScanTable(w, scan)
			}); err != nil {
				return err
			}
			if scan.Status == model.ScanFailed {
				return fmt.Errorf("scan %s failed: %s", scan.ID, scan.Error)
			}
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&targetType, "target-type", "t", "domain", "target type (domain|person)")
	f.StringVarP(&scanType, "scan-type", "s", "full", "scan type (full|quick|custom)")
	f.StringSliceVarP(&modules, "modules", "m", nil, "modules to run, overriding the scan type")
	f.StringArrayVarP(&params, "param", "p", nil, "module parameter as key=value (repeatable)")
	f.StringVarP(&output, "output", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func parseParams(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

func writeScanTable(w io.Writer, scan *model.Scan) error {
	fmt.Fprintf(w, "%s %s\n", colorBold("Scan"), scan.ID)
	fmt.Fprintf(w, "  target:  %s (%s, %s)\n", scan.Target, scan.TargetType, scan.ScanType)
	fmt.Fprintf(w, "  status:  %s\n", colorStatus(string(scan.Status)))
	if scan.StartedAt != nil && scan.CompletedAt != nil {
		fmt.Fprintf(w, "  elapsed: %s\n", scan.CompletedAt.Sub(*scan.StartedAt).Round(time.Millisecond))
	}
	if scan.DeadlineExceeded {
		fmt.Fprintf(w, "  %s\n", colorYellow("scan deadline exceeded"))
	}
	if scan.Error != "" {
		fmt.Fprintf(w, "  error:   %s\n", colorRed(scan.Error))
	}

	if scan.Result != nil && scan.Result.Modules.Len() > 0 {
		fmt.Fprintf(w, "\n%s\n", colorBold("Modules"))
		tw := newTable(w)
		fmt.Fprintln(tw, "MODULE\tSTATUS\tDURATION\tERROR")
		for _, o := range scan.Result.Modules.Outcomes() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				o.Module, colorStatus(string(o.Status)), o.Duration.Round(time.Millisecond), orDash(o.Error))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	switch {
	case scan.Analysis != nil:
		an := scan.Analysis
		fmt.Fprintf(w, "\n%s (%s)\n", colorBold("Analysis"), an.Backend)
		fmt.Fprintf(w, "  risk score: %d/100\n", an.RiskScore)
		if an.Summary != "" {
			fmt.Fprintf(w, "  summary:    %s\n", an.Summary)
		}
		if len(an.Vulnerabilities) > 0 {
			tw := newTable(w)
			fmt.Fprintln(tw, "\nSEVERITY\tMODULE\tFINDING")
			for _, v := range an.Vulnerabilities {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", colorSeverity(v.Severity), orDash(v.Module), v.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
		for _, r := range an.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	case scan.AnalysisError != "":
		fmt.Fprintf(w, "\n%s %s\n", colorBold("Analysis unavailable:"), scan.AnalysisError)
	}
	return nil
}
