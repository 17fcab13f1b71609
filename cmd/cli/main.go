package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lraide/adapters/importer"
	"lraide/internal"
	"lraide/internal/config"
	"lraide/internal/container"
	"lraide/internal/report"
	"lraide/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lraide-cli",
		Short:         "Fit, report and snapshot linear regressions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newFitCmd(),
		newReportCmd(),
		newExportCmd(),
		newInspectCmd(),
		newSnapshotsCmd(),
	)
	return rootCmd
}

// fitOptions select the fields and rows of a one-shot fit.
type fitOptions struct {
	xField  string
	yField  string
	exclude []int
}

func (o *fitOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.xField, "x", "x", "", "Independent field (default: first column)")
	cmd.Flags().StringVarP(&o.yField, "y", "y", "", "Dependent field (default: second column)")
	cmd.Flags().IntSliceVar(&o.exclude, "exclude", nil, "Row indices to leave out of the fit")
}

// newContainer loads configuration and builds a container for CLI use.
func newContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(cfg)
}

// openFitted imports path into a fresh session, applies opts and plots it.
func openFitted(ctx context.Context, reg *session.Registry, logger *internal.Logger, path string, opts fitOptions) (*session.Session, error) {
	data, err := importer.ReadFile(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	s := reg.Create(path, data)

	v := s.View()
	x, y := v.IndependentField, v.DependentField
	if opts.xField != "" {
		x = opts.xField
	}
	if opts.yField != "" {
		y = opts.yField
	}
	if err := s.SetFields(x, y); err != nil {
		return nil, err
	}
	for _, i := range opts.exclude {
		if err := s.ToggleRow(i, false); err != nil {
			return nil, err
		}
	}
	if err := s.Plot(); err != nil {
		return nil, err
	}
	if state, code := s.FitState(); code != "" {
		return nil, fmt.Errorf("fit %s: %s", state, s.View().Error)
	}
	return s, nil
}

func newFitCmd() *cobra.Command {
	var opts fitOptions

	cmd := &cobra.Command{
		Use:   "fit [data-file]",
		Short: "Fit y on x by ordinary least squares and print the coefficients",
		Long: `Load a CSV, TSV or XLSX file and fit the dependent field on the independent one.

Example: lraide-cli fit heights.csv -x height -y weight --exclude 3,7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runFit(ctx context.Context, out io.Writer, path string, opts fitOptions) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	s, err := openFitted(ctx, c.InitEngine(), c.Logger, path, opts)
	if err != nil {
		return err
	}
	v := s.View()
	f := v.Fit

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Model:\t%s ~ %s\n", v.DependentField, v.IndependentField)
	fmt.Fprintf(tw, "Equation:\t%s\n", f.Equation())
	fmt.Fprintf(tw, "Slope:\t%.6f\t(se %.6f, p %.4g)\n", f.Slope, f.StandardErrorSlope, f.PValueSlope)
	fmt.Fprintf(tw, "Intercept:\t%.6f\t(se %.6f, p %.4g)\n", f.Intercept, f.StandardErrorIntercept, f.PValueIntercept)
	fmt.Fprintf(tw, "R²:\t%.6f\t(%s)\n", f.RSquared, report.Strength(f.RSquared))
	fmt.Fprintf(tw, "Std. error:\t%.6f\n", f.StandardError)
	fmt.Fprintf(tw, "Rows:\t%d fitted of %d (%d included)\n", f.N, v.RowCount, len(v.Inclusion))
	return tw.Flush()
}

func newReportCmd() *cobra.Command {
	var opts fitOptions
	var format, outFile string

	cmd := &cobra.Command{
		Use:   "report [data-file]",
		Short: "Render the analysis report as markdown, html or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), args[0], opts, format, outFile)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown, html or text")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write to file instead of stdout")
	return cmd
}

func runReport(ctx context.Context, out io.Writer, path string, opts fitOptions, format, outFile string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	s, err := openFitted(ctx, c.InitEngine(), c.Logger, path, opts)
	if err != nil {
		return err
	}
	rep, err := report.FromView(s.View())
	if err != nil {
		return err
	}

	var body []byte
	switch format {
	case "markdown", "md":
		body = []byte(rep.Markdown())
	case "html":
		body = rep.HTML()
	case "text", "txt":
		body = []byte(rep.Text())
	default:
		return fmt.Errorf("unknown format %q (use markdown, html or text)", format)
	}
	return writeOutput(out, outFile, body)
}

func newExportCmd() *cobra.Command {
	var opts fitOptions
	var outFile, saveKey string

	cmd := &cobra.Command{
		Use:   "export [data-file]",
		Short: "Fit a file and write the session snapshot as JSON",
		Long: `Fit a file and write the resulting session snapshot.

With --save the snapshot is also stored in the configured snapshot storage
(SNAPSHOT_DIR, or SNAPSHOT_DB_DRIVER/SNAPSHOT_DB_URL).

Example: lraide-cli export heights.csv --exclude 3 -o heights.json --save baseline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), args[0], opts, outFile, saveKey)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&saveKey, "save", "", "Also store the snapshot under this key")
	return cmd
}

func runExport(ctx context.Context, out io.Writer, path string, opts fitOptions, outFile, saveKey string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	s, err := openFitted(ctx, c.InitEngine(), c.Logger, path, opts)
	if err != nil {
		return err
	}
	snap := s.Export()
	rec, err := session.NewRecord(saveKey, snap)
	if err != nil {
		return err
	}
	if saveKey != "" {
		repo, err := c.InitStorage(ctx)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, rec); err != nil {
			return err
		}
		c.Logger.Info("stored snapshot %s (%s)", rec.Key, rec.Fingerprint.Short())
	}
	return writeOutput(out, outFile, append(rec.Payload, '\n'))
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [snapshot-file]",
		Short: "Validate a snapshot file and print its restored state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), payload)
		},
	}
}

func runInspect(out io.Writer, payload []byte) error {
	snap, err := session.DecodeSnapshot(payload)
	if err != nil {
		return err
	}
	c, err := newContainer()
	if err != nil {
		return err
	}
	s, err := c.InitEngine().Import(snap)
	if err != nil {
		return err
	}
	v := s.View()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Session:\t%s (%s)\n", v.Name, snap.ID)
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", session.Fingerprint(snap))
	fmt.Fprintf(tw, "Rows:\t%d (%d included, %d highlighted)\n", v.RowCount, len(v.Inclusion), len(v.Highlight))
	fmt.Fprintf(tw, "Fields:\t%s ~ %s\n", v.DependentField, v.IndependentField)
	fmt.Fprintf(tw, "Viewport:\tx %s, y %s\n", v.Viewport.X, v.Viewport.Y)
	if v.Fit != nil {
		fmt.Fprintf(tw, "Fit:\t%s (R² %.4f)\n", v.Fit.Equation(), v.Fit.RSquared)
	} else {
		fmt.Fprintf(tw, "Fit:\t%s %s\n", v.FitState, v.ErrorCode)
	}
	if snap.Simulation != nil {
		fmt.Fprintf(tw, "Simulation:\t%d rows\n", len(snap.Simulation.Table.Rows))
	}
	return tw.Flush()
}

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List and fetch stored snapshots",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotsList(cmd.Context(), cmd.OutOrStdout(), limit)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of snapshots")

	var outFile string
	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Write a stored snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotsGet(cmd.Context(), cmd.OutOrStdout(), args[0], outFile)
		},
	}
	get.Flags().StringVarP(&outFile, "out", "o", "", "Write to file instead of stdout")

	cmd.AddCommand(list, get)
	return cmd
}

func runSnapshotsList(ctx context.Context, out io.Writer, limit int) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)
	repo, err := c.InitStorage(ctx)
	if err != nil {
		return err
	}
	recs, err := repo.List(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tSESSION\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key, r.Name, r.SessionID, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runSnapshotsGet(ctx context.Context, out io.Writer, key, outFile string) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)
	repo, err := c.InitStorage(ctx)
	if err != nil {
		return err
	}
	rec, err := repo.Get(ctx, key)
	if err != nil {
		return err
	}
	return writeOutput(out, outFile, append(rec.Payload, '\n'))
}

func writeOutput(out io.Writer, outFile string, body []byte) error {
	if outFile == "" {
		_, err := out.Write(body)
		return err
	}
	return os.WriteFile(outFile, body, 0o644)
}
