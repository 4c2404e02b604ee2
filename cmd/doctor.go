package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/plantlog/internal/config"
	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/renderer"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, store connectivity and templates",
	Long: `Run the checks plantlog needs to pass before serving:

- the configuration resolves and validates
- the configured document store can be reached
- every page template parses

Exits non-zero when any check fails.`,
	RunE: runDoctor,
}

var doctorTimeout time.Duration

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 5*time.Second, "Time allowed for the store check")
}

// checkResult is the outcome of one doctor check.
type checkResult struct {
	Name   string
	OK     bool
	Detail string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	results := diagnose(cmd.Context(), viper.GetViper(), doctorTimeout)
	return printResults(cmd.OutOrStdout(), results)
}

// diagnose runs every check against the configuration held by v. Checks
// that depend on a valid configuration are skipped when it is invalid.
func diagnose(ctx context.Context, v *viper.Viper, timeout time.Duration) []checkResult {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return []checkResult{{Name: "configuration", Detail: err.Error()}}
	}
	results := []checkResult{{Name: "configuration", OK: true, Detail: "store driver " + cfg.Store.Driver}}

	results = append(results, checkStore(ctx, cfg, timeout))
	results = append(results, checkTemplates(cfg))
	return results
}

func checkStore(ctx context.Context, cfg *config.Config, timeout time.Duration) checkResult {
	res := checkResult{Name: "store"}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := openStore(ctx, cfg.Store, logging.NewNopLogger())
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	defer st.Close(context.Background())

	if err := st.Ping(ctx); err != nil {
		res.Detail = err.Error()
		return res
	}
	plants, err := st.ListPlants(ctx)
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	res.OK = true
	res.Detail = fmt.Sprintf("%s reachable, %d plant(s)", cfg.Store.Driver, len(plants))
	return res
}

func checkTemplates(cfg *config.Config) checkResult {
	res := checkResult{Name: "templates"}
	r, err := renderer.New(renderer.Options{Dir: cfg.Templates.Dir})
	if err != nil {
		res.Detail = err.Error()
		return res
	}
	source := "embedded"
	if cfg.Templates.Dir != "" {
		source = cfg.Templates.Dir
	}
	res.OK = true
	res.Detail = fmt.Sprintf("%d pages from %s", len(r.Names()), source)
	return res
}

func printResults(w io.Writer, results []checkResult) error {
	ok := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	failed := 0
	for _, r := range results {
		if r.OK {
			ok.Fprint(w, "  OK   ")
		} else {
			failed++
			fail.Fprint(w, "  FAIL ")
		}
		fmt.Fprintf(w, "%-14s %s\n", r.Name, r.Detail)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}
