package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/bundle"
	"github.com/hamed0406/healthwatch/internal/config"
	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/hostrange"
)

var errUnhealthy = errors.New("unhealthy")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkctl",
		Short:         "Evaluate and inspect healthwatch check files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newExpandCmd(), newValidateCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		path    string
		only    []string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate every check once and print the verdicts",
		Long: `Builds every check of the checks file, evaluates each once and prints
one line per check. Exits 1 when any check is unhealthy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.LoadChecks(path)
			if err != nil {
				return err
			}
			logger := zap.NewNop()
			if verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
				defer logger.Sync()
			}

			reg := health.NewRegistry()
			if _, err := bundle.Register(reg, file, bundle.Deps{Logger: logger, Sink: alert.NewLogSink(logger)}); err != nil {
				return err
			}

			verdicts := make(map[string]health.Verdict)
			if len(only) == 0 {
				verdicts = reg.RunAll(cmd.Context())
			}
			for _, name := range only {
				v, err := reg.Run(cmd.Context(), name)
				if err != nil {
					return err
				}
				verdicts[name] = v
			}
			printVerdicts(cmd.OutOrStdout(), verdicts)
			if !health.AllHealthy(verdicts) {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "checks.yaml", "checks file")
	cmd.Flags().StringSliceVar(&only, "check", nil, "evaluate only the named checks")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log probes and alerts to stderr")
	return cmd
}

func printVerdicts(w io.Writer, verdicts map[string]health.Verdict) {
	names := make([]string, 0, len(verdicts))
	for n := range verdicts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%s\n", n, verdicts[n])
	}
}

func newExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand PATTERN",
		Short: "Print every host name a pattern such as app-[00-99].svc.local expands to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := hostrange.Parse(args[0])
			if err != nil {
				return err
			}
			if spec.Empty() {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: range is empty\n", spec)
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), strings.Join(spec.Hosts(), "\n")+"\n")
			return err
		},
	}
}

func newValidateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a checks file without probing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.LoadChecks(path)
			if err != nil {
				return err
			}
			names := file.Names()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d checks OK\n", path, len(names))
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "checks.yaml", "checks file")
	return cmd
}
