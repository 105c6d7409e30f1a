package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/helmsman"
	"github.com/arloliu/helmsman/model"
)

func newValidateCmd() *cobra.Command {
	var printEffective bool
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file and report warnings about values outside
the recommended ranges. With --print the effective configuration, defaults
included, is written as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), args[0], printEffective)
		},
	}
	cmd.Flags().BoolVar(&printEffective, "print", false, "Print the effective configuration")

	return cmd
}

func validateConfig(out io.Writer, path string, printEffective bool) error {
	cfg, err := helmsman.LoadConfig(path)
	if err != nil {
		return err
	}

	warnings := &collectingLogger{}
	cfg.ValidateWithWarnings(warnings)
	for _, w := range warnings.lines {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	if printEffective {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		_, _ = out.Write(data)

		return nil
	}
	fmt.Fprintf(out, "%s: ok (cluster %s, %s backend)\n", path, cfg.ClusterName, cfg.Store.Backend)

	return nil
}

func newStateModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statemodels",
		Short: "Print the built-in state models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printStateModels(cmd.OutOrStdout(), model.DefaultStateModels())
			return nil
		},
	}
}

func printStateModels(out io.Writer, defs []*model.StateModelDefinition) {
	for i, def := range defs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (initial %s)\n", def.ID(), def.InitialState())

		for _, state := range def.StatesPriorityList() {
			bound := def.NumParticipantsPerState(state)
			if bound == model.UpperBoundNone {
				fmt.Fprintf(out, "  %s\n", state)
				continue
			}
			fmt.Fprintf(out, "  %s [%s]\n", state, bound)
		}

		transitions := make([]string, 0, len(def.StateTransitionPriorityList()))
		for _, tr := range def.StateTransitionPriorityList() {
			transitions = append(transitions, tr.String())
		}
		fmt.Fprintf(out, "  transitions: %s\n", strings.Join(transitions, ", "))
	}
}

// collectingLogger keeps the formatted warnings of ValidateWithWarnings.
type collectingLogger struct {
	lines []string
}

func (l *collectingLogger) Debug(string, ...any) {}

func (l *collectingLogger) Info(string, ...any) {}

func (l *collectingLogger) Warn(msg string, keysAndValues ...any) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.lines = append(l.lines, b.String())
}

func (l *collectingLogger) Error(string, ...any) {}

func (l *collectingLogger) Fatal(string, ...any) {}
