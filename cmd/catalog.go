package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zdunecki/onboarding/pkg/schema"
	"github.com/zdunecki/onboarding/pkg/validate"
	"github.com/zdunecki/onboarding/pkg/wizard"
)

var (
	optionsFilter string
	optionsParent []string
	validateStep  int
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and check the onboarding catalog",
}

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the wizard steps and their fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		for _, s := range reg.Steps() {
			var flags []string
			if s.Skippable {
				flags = append(flags, "skippable")
			}
			if s.Submit {
				flags = append(flags, "submits")
			}
			if s.Persist {
				flags = append(flags, "persisted")
			}
			fmt.Printf("%d. %s (%s)", s.Index+1, s.Title, s.Name)
			if len(flags) > 0 {
				fmt.Printf(" [%s]", strings.Join(flags, ", "))
			}
			fmt.Println()
			for _, f := range s.Fields {
				req := ""
				if f.Required {
					req = "*"
				}
				fmt.Printf("  - %-16s %-13s %s%s\n", f.Key, f.Kind, f.Label, req)
			}
		}
		return nil
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options <field>",
	Short: "List the options a selector offers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		f, step, ok := reg.Field(args[0])
		if !ok {
			return fmt.Errorf("unknown field: %s", args[0])
		}
		if !f.Kind.IsSelect() {
			return fmt.Errorf("field %s is a %s, not a selector", f.Key, f.Kind)
		}
		if f.DependsOn != "" && len(optionsParent) == 0 {
			return fmt.Errorf("field %s depends on %s; pass --parent", f.Key, f.DependsOn)
		}

		options := schema.FilterOptions(step.OfferedOptions(f, optionsParent), optionsFilter)
		fmt.Printf("Options for %s:\n", f.Label)
		for _, o := range options {
			fmt.Printf("  - %s\n", o)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <answers.json>",
	Short: "Validate a JSON answer set against a step",
	Long: `Reads answers keyed by field key (the shape of a final submission) and
runs the rules of one step over them. A "scores" number stands for the
exam score entries already added.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		step, err := reg.Step(validateStep - 1)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var flat map[string]interface{}
		if err := json.Unmarshal(data, &flat); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		answers, err := wizard.AnswersFrom(reg.Steps(), flat)
		if err != nil {
			return err
		}
		scores := 0
		if n, ok := flat["scores"].(float64); ok {
			scores = int(n)
		}

		res := validate.Step(step, answers, scores)
		if res.Valid() {
			fmt.Printf("✅ %s: valid\n", step.Title)
			return nil
		}
		fmt.Printf("❌ %s:\n", step.Title)
		for _, fe := range res.Errors() {
			fmt.Printf("   %s: %s\n", fe.Key, fe.Message)
		}
		return fmt.Errorf("%d field(s) need attention", len(res.Errors()))
	},
}

func init() {
	optionsCmd.Flags().StringVar(&optionsFilter, "filter", "", "Fuzzy filter applied to the options")
	optionsCmd.Flags().StringSliceVar(&optionsParent, "parent", nil, "Selected values of the parent field")
	validateCmd.Flags().IntVar(&validateStep, "step", 1, "Step number (1-based)")

	catalogCmd.AddCommand(stepsCmd, optionsCmd, validateCmd)
	rootCmd.AddCommand(catalogCmd)
}
