package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sonate-hq/arbiter/pkg/cli"
	"sonate-hq/arbiter/pkg/config"
	"sonate-hq/arbiter/pkg/policy"
)

var validateFlags struct {
	principlesFile string
	format         string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and principles files",
	Long: `Validate the configuration file and, when configured or given
explicitly, the principles file. Nothing is started; the command reports
every problem it finds and exits non-zero when validation fails.

Examples:
  # Validate the default config
  arbiter validate

  # Validate a specific config
  arbiter validate --config /etc/arbiter/config.yaml

  # Validate a principles file directly
  arbiter validate --principles principles.yaml

  # Machine-readable output
  arbiter validate --format json`,
	RunE: validateFiles,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.principlesFile, "principles", "", "principles file to validate (overrides config)")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// validationReport is the validate command's result.
type validationReport struct {
	ConfigFile     string   `json:"config_file"`
	ConfigValid    bool     `json:"config_valid"`
	PrinciplesFile string   `json:"principles_file,omitempty"`
	Principles     int      `json:"principles,omitempty"`
	Problems       []string `json:"problems,omitempty"`
}

func validateFiles(cmd *cobra.Command, args []string) error {
	report := validationReport{ConfigFile: cfgFile, ConfigValid: true}

	cfg, err := loadConfig(cmd)
	if err != nil {
		report.ConfigValid = false
		report.Problems = append(report.Problems, err.Error())
		cfg = config.DefaultConfig()
	}

	principlesFile := validateFlags.principlesFile
	if principlesFile == "" {
		principlesFile = cfg.Policy.PrinciplesFile
	}
	if principlesFile != "" {
		report.PrinciplesFile = principlesFile
		loader := policy.NewLoader(policy.NewRegistry(), principlesFile)
		parsed, err := loader.Parse()
		if err != nil {
			report.Problems = append(report.Problems, err.Error())
		} else {
			report.Principles = len(parsed.Principles)
		}
	}

	if validateFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, report); err != nil {
			return cli.NewCommandError("validate", err)
		}
	} else {
		printReport(report)
	}

	if len(report.Problems) > 0 {
		return cli.NewCommandError("validate", fmt.Errorf("%d problem(s) found", len(report.Problems)))
	}
	return nil
}

func printReport(report validationReport) {
	if report.ConfigValid {
		fmt.Printf("✓ Configuration valid: %s\n", report.ConfigFile)
	} else {
		fmt.Printf("✗ Configuration invalid: %s\n", report.ConfigFile)
	}
	if report.PrinciplesFile != "" {
		if report.Principles > 0 {
			fmt.Printf("✓ Principles file valid: %s (%d principles)\n", report.PrinciplesFile, report.Principles)
		} else if len(report.Problems) == 0 {
			fmt.Printf("✓ Principles file valid: %s\n", report.PrinciplesFile)
		}
	}
	for _, problem := range report.Problems {
		fmt.Printf("  ✗ %s\n", problem)
	}
}
