package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/intentui/internal/app"
	"github.com/zjrosen/intentui/internal/presentation"
)

// ValidationReport is printed by the validate command.
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Intents    int      `json:"intents"`
	Components int      `json:"components"`
	Errors     []string `json:"errors"`
	// Rejected lists component entries skipped at load time.
	Rejected []string `json:"rejected"`
	// Dangling lists intents whose component is not registered.
	Dangling []string `json:"dangling"`
}

var errInvalidCatalog = errors.New("catalog validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the intent and component catalogs",
	Long: `Load both catalogs and report every problem: malformed or duplicate
intents, rejected component entries and intents that reference a component
that is not registered. Exits non-zero when anything is wrong.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var report ValidationReport
		err := withAppOptions(cmd.Context(), []app.Option{app.WithoutInitialLoad()}, func(ctx context.Context, a *app.App) error {
			report = buildReport(ctx, a)
			return presentation.NewFormatter(os.Stdout).FormatResult(report)
		})
		if err != nil {
			return err
		}
		if !report.Valid {
			return errInvalidCatalog
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func buildReport(ctx context.Context, a *app.App) ValidationReport {
	report := ValidationReport{Errors: []string{}, Rejected: []string{}, Dangling: []string{}}
	if err := a.Reload(ctx); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	for _, err := range a.Components.Rejections() {
		report.Rejected = append(report.Rejected, err.Error())
	}
	for _, intent := range a.Intents.GetAll() {
		if _, ok := a.Components.Get(intent.Component); !ok {
			report.Dangling = append(report.Dangling, intent.Name+" -> "+intent.Component)
		}
	}
	report.Intents = a.Intents.Len()
	report.Components = a.Components.Len()
	report.Valid = len(report.Errors) == 0 && len(report.Rejected) == 0 && len(report.Dangling) == 0
	return report
}
