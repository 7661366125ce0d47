package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/intentui/internal/app"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/presentation"
)

var (
	listCrawlable  bool
	listDeprecated bool
	listComponent  string
	listFramework  string
	listSandboxed  bool
)

var intentsListCmd = &cobra.Command{
	Use:   "intents:list",
	Short: "List registered intents",
	Long: `List registered intents as JSON.

Examples:
  intentui intents:list
  intentui intents:list --crawlable
  intentui intents:list --component ProductGrid | jq '.[].name'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		criteria := catalog.IntentCriteria{Component: listComponent}
		if cmd.Flags().Changed("crawlable") {
			criteria.Crawlable = &listCrawlable
		}
		if cmd.Flags().Changed("deprecated") {
			criteria.Deprecated = &listDeprecated
		}
		return withApp(cmd.Context(), func(_ context.Context, a *app.App) error {
			has := func(name string) bool {
				_, ok := a.Components.Get(name)
				return ok
			}
			dtos := presentation.FromIntents(a.Intents.FindByCriteria(criteria), has)
			return presentation.NewFormatter(os.Stdout).FormatIntents(dtos)
		})
	},
}

var componentsListCmd = &cobra.Command{
	Use:   "components:list",
	Short: "List registered components",
	Long: `List registered components as JSON.

Examples:
  intentui components:list
  intentui components:list --framework vue
  intentui components:list --sandboxed=false`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		criteria := catalog.ComponentCriteria{Framework: catalog.Framework(listFramework)}
		if cmd.Flags().Changed("deprecated") {
			criteria.Deprecated = &listDeprecated
		}
		if cmd.Flags().Changed("sandboxed") {
			criteria.Sandboxed = &listSandboxed
		}
		return withApp(cmd.Context(), func(_ context.Context, a *app.App) error {
			dtos := presentation.FromComponents(a.Components.FindByCriteria(criteria))
			return presentation.NewFormatter(os.Stdout).FormatComponents(dtos)
		})
	},
}

func init() {
	intentsListCmd.Flags().BoolVar(&listCrawlable, "crawlable", false, "only crawlable (or, with =false, non-crawlable) intents")
	intentsListCmd.Flags().BoolVar(&listDeprecated, "deprecated", false, "filter by deprecation")
	intentsListCmd.Flags().StringVar(&listComponent, "component", "", "only intents targeting this component")

	componentsListCmd.Flags().StringVar(&listFramework, "framework", "", "only components of this framework")
	componentsListCmd.Flags().BoolVar(&listDeprecated, "deprecated", false, "filter by deprecation")
	componentsListCmd.Flags().BoolVar(&listSandboxed, "sandboxed", false, "filter by sandboxing")

	rootCmd.AddCommand(intentsListCmd, componentsListCmd)
}
