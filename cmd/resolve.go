package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/intentui/internal/app"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/presentation"
	"github.com/zjrosen/intentui/internal/render"
	"github.com/zjrosen/intentui/internal/resolver"
)

var (
	resolveParams string
	renderMode    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <intent>",
	Short: "Resolve an intent and print the resolution result",
	Long: `Resolve one intent against the configured catalogs and print
{record, component, ttl} as JSON.

Examples:
  intentui resolve show_products --params '{"category":"electronics"}'
  intentui resolve show_cart -p '{"cartId":"c1"}' | jq .record.props`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(resolveParams)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			res, err := a.Resolver.ResolveIntent(ctx, catalog.IntentRequest{Name: args[0], Parameters: params}, resolver.Options{})
			if err != nil {
				return describe(err)
			}
			return presentation.NewFormatter(os.Stdout).FormatResult(res)
		})
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <intent>",
	Short: "Render an intent as a JSON artifact or an HTML page",
	Long: `Render one intent through the render pipeline. JSON mode prints the
descriptor; HTML mode prints the full hydrating document.

Examples:
  intentui render show_products -p '{"category":"books"}'
  intentui render show_products -p '{"category":"books"}' --mode html > page.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(resolveParams)
		if err != nil {
			return err
		}
		mode, err := render.ParseMode(renderMode, render.ModeJSON)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			art, err := a.Pipeline.Render(ctx, render.Request{
				Intent: catalog.IntentRequest{Name: args[0], Parameters: params},
				Mode:   mode,
			})
			if err != nil {
				return describe(err)
			}
			if art.Mode == render.ModeHTML {
				_, err = fmt.Fprintln(os.Stdout, art.HTML)
				return err
			}
			return presentation.NewFormatter(os.Stdout).FormatResult(art.JSON)
		})
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveParams, "params", "p", "", "intent parameters as a JSON object")
	renderCmd.Flags().StringVarP(&resolveParams, "params", "p", "", "intent parameters as a JSON object")
	renderCmd.Flags().StringVarP(&renderMode, "mode", "m", "json", "render mode: json or html")
	rootCmd.AddCommand(resolveCmd, renderCmd)
}

func parseParams(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("--params must be a JSON object: %w", err)
	}
	return params, nil
}

// describe appends the machine code and details of a catalog error.
func describe(err error) error {
	details := catalog.DetailsOf(err)
	if details == nil {
		return fmt.Errorf("%s: %w", catalog.CodeOf(err), err)
	}
	out, _ := json.Marshal(details)
	return fmt.Errorf("%s: %w\ndetails: %s", catalog.CodeOf(err), err, out)
}

// withApp builds the application from the loaded configuration, runs fn and
// releases it. Nothing is served.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	return withAppOptions(ctx, nil, fn)
}

func withAppOptions(ctx context.Context, opts []app.Option, fn func(context.Context, *app.App) error) error {
	if err := requireConfig(); err != nil {
		return err
	}
	cleanup, err := setupLogging()
	if err != nil {
		return err
	}
	defer cleanup()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, append([]app.Option{app.WithVersion(version)}, opts...)...)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return fn(ctx, a)
}
