package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/intentui/internal/app"
	"github.com/zjrosen/intentui/internal/config"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/testutil"
)

func TestLoadConfig_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n  default_mode: html\n"), 0o600))

	loaded, err := loadConfig(viper.New(), path)

	require.NoError(t, err)
	require.Equal(t, ":9090", loaded.Server.Addr)
	require.Equal(t, "html", loaded.Server.DefaultMode)
	require.Equal(t, config.Defaults().Resolver.DefaultTTL, loaded.Resolver.DefaultTTL)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resolver:\n  default_ttl: 60\n"), 0o600))
	t.Setenv("INTENTUI_RESOLVER_DEFAULT_TTL", "90")

	loaded, err := loadConfig(viper.New(), path)

	require.NoError(t, err)
	require.Equal(t, 90, loaded.Resolver.DefaultTTL)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  default_mode: xml\n"), 0o600))

	_, err := loadConfig(viper.New(), path)

	require.ErrorIs(t, err, catalog.ErrConfiguration)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams(`{"category":"books","limit":5}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"category": "books", "limit": 5.0}, params)

	params, err = parseParams("")
	require.NoError(t, err)
	require.Empty(t, params)

	_, err = parseParams("[1]")
	require.Error(t, err)
}

func TestDescribe_IncludesCodeAndDetails(t *testing.T) {
	err := catalog.NewError(catalog.ErrParameterValidation, []string{"category"}, "invalid parameters")

	msg := describe(err).Error()

	require.Contains(t, msg, string(catalog.CodeParameterValidation))
	require.Contains(t, msg, `details: ["category"]`)
	require.ErrorIs(t, describe(err), catalog.ErrParameterValidation)
}

func TestBuildReport_FlagsDanglingIntent(t *testing.T) {
	intents, components := testutil.NewBuilder(t).WithShopCatalog().WriteFiles(t.TempDir())
	c := config.Defaults()
	c.Sources.Intents, c.Sources.Components = intents, components

	a, err := app.New(context.Background(), c, app.WithoutInitialLoad())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	report := buildReport(context.Background(), a)

	require.False(t, report.Valid)
	require.Equal(t, []string{"show_dashboard -> AdminDashboard"}, report.Dangling)
	require.Empty(t, report.Errors)
	require.Equal(t, 4, report.Intents)
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.0.0 (commit: abc, built: today)")
	var out bytes.Buffer
	versionCmd.SetOut(&out)

	versionCmd.Run(versionCmd, nil)

	require.Equal(t, "intentui 1.0.0 (commit: abc, built: today)\n", out.String())
}
