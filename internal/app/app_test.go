package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/intentui/internal/config"
	"github.com/zjrosen/intentui/internal/dataprovider"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/flags"
	"github.com/zjrosen/intentui/internal/render"
	"github.com/zjrosen/intentui/internal/resolver"
	"github.com/zjrosen/intentui/internal/source"
	"github.com/zjrosen/intentui/internal/testutil"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	intents, components := testutil.NewBuilder(t).WithShopCatalog().WriteFiles(t.TempDir())
	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Sources.Intents = intents
	cfg.Sources.Components = components
	return cfg
}

func TestNew_LoadsCatalogFromFiles(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.Equal(t, 4, a.Intents.Len())
	require.Equal(t, 3, a.Components.Len())

	res, err := a.Resolver.ResolveIntent(context.Background(),
		catalog.IntentRequest{Name: "show_products", Parameters: map[string]any{"category": "electronics"}}, resolver.Options{})
	require.NoError(t, err)
	require.Equal(t, "ProductGrid", res.Component.Name)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = ""

	_, err := New(context.Background(), cfg)

	require.ErrorIs(t, err, catalog.ErrConfiguration)
}

func TestNew_MissingIntentSourceFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources.Intents = t.TempDir() + "/missing.json"

	_, err := New(context.Background(), cfg)

	require.Error(t, err)
}

func TestServe_AnswersHealthAndShutsDown(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), WithVersion("1.2.3"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Start(ctx))

	ports := make(chan int, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx, func(p int) { ports <- p }) }()
	port := <-ports

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"version":"1.2.3"`)

	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}

func TestStart_WatchesSourceFiles(t *testing.T) {
	dir := t.TempDir()
	intents, components := testutil.NewBuilder(t).WithShopCatalog().WriteFiles(dir)
	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Sources = config.SourcesConfig{Intents: intents, Components: components, Watch: true, Debounce: 20 * time.Millisecond}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	b := testutil.NewBuilder(t).WithShopCatalog().WithIntent("show_orders", "ProductGrid")
	require.NoError(t, source.WriteJSON(intents, b.Intents()))

	require.Eventually(t, func() bool {
		_, ok := a.Intents.Get("show_orders")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStart_CloseImmediatelyAfterStart(t *testing.T) {
	b := testutil.NewBuilder(t).WithShopCatalog()
	cfg := testConfig(t)

	for range 100 {
		a, err := New(context.Background(), cfg, WithSources(b.Static(), b.Static()))
		require.NoError(t, err)
		require.NoError(t, a.Start(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, a.Close(ctx))
		cancel()
	}
}

func TestNew_WiresDataProviderAndSSR(t *testing.T) {
	provider := &dataprovider.Static{Data: map[string]map[string]any{
		"show_products": {"currency": "EUR", "category": "ignored"},
	}}
	ssr := render.SSRFunc(func(_ context.Context, req render.SSRRequest) (string, error) {
		return "<ul>" + req.Props["category"].(string) + "</ul>", nil
	})
	b := testutil.NewBuilder(t).WithShopCatalog()
	cfg := testConfig(t)
	cfg.Flags = map[string]bool{flags.FlagResolutionCache: false}

	a, err := New(context.Background(), cfg,
		WithSources(b.Static(), b.Static()),
		WithDataProvider(provider),
		WithSSRClient(catalog.FrameworkReact, ssr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	art, err := a.Pipeline.Render(context.Background(), render.Request{
		Intent: catalog.IntentRequest{Name: "show_products", Parameters: map[string]any{"category": "books"}},
		Mode:   render.ModeHTML,
	})
	require.NoError(t, err)
	require.Contains(t, art.HTML, "<ul>books</ul>")
	require.Equal(t, "EUR", art.Result.Record.Props["currency"])

	require.Contains(t, art.HTML, `"currency":"EUR"`)
}

func TestWithoutInitialLoad(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), WithoutInitialLoad())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.Zero(t, a.Intents.Len())
	require.NoError(t, a.Reload(context.Background()))
	require.Equal(t, 4, a.Intents.Len())
}
