package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/intentui/internal/dataprovider"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/domain/schema"
	"github.com/zjrosen/intentui/internal/registry"
	"github.com/zjrosen/intentui/internal/testutil"
)

type mockDataProvider struct {
	mock.Mock
}

func (m *mockDataProvider) ResolveIntentData(ctx context.Context, req dataprovider.IntentDataRequest) (map[string]any, error) {
	args := m.Called(ctx, req)
	data, _ := args.Get(0).(map[string]any)
	return data, args.Error(1)
}

func newMockDataProvider(t *testing.T) *mockDataProvider {
	m := &mockDataProvider{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// gatedProvider blocks the first call until release is closed.
type gatedProvider struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatedProvider) ResolveIntentData(ctx context.Context, _ dataprovider.IntentDataRequest) (map[string]any, error) {
	if p.calls.Add(1) == 1 {
		close(p.entered)
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return map[string]any{}, nil
}

func shopRegistries(t *testing.T) (*registry.IntentRegistry, *registry.ComponentRegistry) {
	t.Helper()
	src := testutil.NewBuilder(t).WithShopCatalog().Static()
	intents := registry.NewIntentRegistry(src)
	components := registry.NewComponentRegistry(src)
	require.NoError(t, intents.Reload(context.Background()))
	require.NoError(t, components.Reload(context.Background()))
	t.Cleanup(func() {
		_ = intents.Close()
		_ = components.Close()
	})
	return intents, components
}

func request(name string, params map[string]any) catalog.IntentRequest {
	return catalog.IntentRequest{Name: name, Parameters: params}
}

func TestResolveIntent_ShowProducts(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)

	res, err := r.ResolveIntent(context.Background(), request("show_products", map[string]any{"category": "electronics"}), Options{})

	require.NoError(t, err)
	require.Equal(t, "ProductGrid", res.Component.Name)
	require.Equal(t, "electronics", res.Record.Props["category"])
	require.Equal(t, 20.0, res.Record.Props["limit"], "declared default fills absent parameter")
	require.Equal(t, "https://cdn.example.com/ProductGrid.js", res.Record.ModuleURL)
	require.Equal(t, "ProductGrid", res.Record.ExportName)
	require.Equal(t, DefaultTTL, res.TTL)
}

func TestResolveIntent_MissingRequiredParameter(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)

	_, err := r.ResolveIntent(context.Background(), request("show_products", map[string]any{}), Options{})

	require.ErrorIs(t, err, catalog.ErrParameterValidation)
	violations, ok := catalog.DetailsOf(err).([]schema.Violation)
	require.True(t, ok)
	require.Len(t, violations, 1)
	require.Equal(t, "category", violations[0].Field)
	require.Equal(t, schema.KeywordRequired, violations[0].Keyword)
}

func TestResolveIntent_CollectsEveryViolation(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)

	_, err := r.ResolveIntent(context.Background(), request("show_products", map[string]any{
		"limit": "5",
		"sort":  "popularity",
	}), Options{})

	require.ErrorIs(t, err, catalog.ErrParameterValidation)
	violations := catalog.DetailsOf(err).([]schema.Violation)
	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, v.Field)
	}
	require.ElementsMatch(t, []string{"category", "limit", "sort"}, fields)
}

func TestResolveIntent_UnknownIntent(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)

	_, err := r.ResolveIntent(context.Background(), request("does_not_exist", nil), Options{})

	require.ErrorIs(t, err, catalog.ErrIntentNotSupported)
	require.True(t, catalog.IsClientError(err))
}

func TestResolveIntent_MissingComponent(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)

	_, err := r.ResolveIntent(context.Background(), request("show_dashboard", nil), Options{})

	require.ErrorIs(t, err, catalog.ErrComponentNotFound)
	require.False(t, catalog.IsClientError(err))
}

func TestResolveIntent_ComponentTTL(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components, WithDefaultTTL(120))

	cart, err := r.ResolveIntent(context.Background(), request("show_cart", map[string]any{"cartId": "c1"}), Options{})
	require.NoError(t, err)
	require.Equal(t, 30, cart.TTL)

	products, err := r.ResolveIntent(context.Background(), request("show_products", map[string]any{"category": "x"}), Options{})
	require.NoError(t, err)
	require.Equal(t, 120, products.TTL)
}

func TestResolveIntent_DataProviderMergeParametersWin(t *testing.T) {
	intents, components := shopRegistries(t)
	provider := newMockDataProvider(t)
	provider.On("ResolveIntentData", mock.Anything, mock.MatchedBy(func(req dataprovider.IntentDataRequest) bool {
		return req.Intent == "show_products" && req.Component == "ProductGrid" && req.Parameters["category"] == "books"
	})).Return(map[string]any{"category": "stale", "items": []any{"a", "b"}}, nil).Once()

	r := New(intents, components, WithDataProvider(provider))

	res, err := r.ResolveIntent(context.Background(), request("show_products", map[string]any{"category": "books"}), Options{})

	require.NoError(t, err)
	require.Equal(t, "books", res.Record.Props["category"])
	require.Equal(t, []any{"a", "b"}, res.Record.Props["items"])
	require.Equal(t, "stale", res.Data["category"])
}

func TestResolveIntent_DataProviderFailureFailsRequest(t *testing.T) {
	intents, components := shopRegistries(t)
	provider := newMockDataProvider(t)
	provider.On("ResolveIntentData", mock.Anything, mock.Anything).Return(nil, errors.New("backend down")).Once()

	r := New(intents, components, WithDataProvider(provider))

	_, err := r.ResolveIntent(context.Background(), request("show_products", map[string]any{"category": "books"}), Options{})

	require.ErrorIs(t, err, catalog.ErrDataProvider)
	require.Contains(t, err.Error(), "backend down")
}

func TestResolveIntent_ValidationFailureSkipsProvider(t *testing.T) {
	intents, components := shopRegistries(t)
	provider := newMockDataProvider(t)
	r := New(intents, components, WithDataProvider(provider))

	_, err := r.ResolveIntent(context.Background(), request("show_products", nil), Options{})

	require.ErrorIs(t, err, catalog.ErrParameterValidation)
	provider.AssertNotCalled(t, "ResolveIntentData", mock.Anything, mock.Anything)
}

func TestResolveIntent_IsIdempotent(t *testing.T) {
	intents, components := shopRegistries(t)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := New(intents, components, WithClock(func() time.Time { return fixed }))
	req := request("show_products", map[string]any{"category": "toys", "tags": []any{"a"}})

	first, err := r.ResolveIntent(context.Background(), req, Options{})
	require.NoError(t, err)
	second, err := r.ResolveIntent(context.Background(), req, Options{})
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestResolveIntent_DoesNotMutateInput(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)
	params := map[string]any{"category": "toys"}

	res, err := r.ResolveIntent(context.Background(), request("show_products", params), Options{})
	require.NoError(t, err)
	res.Record.Props["category"] = "changed"

	require.Equal(t, map[string]any{"category": "toys"}, params)
}

func TestResolveIntent_CacheServesRepeatsAndFlushesOnReload(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components, WithCache(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.WatchChanges(ctx, intents, components)
	req := request("show_products", map[string]any{"category": "toys"})

	first, err := r.ResolveIntent(context.Background(), req, Options{})
	require.NoError(t, err)

	// The cached copy keeps serving the old definition until a change arrives.
	require.True(t, components.Remove("ProductGrid"))
	require.Eventually(t, func() bool {
		_, err := r.ResolveIntent(context.Background(), req, Options{})
		return errors.Is(err, catalog.ErrComponentNotFound)
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, components.Reload(context.Background()))
	require.Eventually(t, func() bool {
		again, err := r.ResolveIntent(context.Background(), req, Options{})
		return err == nil && again.Record.ModuleURL == first.Record.ModuleURL
	}, time.Second, 10*time.Millisecond)
}

func TestResolveIntent_InFlightResolutionDoesNotCacheStaleComponent(t *testing.T) {
	intents, components := shopRegistries(t)
	provider := newGatedProvider()
	r := New(intents, components, WithDataProvider(provider), WithCache(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.WatchChanges(ctx, intents, components)
	req := request("show_products", map[string]any{"category": "toys"})
	opts := Options{Cache: true}

	inFlight := make(chan string, 1)
	go func() {
		res, err := r.ResolveIntent(ctx, req, opts)
		if err != nil {
			inFlight <- ""
			return
		}
		inFlight <- res.Record.ModuleURL
	}()
	<-provider.entered

	grid, ok := components.Get("ProductGrid")
	require.True(t, ok)
	oldURL := grid.RemoteURL
	v2 := grid.Clone()
	v2.RemoteURL = "https://cdn.example.com/ProductGrid.v2.js"
	require.NoError(t, components.Add(v2))
	close(provider.release)

	require.Equal(t, oldURL, <-inFlight)

	res, err := r.ResolveIntent(ctx, req, opts)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/ProductGrid.v2.js", res.Record.ModuleURL)
}

func TestResolveIntent_CachedResultsAreIndependent(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components, WithCache(time.Minute))
	req := request("show_products", map[string]any{"category": "toys"})

	first, err := r.ResolveIntent(context.Background(), req, Options{})
	require.NoError(t, err)
	first.Record.Props["category"] = "mutated"

	second, err := r.ResolveIntent(context.Background(), req, Options{})
	require.NoError(t, err)
	require.Equal(t, "toys", second.Record.Props["category"])
}

func TestResolveIntent_ProviderBypassesCacheUnlessRequested(t *testing.T) {
	intents, components := shopRegistries(t)
	provider := newMockDataProvider(t)
	provider.On("ResolveIntentData", mock.Anything, mock.Anything).Return(map[string]any{"n": 1}, nil).Times(3)

	r := New(intents, components, WithDataProvider(provider), WithCache(time.Minute))
	req := request("show_products", map[string]any{"category": "toys"})

	for i := 0; i < 2; i++ {
		_, err := r.ResolveIntent(context.Background(), req, Options{})
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := r.ResolveIntent(context.Background(), req, Options{Cache: true})
		require.NoError(t, err)
	}
}

func TestResolveIntent_NoCacheForcesFreshResolution(t *testing.T) {
	intents, components := shopRegistries(t)
	provider := newMockDataProvider(t)
	provider.On("ResolveIntentData", mock.Anything, mock.Anything).Return(map[string]any{}, nil).Twice()

	r := New(intents, components, WithDataProvider(provider), WithCache(time.Minute))
	req := request("show_products", map[string]any{"category": "toys"})

	_, err := r.ResolveIntent(context.Background(), req, Options{Cache: true})
	require.NoError(t, err)
	_, err = r.ResolveIntent(context.Background(), req, Options{Cache: true, NoCache: true})
	require.NoError(t, err)
}

func TestValidateParameters_NilSchemaPassesThrough(t *testing.T) {
	r := New(nil, nil)
	def := &catalog.IntentDefinition{Name: "free", Component: "X"}

	out, err := r.ValidateParameters(def, map[string]any{"anything": 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"anything": 1}, out)

	out, err = r.ValidateParameters(def, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestProperty_PropsAreSupersetOfParameters(t *testing.T) {
	src := testutil.NewBuilder(t).
		WithIntent("free_form", "Widget", testutil.StringParam("title"), testutil.Required("title")).
		WithComponent("Widget").
		Static()
	intents := registry.NewIntentRegistry(src)
	components := registry.NewComponentRegistry(src)
	require.NoError(t, intents.Reload(context.Background()))
	require.NoError(t, components.Reload(context.Background()))
	r := New(intents, components)

	rapid.Check(t, func(rt *rapid.T) {
		params := rapid.MapOf(rapid.StringMatching(`[a-z]{1,8}`), rapid.OneOf(
			rapid.Map(rapid.Int(), func(i int) any { return float64(i) }),
			rapid.Map(rapid.String(), func(s string) any { return s }),
			rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		)).Draw(rt, "params")
		params["title"] = rapid.String().Draw(rt, "title")

		res, err := r.ResolveIntent(context.Background(), request("free_form", params), Options{})
		require.NoError(rt, err)
		for k, v := range params {
			require.Contains(rt, res.Record.Props, k)
			require.Equal(rt, v, res.Record.Props[k])
		}
	})
}

func TestProperty_MissingRequiredIsReported(t *testing.T) {
	intents, components := shopRegistries(t)
	r := New(intents, components)

	rapid.Check(t, func(rt *rapid.T) {
		params := map[string]any{}
		if rapid.Bool().Draw(rt, "withLimit") {
			params["limit"] = float64(rapid.IntRange(1, 100).Draw(rt, "limit"))
		}
		if rapid.Bool().Draw(rt, "explicitNil") {
			params["category"] = nil
		}

		_, err := r.ResolveIntent(context.Background(), request("show_products", params), Options{})
		require.ErrorIs(rt, err, catalog.ErrParameterValidation)

		found := false
		for _, v := range catalog.DetailsOf(err).([]schema.Violation) {
			if v.Field == "category" && v.Keyword == schema.KeywordRequired {
				found = true
			}
		}
		require.True(rt, found)
	})
}
