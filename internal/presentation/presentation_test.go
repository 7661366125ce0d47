package presentation

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/intentui/internal/testutil"
)

func TestFromIntents_ShopCatalog(t *testing.T) {
	b := testutil.NewBuilder(t).WithShopCatalog()
	components := b.Components()
	has := func(name string) bool {
		_, ok := components[name]
		return ok
	}

	dtos := FromIntents(b.Intents(), has)

	byName := map[string]IntentDTO{}
	for _, d := range dtos {
		byName[d.Name] = d
	}
	products := byName["show_products"]
	require.Equal(t, []string{"category", "limit", "sort"}, products.Parameters)
	require.Equal(t, []string{"category"}, products.Required)
	require.True(t, products.Crawlable)
	require.True(t, products.Resolvable)
	require.False(t, byName["show_dashboard"].Resolvable)
	require.True(t, byName["show_profile"].Deprecated)
}

func TestFromComponent(t *testing.T) {
	components := testutil.NewBuilder(t).WithShopCatalog().Components()

	cart := FromComponent(components["CartSummary"])
	require.Equal(t, 30, cart.CacheTTL)
	require.Equal(t, []string{testutil.ShopOrigin}, cart.AllowedOrigins)

	profile := FromComponent(components["ProfileCard"])
	require.True(t, profile.Sandboxed)
}

func TestFormatter_IndentedJSON(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	require.NoError(t, f.FormatComponents([]ComponentDTO{{Name: "X", AllowedOrigins: []string{}}}))

	require.Contains(t, buf.String(), "\n  {\n    \"name\": \"X\"")
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, []any{}, decoded[0]["allowedOrigins"])
}
