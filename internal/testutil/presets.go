package testutil

import (
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/domain/schema"
)

// Origins used by the shop preset.
const (
	ShopOrigin  = "https://shop.example.com"
	AdminOrigin = "https://admin.example.com"
)

// WithShopCatalog adds the standard shop dataset:
//
//	show_products  -> ProductGrid   (react, category required, limit default 20, crawlable)
//	show_cart      -> CartSummary   (vue, shop origin only, cacheTtl 30)
//	show_profile   -> ProfileCard   (webcomponent, sandboxed, deprecated intent)
//	show_dashboard -> AdminDashboard (not registered)
func (b *Builder) WithShopCatalog() *Builder {
	sortSchema := &schema.Schema{Type: schema.TypeSet{schema.TypeString}, Enum: []any{"price", "name", "rating"}}

	return b.
		WithIntent("show_products", "ProductGrid",
			StringParam("category"), IntegerParam("limit", 20), Param("sort", sortSchema),
			Required("category"), Crawlable()).
		WithIntent("show_cart", "CartSummary", StringParam("cartId"), Required("cartId")).
		WithIntent("show_profile", "ProfileCard", StringParam("userId"), DeprecatedIntent()).
		WithIntent("show_dashboard", "AdminDashboard").
		WithComponent("ProductGrid", BundleSize(2048)).
		WithComponent("CartSummary",
			Framework(catalog.FrameworkVue), Origins(ShopOrigin), CacheTTL(30), BundleSize(4096)).
		WithComponent("ProfileCard",
			Framework(catalog.FrameworkWebComponent), RemoteURL("/static/profile-card.js"),
			Sandboxed(), CSP("img-src", "'self'", "https://images.example.com"))
}
