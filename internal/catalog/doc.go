// Package catalog is a read-only HTTP client for the storefront catalog.
//
// The cart never asks the catalog anything by itself; callers fetch product
// details when adding to the cart and poll live stock to keep the stock
// recorded on line items current.
//
// Endpoints:
//
//	GET /api/products/{slug}             Product with variants, prices, stock
//	GET /api/products/{slug}/live-stock  LiveStock per variant SKU
//	GET /api/products/{slug}/related     []RelatedProduct
//
// Stock figures are hints. Availability is only guaranteed by the server at
// checkout.
package catalog
