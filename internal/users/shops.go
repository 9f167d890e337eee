package users

// PredefinedShops is the built-in shop catalogue offered when granting
// permissions, before any order mentions a shop.
var PredefinedShops = []string{
	"Amazon US - Electronics Store",
	"Amazon US - Home & Kitchen",
	"Amazon US - Fashion & Beauty",
	"Amazon US - Sports & Outdoors",
	"Amazon US - Toys & Games",
	"Amazon UK - Electronics Store",
	"Amazon UK - Home & Kitchen",
	"Amazon DE - Electronics Store",
	"Amazon DE - Home & Kitchen",
	"Amazon JP - Electronics Store",
}
