package flow

import (
	"regexp"
	"strings"
)

// PageGroup is one of the site-section buckets landing pages are grouped into.
type PageGroup string

const (
	GroupHome      PageGroup = "HOME"
	GroupCart      PageGroup = "CART"
	GroupCheckout  PageGroup = "CHECKOUT"
	GroupContact   PageGroup = "CONTACT"
	GroupPromotion PageGroup = "PROMOTION"
	GroupCatalog   PageGroup = "CATALOG"
	GroupBlog      PageGroup = "BLOG"
	GroupAbout     PageGroup = "ABOUT"
	GroupAccount   PageGroup = "ACCOUNT"
	GroupSearch    PageGroup = "SEARCH"
	GroupOther     PageGroup = "OTHER"
)

// fullPathRules are matched as substrings against the whole path, in order.
// The catalog keywords include retailer-specific product-name fragments the
// original site taxonomy needs (footwear/clothing terms, "-nb-" SKU infix).
var fullPathRules = []struct {
	group    PageGroup
	keywords []string
}{
	{GroupCart, []string{"cart", "carrito", "basket", "cesta"}},
	{GroupCheckout, []string{"checkout", "payment", "pago", "compra", "order", "pedido"}},
	{GroupContact, []string{"contact", "contacto", "ayuda", "help", "support", "soporte"}},
	{GroupPromotion, []string{"promo", "offer", "oferta", "descuento", "discount", "sale", "landing", "campaign", "campana"}},
	{GroupCatalog, []string{
		"product", "producto", "collection", "coleccion", "category", "categoria",
		"shop", "tienda", "catalog", "catalogo",
		"zapatilla", "zapato", "calzado", "shoe", "ropa", "clothing", "accesorio", "accessory",
		"/p/", "/item/", "-nb-",
	}},
}

// firstSegmentRules only consider the first path segment.
var firstSegmentRules = []struct {
	group    PageGroup
	keywords []string
}{
	{GroupBlog, []string{"blog", "article", "news", "noticia"}},
	{GroupAbout, []string{"about", "nosotros", "company", "empresa"}},
	{GroupAccount, []string{"login", "signin", "account", "cuenta", "profile", "perfil"}},
	{GroupSearch, []string{"search", "buscar", "busqueda"}},
}

// productCodePattern catches URLs carrying numeric product codes.
var productCodePattern = regexp.MustCompile(`\d{3,}`)

// GroupPage classifies a URL path into a site section. Rules run in order,
// first match wins, matching is case-insensitive. Paths the caller could not
// parse as URLs are matched as-is.
func GroupPage(path string) PageGroup {
	if path == "" || path == "/" {
		return GroupHome
	}

	segments := splitPathSegments(path)
	if len(segments) == 0 {
		return GroupHome
	}

	fullPath := strings.ToLower(path)

	for _, rule := range fullPathRules {
		for _, kw := range rule.keywords {
			if strings.Contains(fullPath, kw) {
				return rule.group
			}
		}
	}
	if productCodePattern.MatchString(fullPath) {
		return GroupCatalog
	}

	firstSegment := "/" + strings.ToLower(segments[0])
	for _, rule := range firstSegmentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(firstSegment, kw) {
				return rule.group
			}
		}
	}

	return GroupOther
}

func splitPathSegments(path string) []string {
	var segments []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
