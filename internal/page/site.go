package page

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/masahif/yanderelinks/internal/parser"
)

// Site layout. Every listing, gallery and detail URL the crawler handles
// starts with one of these.
const (
	SiteRoot           = "https://yande.re"
	ListingRoot        = SiteRoot + "/post"
	GalleryListingRoot = SiteRoot + "/pool"
	DetailRoot         = ListingRoot + "/show"
	GalleryDetailRoot  = GalleryListingRoot + "/show"
)

// Markup markers. Each value is read from the end of the marker up to the
// next double quote.
const (
	ImageLinkMarker = `"file_url":"`
	PoolLinkMarker  = `<a href="/pool/show`
	PrevPageMarker  = `<a class="previous_page" rel="prev" href="`
	NextPageMarker  = `<a class="next_page" rel="next" href="`

	// IndexParam is the pagination query parameter.
	IndexParam = "page"
)

// IsSiteOriginPage reports whether p is any page on the site.
func IsSiteOriginPage(p *Page) bool {
	return p != nil && strings.HasPrefix(p.link, SiteRoot)
}

// IsListingIndexPage reports whether p lists posts rather than showing one.
func IsListingIndexPage(p *Page) bool {
	return p != nil && strings.HasPrefix(p.link, ListingRoot) &&
		!strings.HasPrefix(p.link, DetailRoot)
}

// IsGalleryIndexPage reports whether p lists pools rather than showing one.
func IsGalleryIndexPage(p *Page) bool {
	return p != nil && strings.HasPrefix(p.link, GalleryListingRoot) &&
		!strings.HasPrefix(p.link, GalleryDetailRoot)
}

// IsDetailPage reports whether p shows a single post.
func IsDetailPage(p *Page) bool {
	return p != nil && strings.HasPrefix(p.link, DetailRoot)
}

// IsGalleryDetailPage reports whether p shows a single pool.
func IsGalleryDetailPage(p *Page) bool {
	return p != nil && strings.HasPrefix(p.link, GalleryDetailRoot)
}

// resolveSiteLink turns a site-relative href into an absolute link.
func resolveSiteLink(href string) string {
	href = parser.Unescape(href)
	ref, err := url.Parse(href)
	if err != nil {
		return SiteRoot + href
	}
	base, _ := url.Parse(SiteRoot + "/")
	return base.ResolveReference(ref).String()
}

// indexValue returns the raw value of the pagination parameter in link.
func indexValue(link string) (string, bool) {
	_, rest, ok := strings.Cut(link, "?")
	if !ok {
		return "", false
	}
	rest, _, _ = strings.Cut(rest, "#")
	for _, part := range strings.Split(rest, "&") {
		if key, value, _ := strings.Cut(part, "="); key == IndexParam {
			return value, true
		}
	}
	return "", false
}

// linkAt rewrites the pagination parameter of link to n, appending it when
// absent. Other parameters keep their order.
func linkAt(link string, n int) string {
	if link == SiteRoot || link == SiteRoot+"/" {
		link = ListingRoot
	}

	base, fragment, hasFragment := strings.Cut(link, "#")
	path, query, hasQuery := strings.Cut(base, "?")
	index := strconv.Itoa(n)

	var rewritten string
	switch {
	case !hasQuery || query == "":
		rewritten = path + "?" + IndexParam + "=" + index
	default:
		parts := strings.Split(query, "&")
		found := false
		for i, part := range parts {
			key, value, _ := strings.Cut(part, "=")
			if key != IndexParam {
				continue
			}
			// Keep anything trailing the digits, as the site does not emit it
			// but hand-written links might.
			tail := strings.TrimLeft(value, "0123456789")
			parts[i] = IndexParam + "=" + index + tail
			found = true
			break
		}
		if !found {
			parts = append(parts, IndexParam+"="+index)
		}
		rewritten = path + "?" + strings.Join(parts, "&")
	}

	if hasFragment {
		rewritten += "#" + fragment
	}
	return rewritten
}

// normalizeLink builds the equality key of a link: lowercased scheme and
// host, default port dropped, empty path as "/", query as a sorted set of
// key=value pairs. The fragment is ignored.
func normalizeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil || len(values) == 0 {
		if err != nil {
			b.WriteString("?")
			b.WriteString(u.RawQuery)
		}
		return b.String()
	}

	seen := map[string]bool{}
	pairs := make([]string, 0, len(values))
	for key, vals := range values {
		for _, v := range vals {
			pair := url.QueryEscape(key) + "=" + url.QueryEscape(v)
			if !seen[pair] {
				seen[pair] = true
				pairs = append(pairs, pair)
			}
		}
	}
	sort.Strings(pairs)

	b.WriteString("?")
	b.WriteString(strings.Join(pairs, "&"))
	return b.String()
}

// validLink reports whether link is a syntactically legal absolute URI.
func validLink(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	return err == nil && u.IsAbs() && u.Host != ""
}
