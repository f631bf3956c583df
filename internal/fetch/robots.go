package fetch

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// hostRules holds the robots.txt directives that apply to our user agent.
type hostRules struct {
	disallow   []string
	allow      []string
	crawlDelay time.Duration
}

// RobotsRules fetches, caches and evaluates robots.txt per host.
type RobotsRules struct {
	get     func(ctx context.Context, link string) (*response, error)
	product string // lowercased user-agent product token

	// OnCrawlDelay, when set, is called once per host whose robots.txt
	// declares a Crawl-delay.
	OnCrawlDelay func(host string, delay time.Duration)

	mu    sync.Mutex
	hosts map[string]*hostRules
}

// NewRobotsRules creates a robots.txt evaluator. userAgent is matched
// against User-agent groups by its product token ("yanderelinks" for
// "yanderelinks/1.0").
func NewRobotsRules(get func(ctx context.Context, link string) (*response, error), userAgent string) *RobotsRules {
	product := strings.ToLower(userAgent)
	if i := strings.IndexAny(product, "/ "); i >= 0 {
		product = product[:i]
	}
	return &RobotsRules{
		get:     get,
		product: product,
		hosts:   make(map[string]*hostRules),
	}
}

// IsAllowed reports whether link may be fetched. If robots.txt cannot be
// retrieved the link is allowed and the error is returned for logging.
func (r *RobotsRules) IsAllowed(ctx context.Context, link string) (bool, error) {
	u, err := url.Parse(link)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	rules, err := r.rulesFor(ctx, u.Scheme, u.Host)
	if err != nil {
		return true, err
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	// Longest match wins; allow wins ties.
	best, allowed := -1, true
	for _, pattern := range rules.disallow {
		if matchRobotsPattern(path, pattern) && len(pattern) > best {
			best, allowed = len(pattern), false
		}
	}
	for _, pattern := range rules.allow {
		if matchRobotsPattern(path, pattern) && len(pattern) >= best {
			best, allowed = len(pattern), true
		}
	}
	return allowed, nil
}

func (r *RobotsRules) rulesFor(ctx context.Context, scheme, host string) (*hostRules, error) {
	r.mu.Lock()
	rules, ok := r.hosts[host]
	r.mu.Unlock()
	if ok {
		return rules, nil
	}

	resp, err := r.get(ctx, fmt.Sprintf("%s://%s/robots.txt", scheme, host))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == 200:
		rules = parseRobots(resp.Body, r.product)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		rules = &hostRules{}
	default:
		return nil, fmt.Errorf("robots.txt: %w: %d", ErrStatus, resp.StatusCode)
	}

	r.mu.Lock()
	if existing, ok := r.hosts[host]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.hosts[host] = rules
	r.mu.Unlock()

	if rules.crawlDelay > 0 && r.OnCrawlDelay != nil {
		r.OnCrawlDelay(host, rules.crawlDelay)
	}
	return rules, nil
}

// parseRobots keeps the group addressed to product, falling back to "*".
func parseRobots(content, product string) *hostRules {
	groups := map[string]*hostRules{}
	var current []string
	inRules := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "user-agent" {
			if inRules {
				current = nil
				inRules = false
			}
			agent := strings.ToLower(value)
			current = append(current, agent)
			if groups[agent] == nil {
				groups[agent] = &hostRules{}
			}
			continue
		}

		inRules = true
		for _, agent := range current {
			g := groups[agent]
			switch key {
			case "disallow":
				if value != "" {
					g.disallow = append(g.disallow, value)
				}
			case "allow":
				if value != "" {
					g.allow = append(g.allow, value)
				}
			case "crawl-delay":
				if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
					g.crawlDelay = time.Duration(secs * float64(time.Second))
				}
			}
		}
	}

	if g, ok := groups[product]; ok && product != "" {
		return g
	}
	if g, ok := groups["*"]; ok {
		return g
	}
	return &hostRules{}
}

// matchRobotsPattern supports the '*' wildcard and the '$' end anchor.
func matchRobotsPattern(path, pattern string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	for _, part := range parts[1:] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	if anchored && len(parts) == 1 {
		return rest == ""
	}
	if anchored {
		last := parts[len(parts)-1]
		return strings.HasSuffix(path, last)
	}
	return true
}
