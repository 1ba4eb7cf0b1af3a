package cache

import "strings"

// routeResult is the outcome of routing a backing path: either bypass
// the cache entirely, or a zero-based index into the shard table.
type routeResult struct {
	bypass bool
	shard  int
}

// router checks an ignore list first, then an ordered shard table
// where a wildcard is a default that loses to any explicit substring
// match, and later explicit matches win over earlier ones.
type router struct {
	ignore []string
	rules  []string // rules[i] corresponds to shards[i] in the engine
}

func newRouter(ignore []string, rules []string) *router {
	return &router{ignore: ignore, rules: rules}
}

func (r *router) route(path string) routeResult {
	for _, ig := range r.ignore {
		if strings.Contains(path, ig) {
			return routeResult{bypass: true}
		}
	}

	chosen := -1
	for i, rule := range r.rules {
		if rule == "*" {
			if chosen == -1 {
				chosen = i
			}
			continue
		}
		if strings.Contains(path, rule) {
			chosen = i
		}
	}
	if chosen == -1 {
		return routeResult{bypass: true}
	}
	return routeResult{shard: chosen}
}
