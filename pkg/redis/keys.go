package redis

import "strings"

const defaultKeyspace keyspace = "zs"

// keyspace joins key parts under one namespace, e.g. zs:cache:dashboard:<id>.
type keyspace string

func (k keyspace) join(parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (c *Client) keys() keyspace {
	if c == nil || c.prefix == "" {
		return defaultKeyspace
	}
	return c.prefix
}

// IdempotencyKey namespaces request and webhook markers.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys().join("idempotency", scope, id)
}

// RateLimitKey namespaces a fixed-window counter.
func (c *Client) RateLimitKey(scope, window string) string {
	return c.keys().join("rate_limit", scope, window)
}

// CacheKey namespaces cached read models. Empty parts are skipped.
func (c *Client) CacheKey(parts ...string) string {
	return c.keys().join(append([]string{"cache"}, parts...)...)
}
