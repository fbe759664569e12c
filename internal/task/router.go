package task

import (
	"fmt"
	"sort"
	"strings"
)

// Rule maps a task-name prefix to a queue.
type Rule struct {
	Prefix string
	Queue  string
}

// Router assigns every task name to exactly one queue by longest-prefix
// match against a static rule table. Unmatched names fall through to the
// default queue, so no task is ever unrouted.
//
// Route is a pure function; the table is fixed at construction.
type Router struct {
	rules []Rule // sorted by descending prefix length
}

// NewRouter validates the rule table and returns a router. Two rules with
// the same prefix are an ambiguous collision and a startup-fatal error.
func NewRouter(rules []Rule) (*Router, error) {
	seen := make(map[string]string, len(rules))
	queues := DefaultQueues()
	for _, r := range rules {
		if r.Prefix == "" {
			return nil, fmt.Errorf("routing rule with empty prefix (queue %q)", r.Queue)
		}
		if prev, ok := seen[r.Prefix]; ok {
			return nil, fmt.Errorf("ambiguous routing: prefix %q maps to both %q and %q", r.Prefix, prev, r.Queue)
		}
		if _, ok := queues[r.Queue]; !ok {
			return nil, fmt.Errorf("routing rule %q targets unknown queue %q", r.Prefix, r.Queue)
		}
		seen[r.Prefix] = r.Queue
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Router{rules: sorted}, nil
}

// DefaultRules is the reference routing table.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "email.", Queue: QueueEmail},
		{Prefix: "odoo.", Queue: QueueOdoo},
		{Prefix: "notifications.", Queue: QueueNotifications},
		{Prefix: "analytics.", Queue: QueueAnalytics},
	}
}

// Route returns the queue for a task name: the longest matching prefix wins,
// no match means the default queue.
func (r *Router) Route(name string) string {
	for _, rule := range r.rules {
		if strings.HasPrefix(name, rule.Prefix) {
			return rule.Queue
		}
	}
	return QueueDefault
}
