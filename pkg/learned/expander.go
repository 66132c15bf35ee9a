package learned

import (
	"context"
	"regexp"
	"strings"

	"github.com/agentmemory/memsvc/pkg/memory/postgres"
)

// MaxVariants bounds the number of query variants [Expander.Expand] returns.
const MaxVariants = 8

// whRule is a single "first match wins" expansion rule.
type whRule struct {
	pattern *regexp.Regexp
	build   func(x string) []string
}

// x is the capture group name used by every wh-rule pattern below.
var whRules = []whRule{
	{
		pattern: regexp.MustCompile(`(?i)^what\s+(?:is\s+)?(?:my|the)\s+(.+?)\??$`),
		build: func(x string) []string {
			return []string{x, "my " + x, x + " preference", "favorite " + x}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^who\s+(?:is\s+)?(?:my|the)\s+(.+?)\??$`),
		build: func(x string) []string {
			return []string{"my " + x, x + " name", x}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^when\s+(?:is|do|does|did)\s+(?:my|the)\s+(.+?)\??$`),
		build: func(x string) []string {
			return []string{x + " date", x + " time", x + " schedule", x}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^where\s+(?:is|do|does|did)\s+(?:my|the|i)\s+(.+?)\??$`),
		build: func(x string) []string {
			return []string{x + " location", x + " address", x + " place", x}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^how\s+(?:do|does|did|can)\s+i\s+(.+?)\??$`),
		build: func(x string) []string {
			return []string{x + " instructions", x + " method", "how to " + x, x}
		},
	},
	{
		pattern: regexp.MustCompile(`(?i)^(?:get|find|show|list|tell me)\s+(?:my|the)\s+(.+?)\??$`),
		build: func(x string) []string {
			return []string{x, "my " + x, x + " details"}
		},
	},
}

// whatXDoIYRe is handled separately from whRules since it has two capture
// groups (X and Y) rather than one.
var whatXDoIYRe = regexp.MustCompile(`(?i)^what\s+(.+?)\s+do\s+i\s+(.+?)\??$`)

// synonymSeeds is a closed map of phrase -> alternate surface forms, per
// spec §4.8.2.
var synonymSeeds = map[string][]string{
	"medical care":  {"doctor", "clinic", "health"},
	"life partner":  {"spouse", "husband", "wife"},
	"code editor":   {"ide", "vim", "vscode"},
	"mobile phone":  {"cell phone", "smartphone"},
	"car":           {"vehicle", "automobile"},
	"workplace":     {"office", "job", "employer"},
	"pet":           {"dog", "cat", "animal"},
	"favorite food": {"favorite dish", "preferred cuisine"},
}

var learnedStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "have": true, "what": true, "when": true,
	"where": true, "which": true, "about": true, "your": true, "does": true,
}

// Expander generates alternate phrasings of a query to widen recall, per
// spec §4.8.2: wh-rules first, then synonym substitution, then persisted
// learned expansions, then a keyword fallback.
type Expander struct {
	store ExpansionStore
}

// ExpansionStore is the persistence backing an [Expander]'s learned-expansion
// stage. [postgres.LearnedStateStore] satisfies it.
type ExpansionStore interface {
	ExpansionsFor(ctx context.Context, term string) ([]postgres.LearnedExpansionRow, error)
}

// NewExpander creates an [Expander]. store may be nil, in which case the
// learned-expansion stage is skipped.
func NewExpander(store ExpansionStore) *Expander {
	return &Expander{store: store}
}

// Expand returns up to [MaxVariants] phrasings of query, always including
// the original query first.
func (x *Expander) Expand(ctx context.Context, query string) []string {
	variants := []string{query}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}

	add := func(v string) bool {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			return len(variants) < MaxVariants
		}
		seen[key] = true
		variants = append(variants, v)
		return len(variants) < MaxVariants
	}

	trimmed := strings.TrimSpace(query)
	lowered := strings.ToLower(trimmed)

	room := func() bool { return len(variants) < MaxVariants }

	if room() {
		if m := whatXDoIYRe.FindStringSubmatch(trimmed); m != nil {
			xv, yv := m[1], m[2]
			for _, v := range []string{xv + " " + yv, xv + " preference", "my " + xv, xv} {
				if !room() {
					break
				}
				add(v)
			}
		} else {
			for _, rule := range whRules {
				m := rule.pattern.FindStringSubmatch(trimmed)
				if m == nil {
					continue
				}
				for _, v := range rule.build(m[1]) {
					if !room() {
						break
					}
					add(v)
				}
				break
			}
		}
	}

	for phrase, syns := range synonymSeeds {
		if !room() {
			break
		}
		if !strings.Contains(lowered, phrase) {
			continue
		}
		for _, s := range syns {
			if !room() {
				break
			}
			add(s)
			if room() {
				add(strings.Replace(lowered, phrase, s, 1))
			}
		}
	}

	if x.store != nil && room() {
		for _, tok := range strings.Fields(lowered) {
			if !room() {
				break
			}
			rows, err := x.store.ExpansionsFor(ctx, tok)
			if err != nil {
				continue
			}
			for _, r := range rows {
				if !room() {
					break
				}
				add(r.Expansion)
			}
		}
	}

	if len(variants) < MaxVariants {
		var kept []string
		for _, tok := range strings.Fields(lowered) {
			if len(tok) > 3 && !learnedStopwords[tok] {
				kept = append(kept, tok)
			}
		}
		if len(kept) > 0 {
			add(strings.Join(kept, " "))
		}
	}

	return variants
}
