// Package extractor pulls typed entities and typed relationships out of
// memory content using a hybrid regex + heuristic pipeline: a high-precision
// regex layer for service names, technology tokens, and a small set of
// relationship verbs, combined with a capitalized-phrase "named entity"
// layer that applies per-type validation filters before accepting a
// candidate.
//
// No general-purpose NER model is used. The regex/technology-token layer is
// a curated, closed list by design — the extractor trades recall for
// precision, matching the "hybrid regex + NER with quality filters"
// contract it implements.
package extractor

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// Entity type labels, per the closed set of entity kinds this extractor
// recognizes.
const (
	TypePerson  = "PERSON"
	TypeOrg     = "ORG"
	TypeGPE     = "GPE"
	TypeTech    = "TECH"
	TypeService = "SERVICE"
	TypeDate    = "DATE"
	TypeOther   = "OTHER"
)

// technologies is the curated list of ~40 high-precision technology tokens.
// Matching is case-insensitive; the canonical Name stored on the [memory.Entity]
// preserves the casing below.
var technologies = []string{
	"PostgreSQL", "MySQL", "MongoDB", "Redis", "Kafka", "RabbitMQ",
	"Elasticsearch", "Docker", "Kubernetes", "Terraform", "Ansible",
	"Jenkins", "GitHub Actions", "Prometheus", "Grafana", "Nginx",
	"gRPC", "GraphQL", "REST", "WebSocket", "OAuth", "JWT", "TLS",
	"HTTP", "HTTPS", "S3", "AWS", "GCP", "Azure", "React", "Vue",
	"Angular", "Node.js", "Python", "Golang", "Java", "Rust",
	"TypeScript", "Linux", "CI/CD", "Vim", "VSCode",
}

// relVerbs maps a surface verb phrase to its relation-type label. Only
// high-precision patterns are matched; low-precision heuristics (e.g. "X for
// Y") are intentionally excluded.
var relVerbs = map[string]string{
	"uses":         "uses",
	"connects to":  "connects_to",
	"depends on":   "depends_on",
	"owns":         "owns",
	"manages":      "manages",
	"reports to":   "reports_to",
	"works with":   "works_with",
	"replaces":     "replaces",
	"extends":      "extends",
	"stores":       "stores",
	"wraps":        "wraps",
	"supports":     "supports",
	"runs on":      "runs_on",
	"deployed on":  "deployed_on",
	"built with":   "built_with",
}

// productSuffixBlacklist rejects PERSON candidates whose trailing word is a
// generic product-tier qualifier rather than a real surname.
var productSuffixBlacklist = map[string]bool{
	"pro": true, "max": true, "ultra": true, "edition": true, "plus": true,
}

// gpeGazetteer is the curated list of country, region, and city names
// recognized as GPE candidates, matched case-insensitively against a
// capitalized phrase's full lowercased form.
var gpeGazetteer = map[string]bool{
	"united states": true, "united kingdom": true, "european union": true,
	"germany": true, "france": true, "japan": true, "canada": true,
	"mexico": true, "brazil": true, "india": true, "china": true,
	"australia": true, "spain": true, "italy": true, "russia": true,
	"ireland": true, "netherlands": true, "singapore": true, "sweden": true,
	"new york": true, "san francisco": true, "los angeles": true,
	"london": true, "paris": true, "tokyo": true, "berlin": true,
	"toronto": true, "seattle": true, "chicago": true, "boston": true,
	"austin": true, "dublin": true, "amsterdam": true,
}

// dateWords are month and weekday names. A capitalized phrase whose first
// word is one of these classifies as DATE instead of falling through to the
// generic ORG/OTHER rules.
var dateWords = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// stopwords are common short words that never stand alone as entities.
var stopwords = map[string]bool{
	"i": true, "we": true, "you": true, "they": true, "it": true,
	"today": true, "yesterday": true, "tomorrow": true, "now": true,
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"here": true, "there": true, "okay": true, "yes": true, "no": true,
}

var (
	kebabServiceRe = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:-[a-z0-9]+){1,4}\b`)
	capPhraseRe    = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9&.]*(?:\s+[A-Z][a-zA-Z0-9&.]*){0,3}\b`)
	acronymRe      = regexp.MustCompile(`^[A-Z]{2,4}$`)
	bracketRe      = regexp.MustCompile(`[()\[\]{}]`)
	// numericDateRe matches ISO (2024-01-15) and slash-form (1/15/2024,
	// 1/15/24) dates as a high-precision regex layer, independent of the
	// capitalized-phrase NER path (numeric dates aren't capitalized).
	numericDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	relPatternRe  *regexp.Regexp
)

func init() {
	verbs := make([]string, 0, len(relVerbs))
	for v := range relVerbs {
		verbs = append(verbs, regexp.QuoteMeta(v))
	}
	relPatternRe = regexp.MustCompile(
		`(?i)\b([\w.-]+)\s+(` + strings.Join(verbs, "|") + `)\s+([\w.-]+)`,
	)
}

// Result bundles the entities, relationships, and provenance links the
// extractor produced from a single memory's content.
type Result struct {
	Entities      []memory.Entity
	Relationships []memory.Relationship
	Links         []memory.MemoryEntityLink
}

// Extractor extracts typed entities and relationships from memory content.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct{}

// New returns a ready-to-use [Extractor].
func New() *Extractor { return &Extractor{} }

// Extract analyzes content (the body of the memory identified by memoryID)
// and returns every entity and relationship it can identify with high
// confidence.
func (x *Extractor) Extract(content, memoryID string) Result {
	found := map[string]memory.Entity{} // keyed by canonical name+type
	order := []string{}

	addEntity := func(name, typ string) memory.Entity {
		canon := strings.ToLower(name) + "\x00" + typ
		if e, ok := found[canon]; ok {
			return e
		}
		e := memory.Entity{
			ID:          uuid.NewString(),
			Type:        typ,
			Name:        strings.ToLower(name),
			DisplayName: name,
		}
		found[canon] = e
		order = append(order, canon)
		return e
	}

	// --- Regex layer: kebab-case service names. ---
	for _, m := range kebabServiceRe.FindAllString(content, -1) {
		addEntity(m, TypeService)
	}

	// --- Regex layer: curated technology tokens. ---
	lower := strings.ToLower(content)
	for _, tech := range technologies {
		if strings.Contains(lower, strings.ToLower(tech)) {
			addEntity(tech, TypeTech)
		}
	}

	// --- Regex layer: numeric date patterns. ---
	for _, m := range numericDateRe.FindAllString(content, -1) {
		addEntity(m, TypeDate)
	}

	// --- NER-ish layer: capitalized phrases, validated per type. ---
	for _, m := range capPhraseRe.FindAllString(content, -1) {
		m = strings.TrimSpace(m)
		if _, dup := lookupEntity(found, m); dup {
			continue
		}
		typ, ok := classifyCapitalized(m)
		if !ok {
			continue
		}
		addEntity(m, typ)
	}

	entities := make([]memory.Entity, 0, len(order))
	links := make([]memory.MemoryEntityLink, 0, len(order))
	for _, k := range order {
		e := found[k]
		entities = append(entities, e)
		links = append(links, memory.MemoryEntityLink{
			MemoryID:   memoryID,
			EntityID:   e.ID,
			Confidence: 0.9,
		})
	}

	// --- Relationship extraction: only between entities we already found. ---
	var rels []memory.Relationship
	for _, m := range relPatternRe.FindAllStringSubmatch(content, -1) {
		subj, verb, obj := m[1], strings.ToLower(m[2]), m[3]
		subjEnt, subjOK := lookupEntity(found, subj)
		objEnt, objOK := lookupEntity(found, obj)
		if !subjOK || !objOK {
			continue
		}
		relType, ok := relVerbs[verb]
		if !ok {
			continue
		}
		rels = append(rels, memory.Relationship{
			SourceID: subjEnt.ID,
			TargetID: objEnt.ID,
			RelType:  relType,
			Weight:   1,
		})
	}

	return Result{Entities: entities, Relationships: rels, Links: links}
}

// lookupEntity finds an already-extracted entity whose canonical name
// matches token, trying both the SERVICE/TECH and generic NER namespaces.
func lookupEntity(found map[string]memory.Entity, token string) (memory.Entity, bool) {
	token = strings.ToLower(strings.Trim(token, ".,;:"))
	for _, typ := range []string{TypeService, TypeTech, TypeOrg, TypePerson, TypeGPE, TypeDate, TypeOther} {
		if e, ok := found[token+"\x00"+typ]; ok {
			return e, true
		}
	}
	return memory.Entity{}, false
}

// classifyCapitalized applies heuristic validation rules to a capitalized
// phrase and, if it passes, returns its entity type.
func classifyCapitalized(phrase string) (string, bool) {
	if len(phrase) < 3 || len(phrase) > 50 {
		return "", false
	}
	if stopwords[strings.ToLower(phrase)] {
		return "", false
	}
	if !containsLetter(phrase) {
		return "", false
	}

	words := strings.Fields(phrase)
	firstLower := strings.ToLower(words[0])
	if firstLower == "the" || firstLower == "a" || firstLower == "an" {
		if len(words) == 1 {
			return "", false
		}
		phrase = strings.Join(words[1:], " ")
		words = words[1:]
	}
	if len(words) == 0 {
		return "", false
	}

	// GPE: curated gazetteer of country/region/city names.
	if gpeGazetteer[strings.ToLower(phrase)] {
		return TypeGPE, true
	}

	// DATE: month or weekday names ("March", "Monday", "March 3rd, 2024").
	if dateWords[strings.ToLower(words[0])] {
		return TypeDate, true
	}

	// Acronym ORG: 2-4 uppercase letters.
	if acronymRe.MatchString(phrase) {
		return TypeOrg, true
	}

	// PERSON: starts uppercase, no brackets, not a product-suffix term, and
	// looks like "Firstname Lastname" (exactly two capitalized words).
	if len(words) == 2 && !bracketRe.MatchString(phrase) {
		last := strings.ToLower(words[1])
		if !productSuffixBlacklist[last] && isUpper(words[0][0]) && isUpper(words[1][0]) {
			return TypePerson, true
		}
	}

	if bracketRe.MatchString(phrase) {
		return "", false
	}

	// Multi-word capitalized phrases default to ORG; single capitalized
	// words with no other signal are treated as OTHER so we don't over-claim
	// PERSON/ORG on thin evidence.
	if len(words) >= 2 {
		return TypeOrg, true
	}
	return TypeOther, true
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
