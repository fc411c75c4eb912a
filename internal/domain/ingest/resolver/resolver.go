// Package resolver fills missing member identifiers by fuzzy name matching against the member registry.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/ingest/repository"
)

// MemberLookup queries the member registry with an ILIKE pattern.
type MemberLookup interface {
	FindMembersByName(ctx context.Context, schema, pattern string) ([]repository.Member, error)
}

// Resolver caches every answer, misses included, for the lifetime of one ingestion call.
type Resolver struct {
	lookup  MemberLookup
	schema  string
	logger  *slog.Logger
	cache   map[string]*string
	lookups int
}

// New creates a resolver scoped to a single ingestion call.
func New(lookup MemberLookup, schema string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		lookup: lookup,
		schema: schema,
		logger: logger,
		cache:  make(map[string]*string),
	}
}

// Resolve returns the id of the registry member best matching name, or nil.
// An exact normalised match wins over containment in either direction; among partial matches the
// smallest edit distance wins. Lookup errors are logged and treated as no match.
func (r *Resolver) Resolve(ctx context.Context, name string) *string {
	key := normalizer.NormalizeText(name)
	if key == "" {
		return nil
	}
	if id, ok := r.cache[key]; ok {
		return id
	}

	id := r.resolve(ctx, name, key)
	r.cache[key] = id
	return id
}

// Lookups reports how many registry round trips were made.
func (r *Resolver) Lookups() int { return r.lookups }

func (r *Resolver) resolve(ctx context.Context, name, key string) *string {
	token := longestToken(name)
	if token == "" {
		return nil
	}

	r.lookups++
	members, err := r.lookup.FindMembersByName(ctx, r.schema, "%"+likePattern(token)+"%")
	if err != nil {
		r.logger.WarnContext(ctx, "member lookup failed", "name", name, "error", err)
		return nil
	}

	var best *repository.Member
	bestDistance := -1
	for i := range members {
		m := &members[i]
		candidate := normalizer.NormalizeText(m.Socio)
		if candidate == "" || m.IDSocio == "" {
			continue
		}
		if candidate == key {
			id := m.IDSocio
			return &id
		}
		if !strings.Contains(candidate, key) && !strings.Contains(key, candidate) {
			continue
		}

		d := levenshtein.DistanceForStrings([]rune(key), []rune(candidate), levenshtein.DefaultOptions)
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = m, d
		}
	}

	if best == nil {
		return nil
	}
	id := best.IDSocio
	return &id
}

func longestToken(name string) string {
	var longest string
	for _, tok := range strings.Fields(name) {
		if len([]rune(tok)) > len([]rune(longest)) {
			longest = tok
		}
	}
	return longest
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// likePattern escapes s for LIKE and turns every non-ASCII rune into a single-character wildcard.
// ILIKE is accent-sensitive: "Pérez" must match both "Perez" and "Pérez".
func likePattern(s string) string {
	var b strings.Builder
	for _, r := range escapeLike(norm.NFC.String(s)) {
		if r > unicode.MaxASCII {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
