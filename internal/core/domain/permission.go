package domain

import (
	"regexp"
	"strings"
)

// Wildcard is the placeholder accepted in permission pattern queries. It
// matches any run of characters, including the empty string.
const Wildcard = "*"

// PermissionCode identifies a single grantable capability. The canonical
// shape is "resource:action" in lowercase ASCII, but any opaque string is
// accepted for exact and pattern matching.
type PermissionCode string

// Parse splits the code into its resource and action segments. It reports
// ok=false when the code is not exactly two non-empty colon-separated
// segments; a structurally invalid code is still usable for matching.
func (c PermissionCode) Parse() (resource, action string, ok bool) {
	parts := strings.Split(string(c), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// PermissionSet is the set of permission codes held by a principal at a
// point in time. Duplicates collapse and order carries no meaning.
type PermissionSet struct {
	codes map[PermissionCode]struct{}
	order []PermissionCode
}

// NewPermissionSet builds a set from the supplied codes, collapsing
// duplicates while remembering first-seen order for ByCategory listings.
func NewPermissionSet(codes ...PermissionCode) PermissionSet {
	set := PermissionSet{codes: make(map[PermissionCode]struct{}, len(codes))}
	for _, code := range codes {
		if _, seen := set.codes[code]; seen {
			continue
		}
		set.codes[code] = struct{}{}
		set.order = append(set.order, code)
	}
	return set
}

// Len returns the number of distinct codes in the set.
func (s PermissionSet) Len() int {
	return len(s.codes)
}

// Codes returns the distinct codes in first-seen order.
func (s PermissionSet) Codes() []PermissionCode {
	out := make([]PermissionCode, len(s.order))
	copy(out, s.order)
	return out
}

// Has reports whether the exact code is present.
func (s PermissionSet) Has(code PermissionCode) bool {
	_, ok := s.codes[code]
	return ok
}

// HasAny reports whether at least one of the supplied codes is present.
// An empty query yields false.
func (s PermissionSet) HasAny(codes ...PermissionCode) bool {
	for _, code := range codes {
		if s.Has(code) {
			return true
		}
	}
	return false
}

// HasAll reports whether every supplied code is present. An empty query is
// vacuously true; callers gating access on "no restriction" must guard for
// the empty case themselves.
func (s PermissionSet) HasAll(codes ...PermissionCode) bool {
	for _, code := range codes {
		if !s.Has(code) {
			return false
		}
	}
	return true
}

// MatchesPattern reports whether any held code matches the pattern. A
// pattern without a wildcard degrades to an exact Has lookup. Every
// non-wildcard character matches literally, so codes containing regex
// metacharacters cannot widen the match.
func (s PermissionSet) MatchesPattern(pattern string) bool {
	if !strings.Contains(pattern, Wildcard) {
		return s.Has(PermissionCode(pattern))
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}

	for code := range s.codes {
		if re.MatchString(string(code)) {
			return true
		}
	}
	return false
}

// ByCategory returns the held codes whose resource segment equals the
// supplied category, preserving first-seen order.
func (s PermissionSet) ByCategory(category string) []PermissionCode {
	prefix := category + ":"
	var out []PermissionCode
	for _, code := range s.order {
		if strings.HasPrefix(string(code), prefix) {
			out = append(out, code)
		}
	}
	return out
}

// Union returns a new set containing the codes of both operands.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make([]PermissionCode, 0, len(s.order)+len(other.order))
	merged = append(merged, s.order...)
	merged = append(merged, other.order...)
	return NewPermissionSet(merged...)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(pattern, Wildcard)
	for i, segment := range segments {
		segments[i] = regexp.QuoteMeta(segment)
	}
	return regexp.Compile("^" + strings.Join(segments, ".*") + "$")
}
