package field

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Equal reports whether two field values are materially equal.
//
// Scalars compare by value, with strings NFC-normalized first. Lists compare
// as sets: each element is serialized to canonical JSON, the serializations
// are sorted, and the sorted forms are compared. Reordering a tag list is
// therefore never a material edit. Values of different kinds are never equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && norm.NFC.String(string(av)) == norm.NFC.String(string(bv))
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		return ok && listEqual(av, bv)
	default:
		return false
	}
}

// listEqual compares lists order-insensitively via canonical serialization.
// Elements that fail to serialize (which Equal's callers should have ruled
// out already) make the lists unequal rather than panicking.
func listEqual(a, b List) bool {
	if len(a) != len(b) {
		return false
	}
	as, ok := canonicalForms(a)
	if !ok {
		return false
	}
	bs, ok := canonicalForms(b)
	if !ok {
		return false
	}
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

func canonicalForms(list List) ([]string, bool) {
	out := make([]string, len(list))
	for i, elem := range list {
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, false
		}
		out[i] = string(b)
	}
	return out, true
}

// Empty reports whether a value carries no content: a missing field, a
// blank or whitespace-only string, or a zero-length list. Int and Bool are
// never empty; a zero is still a deliberate value.
func Empty(v Value) bool {
	switch val := v.(type) {
	case nil:
		return true
	case String:
		return strings.TrimSpace(string(val)) == ""
	case List:
		return len(val) == 0
	default:
		return false
	}
}

// Dirty reports whether the working copy differs materially from the
// persisted snapshot. A field missing from one side is compared against nil,
// and empty-vs-empty never counts as dirty: a content-free new record must
// not schedule saves.
func Dirty(working, persisted Map) bool {
	seen := make(map[string]struct{}, len(working)+len(persisted))
	for name := range working {
		seen[name] = struct{}{}
	}
	for name := range persisted {
		seen[name] = struct{}{}
	}

	for name := range seen {
		w, p := working[name], persisted[name]
		if Empty(w) && Empty(p) {
			continue
		}
		if w == nil || p == nil {
			return true
		}
		if !Equal(w, p) {
			return true
		}
	}
	return false
}
