package journal

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ID is an opaque, caller-assigned identifier. Uniqueness is the caller's
// responsibility: this package only propagates ids, it never invents or
// deduplicates them.
type ID string

// String returns the id as a plain string.
func (id ID) String() string {
	return string(id)
}

// Identified is the identifier contract every input and every transform
// result must satisfy.
type Identified interface {
	Identifier() ID
}

// Ident is an embeddable implementation of Identified.
//
//	type Order struct {
//		journal.Ident
//		Total int `json:"total"`
//	}
type Ident struct {
	ID ID `json:"id"`
}

// Identifier implements Identified.
func (i Ident) Identifier() ID {
	return i.ID
}

// ErrMissingIdentifier reports a value that violates the identifier contract.
var ErrMissingIdentifier = errors.New("journal: value has no identifier")

// Validate returns ErrMissingIdentifier if x is nil or carries an empty id.
func Validate(x Identified) error {
	if x == nil || isNilPointer(x) {
		return ErrMissingIdentifier
	}
	if x.Identifier() == "" {
		return ErrMissingIdentifier
	}
	return nil
}

func isNilPointer(x any) bool {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ChildID derives the composite id "parent.n". Chained runs use it to key
// the inputs they build from a previous journal's outputs.
func ChildID(parent ID, n int) ID {
	return ID(fmt.Sprintf("%s.%d", parent, n))
}

// ParseID splits a composite id of the form "base.n". When id has no
// numeric suffix, base is the whole id and hasIndex is false.
func ParseID(id ID) (base string, n int, hasIndex bool) {
	s := string(id)
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return s, 0, false
	}
	suffix := s[dot+1:]
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return s, 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return s, 0, false
	}
	return s[:dot], n, true
}

// MinShortIDLength is the shortest prefix ShortIDs will produce.
const MinShortIDLength = 3

// ShortIDs returns a function shortening each id to the shortest prefix of
// its base that is unique among ids (never below MinShortIDLength), keeping
// any ".n" suffix. It fails if ids contains duplicates or empty ids.
func ShortIDs(ids []ID) (func(ID) string, error) {
	seen := make(map[ID]bool, len(ids))
	bases := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, ErrMissingIdentifier
		}
		if seen[id] {
			return nil, fmt.Errorf("journal: duplicate id %q", id)
		}
		seen[id] = true
		base, _, _ := ParseID(id)
		bases[base] = true
	}

	distinct := make([]string, 0, len(bases))
	for b := range bases {
		distinct = append(distinct, b)
	}
	prefixLen := max(minimalUniquePrefix(distinct), MinShortIDLength)

	return func(id ID) string {
		base, n, hasIndex := ParseID(id)
		short := base
		if len(short) > prefixLen {
			short = short[:prefixLen]
		}
		if hasIndex {
			return fmt.Sprintf("%s.%d", short, n)
		}
		return short
	}, nil
}

// minimalUniquePrefix returns the length of the longest prefix needed to
// tell any two of the given strings apart.
func minimalUniquePrefix(ss []string) int {
	longest := 0
	for i, s := range ss {
		need := 1
		for j, other := range ss {
			if i == j {
				continue
			}
			need = max(need, commonPrefixLen(s, other)+1)
		}
		longest = max(longest, min(need, len(s)))
	}
	return longest
}

func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
