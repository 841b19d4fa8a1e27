package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey("", "movement.velocity", "entity-1", 0)
	k2 := DeriveKey("", "movement.velocity", "entity-1", 0)

	assert.Equal(t, k1, k2, "DeriveKey must be deterministic")
	assert.Len(t, string(k1), 64, "SHA-256 hex is 64 characters")
}

func TestDeriveKey_ChangesWithInput(t *testing.T) {
	base := DeriveKey("", "site-a", nil, 0)

	assert.NotEqual(t, base, DeriveKey("", "site-b", nil, 0), "different site")
	assert.NotEqual(t, base, DeriveKey("", "site-a", "x", 0), "different discriminator")
	assert.NotEqual(t, base, DeriveKey("", "site-a", nil, 1), "different occurrence")
	assert.NotEqual(t, base, DeriveKey("scope", "site-a", nil, 0), "different prefix")
}

func TestDeriveKey_FieldBoundaries(t *testing.T) {
	// Shifting text between site and discriminator must not collide.
	k1 := DeriveKey("", "ab", "c", 0)
	k2 := DeriveKey("", "a", "bc", 0)
	assert.NotEqual(t, k1, k2)
}

func TestCanonical_TypeTags(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{"int vs string", 1, "1"},
		{"bool vs string", true, "true"},
		{"int vs uint", int(1), uint(1)},
		{"nil vs empty string", nil, ""},
		{"float vs int", 1.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, canonical(tt.a), canonical(tt.b))
		})
	}
}

func TestCanonical_IntegerWidthsAgree(t *testing.T) {
	assert.Equal(t, canonical(int(7)), canonical(int64(7)))
	assert.Equal(t, canonical(int8(7)), canonical(int32(7)))
	assert.Equal(t, canonical(uint16(7)), canonical(uint64(7)))
}

func TestCanonical_NFCNormalization(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	assert.Equal(t, canonical(composed), canonical(decomposed),
		"canonically equivalent strings must produce the same discriminator")
	assert.Equal(t,
		DeriveKey("", Site(composed), nil, 0),
		DeriveKey("", Site(decomposed), nil, 0))
}

func TestCanonical_PointerIdentity(t *testing.T) {
	type thing struct{ n int }
	a := &thing{n: 1}
	b := &thing{n: 1}

	assert.Equal(t, canonical(a), canonical(a))
	assert.NotEqual(t, canonical(a), canonical(b), "pointers compare by identity, not contents")
}

type label string

func (l label) String() string { return "label" }

type cell struct {
	Zone string
	Name string
}

func TestCanonical_NamedTypes(t *testing.T) {
	assert.NotEqual(t, canonical(label("x")), canonical("x"), "named type is part of the form")
	assert.NotEqual(t, canonical(label("x")), canonical(label("y")), "String() is not used")
}

func TestCanonical_CompositeBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{"struct fields", cell{Zone: "a b"}, cell{Zone: "a", Name: "b "}},
		{"slice elements", []string{"x y"}, []string{"x", "y"}},
		{"nested slices", [][]int{{1, 2}, {3}}, [][]int{{1}, {2, 3}}},
		{"array vs slice", [2]int{1, 2}, []int{1, 2}},
		{"nil vs empty slice", []int(nil), []int{}},
		{"any elements", []any{1, "1"}, []any{"1", 1}},
		{"anonymous structs", struct{ A, B string }{"x", ""}, struct{ A, C string }{"x", ""}},
		{"separator in string", []string{"a;s1:b"}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, canonical(tt.a), canonical(tt.b))
		})
	}
}

func TestCanonical_CompositeEquality(t *testing.T) {
	assert.Equal(t, canonical(cell{"a", "b"}), canonical(cell{"a", "b"}))
	assert.Equal(t, canonical([]string{"x", "y"}), canonical([]string{"x", "y"}))
	assert.Equal(t, canonical([]string{"caf\u00e9"}), canonical([]string{"cafe\u0301"}))
}

func TestCanonical_SelfReferentialSlice(t *testing.T) {
	s := []any{nil}
	s[0] = s

	assert.NotPanics(t, func() { canonical(s) })
	assert.Equal(t, canonical(s), canonical(s))
}

func TestNewSite(t *testing.T) {
	s1 := NewSite("systems/move.go", 10, 4, "hook.UseState(rt, ...)")
	s2 := NewSite("systems/move.go", 10, 4, "hook.UseState(rt, ...)")
	s3 := NewSite("systems/move.go", 11, 4, "hook.UseState(rt, ...)")
	s4 := NewSite("systems/spawn.go", 10, 4, "hook.UseState(rt, ...)")

	assert.Equal(t, s1, s2)
	assert.NotEqual(t, s1, s3, "different line")
	assert.NotEqual(t, s1, s4, "different file")
	assert.Len(t, string(s1), len("site:")+32)
}

func TestKeyShort(t *testing.T) {
	assert.Equal(t, "abc", Key("abc").Short())
	assert.Equal(t, "0123456789ab", Key("0123456789abcdef").Short())
}
