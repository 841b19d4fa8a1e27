package hook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for derived identities.
// The version suffix leaves room for a future algorithm change.
const (
	DomainKey  = "topo/hook/v1"
	DomainSite = "topo/site/v1"
)

// Key identifies one storage slot inside a system's Registry.
type Key string

// Short returns an abbreviated form for logs.
func (k Key) Short() string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}

// Site is a call-site token, stable across ticks for one textual call
// location. The zero value marks an unannotated call.
type Site string

// NewSite derives a token from a source position and the call expression
// text, the way a code generator annotating call sites would.
func NewSite(file string, line, column int, expr string) Site {
	data := fmt.Sprintf("%s::%d::%d::%s", norm.NFC.String(file), line, column, norm.NFC.String(expr))
	return Site("site:" + hashWithDomain(DomainSite, []byte(data))[:32])
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DeriveKey computes the storage key for a hook call.
//
// prefix is the key of the enclosing nested scope ("" at system level).
// The fields are joined with 0x00 separators so that no field boundary can
// be shifted to produce a collision.
func DeriveKey(prefix Key, site Site, discriminator any, occurrence int) Key {
	buf := make([]byte, 0, 128)
	buf = append(buf, prefix...)
	buf = append(buf, 0x00)
	buf = append(buf, norm.NFC.String(string(site))...)
	buf = append(buf, 0x00)
	buf = append(buf, canonical(discriminator)...)
	buf = append(buf, 0x00)
	buf = strconv.AppendInt(buf, int64(occurrence), 10)
	return Key(hashWithDomain(DomainKey, buf))
}

// canonical produces a typed textual form of a discriminator.
//
// Equal values give equal forms and distinct values give distinct forms:
// every scalar carries a kind tag and a terminator, strings are length
// prefixed, and composites list their fields or elements one by one.
// Pointers, maps, channels and funcs compare by identity. Integers of
// different widths share a form, so int(7) and int64(7) select the same
// slot.
func canonical(v any) string {
	return string(appendCanonical(nil, reflect.ValueOf(v), 0))
}

// maxDepth bounds recursion through interfaces, which is the only way a
// slice can contain itself. Deeper slices fall back to identity.
const maxDepth = 32

func appendCanonical(buf []byte, rv reflect.Value, depth int) []byte {
	if !rv.IsValid() {
		return append(buf, "n;"...)
	}
	t := rv.Type()
	if t.PkgPath() != "" && t.Kind() != reflect.Struct {
		// Named types do not collide with their underlying type.
		buf = append(buf, 't')
		buf = appendString(buf, t.PkgPath()+"."+t.Name())
	}

	switch rv.Kind() {
	case reflect.Bool:
		buf = append(buf, "b:"...)
		buf = strconv.AppendBool(buf, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf = append(buf, "i:"...)
		buf = strconv.AppendInt(buf, rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf = append(buf, "u:"...)
		buf = strconv.AppendUint(buf, rv.Uint(), 10)
	case reflect.Float32:
		buf = append(buf, "f:"...)
		buf = strconv.AppendFloat(buf, rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		buf = append(buf, "f:"...)
		buf = strconv.AppendFloat(buf, rv.Float(), 'g', -1, 64)
	case reflect.Complex64, reflect.Complex128:
		buf = append(buf, "c:"...)
		buf = append(buf, strconv.FormatComplex(rv.Complex(), 'g', -1, 128)...)
	case reflect.String:
		buf = append(buf, 's')
		return appendString(buf, norm.NFC.String(rv.String()))
	case reflect.Interface:
		if rv.IsNil() {
			return append(buf, "n;"...)
		}
		return appendCanonical(buf, rv.Elem(), depth+1)
	case reflect.Struct:
		buf = append(buf, 'S')
		buf = appendString(buf, typeName(t))
		buf = strconv.AppendInt(buf, int64(t.NumField()), 10)
		buf = append(buf, '{')
		for i := 0; i < t.NumField(); i++ {
			buf = appendString(buf, t.Field(i).Name)
			buf = appendCanonical(buf, rv.Field(i), depth+1)
		}
		return append(buf, '}')
	case reflect.Array:
		return appendElems(buf, 'A', rv, depth)
	case reflect.Slice:
		if rv.IsNil() {
			return append(buf, "n;"...)
		}
		if depth > maxDepth {
			return appendIdentity(buf, rv)
		}
		return appendElems(buf, 'L', rv, depth)
	default:
		// Pointer, Map, Chan, Func, UnsafePointer.
		return appendIdentity(buf, rv)
	}
	return append(buf, ';')
}

func appendElems(buf []byte, tag byte, rv reflect.Value, depth int) []byte {
	buf = append(buf, tag)
	buf = strconv.AppendInt(buf, int64(rv.Len()), 10)
	buf = append(buf, '[')
	for i := 0; i < rv.Len(); i++ {
		buf = appendCanonical(buf, rv.Index(i), depth+1)
	}
	return append(buf, ']')
}

func appendIdentity(buf []byte, rv reflect.Value) []byte {
	buf = append(buf, 'r')
	buf = appendString(buf, rv.Type().String())
	buf = strconv.AppendUint(buf, uint64(rv.Pointer()), 16)
	return append(buf, ';')
}

// appendString writes s as <len>:<bytes>.
func appendString(buf []byte, s string) []byte {
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':')
	return append(buf, s...)
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	// Anonymous struct: the literal type spells out its fields.
	return t.String()
}
