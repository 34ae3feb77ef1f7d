package reactive

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Equality decides whether a candidate next value is "the same" as the
// previous value, in which case the update suppresses notification.
type Equality func(prev, next any) bool

// Identity compares by language identity (==). Values of uncomparable
// dynamic types are never identical.
func Identity() Equality {
	return identityEqual
}

// Shallow compares one level deep: slices, arrays, and maps element-wise by
// identity, pointers by pointee identity, everything else by identity.
func Shallow() Equality {
	return func(prev, next any) bool {
		return shallowEqual(reflect.ValueOf(prev), reflect.ValueOf(next), 1)
	}
}

// ShallowN compares up to depth levels deep before falling back to identity
// at the leaves. ShallowN(0) is Identity; ShallowN(1) is Shallow.
func ShallowN(depth int) Equality {
	return func(prev, next any) bool {
		return shallowEqual(reflect.ValueOf(prev), reflect.ValueOf(next), depth)
	}
}

// Deep compares structurally via reflect.DeepEqual.
func Deep() Equality {
	return reflect.DeepEqual
}

// Comparer builds a strategy on top of go-cmp. The caller is responsible for
// supplying options that make all reachable values comparable (go-cmp panics
// on unexported fields without them).
func Comparer(opts ...cmp.Option) Equality {
	return func(prev, next any) bool {
		return cmp.Equal(prev, next, opts...)
	}
}

// Custom wraps an arbitrary comparison function.
func Custom(fn func(prev, next any) bool) Equality {
	return fn
}

func identityEqual(prev, next any) bool {
	if prev == nil || next == nil {
		return prev == nil && next == nil
	}
	a, b := reflect.ValueOf(prev), reflect.ValueOf(next)
	if a.Type() != b.Type() {
		return false
	}
	if !a.Comparable() {
		return false
	}
	return a.Equal(b)
}

func shallowEqual(a, b reflect.Value, depth int) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	if depth <= 0 {
		return leafEqual(a, b)
	}

	switch a.Kind() {
	case reflect.Slice, reflect.Array:
		if a.Kind() == reflect.Slice && (a.IsNil() != b.IsNil()) {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !shallowEqual(a.Index(i), b.Index(i), depth-1) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.IsNil() != b.IsNil() {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() {
				return false
			}
			if !shallowEqual(iter.Value(), bv, depth-1) {
				return false
			}
		}
		return true
	case reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return shallowEqual(a.Elem(), b.Elem(), depth-1)
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !shallowEqual(a.Field(i), b.Field(i), depth-1) {
				return false
			}
		}
		return true
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return shallowEqual(a.Elem(), b.Elem(), depth)
	default:
		return leafEqual(a, b)
	}
}

func leafEqual(a, b reflect.Value) bool {
	if a.Type() != b.Type() || !a.Comparable() {
		return false
	}
	return a.Equal(b)
}
