package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxSerializeDepth bounds nesting. Deeper values, including cycles, cannot
// be keyed.
const maxSerializeDepth = 32

var timeType = reflect.TypeOf(time.Time{})

// valueSerializer renders a value into a canonical string. Every value is
// tagged with its dynamic type, so 1 and 1.0 or two named types with the
// same fields render differently. Unexported struct fields are included.
//
// Funcs, chans and unsafe pointers fail with ErrUnkeyable: their identity
// is not their behavior, so no string can stand for them safely.
type valueSerializer struct{}

func (s *valueSerializer) serialize(v any) (string, error) {
	var b strings.Builder
	if err := s.write(&b, reflect.ValueOf(v), 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *valueSerializer) write(b *strings.Builder, rv reflect.Value, depth int) error {
	if !rv.IsValid() {
		b.WriteString("nil")
		return nil
	}
	if depth > maxSerializeDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrUnkeyable, maxSerializeDepth)
	}

	rt := rv.Type()
	b.WriteString(typeName(rt))
	b.WriteByte('(')
	defer b.WriteByte(')')

	switch rv.Kind() {
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		b.WriteString(strconv.FormatComplex(rv.Complex(), 'g', -1, 128))
	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return nil
		}
		return s.write(b, rv.Elem(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			b.WriteString("nil")
			return nil
		}
		return s.writeElems(b, rv, depth)
	case reflect.Array:
		return s.writeElems(b, rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("nil")
			return nil
		}
		return s.writeMap(b, rv, depth)
	case reflect.Struct:
		if rt == timeType && rv.CanInterface() {
			t := rv.Interface().(time.Time)
			b.WriteString(t.Format(time.RFC3339Nano))
			b.WriteByte(' ')
			b.WriteString(t.Location().String())
			return nil
		}
		return s.writeStruct(b, rv, depth)
	default:
		return fmt.Errorf("%w: %s", ErrUnkeyable, rt)
	}
	return nil
}

func (s *valueSerializer) writeElems(b *strings.Builder, rv reflect.Value, depth int) error {
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := s.write(b, rv.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeMap sorts rendered pairs so iteration order does not leak into the
// output.
func (s *valueSerializer) writeMap(b *strings.Builder, rv reflect.Value, depth int) error {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		var pair strings.Builder
		if err := s.write(&pair, iter.Key(), depth+1); err != nil {
			return err
		}
		pair.WriteByte(':')
		if err := s.write(&pair, iter.Value(), depth+1); err != nil {
			return err
		}
		pairs = append(pairs, pair.String())
	}
	sort.Strings(pairs)
	b.WriteString(strings.Join(pairs, ","))
	return nil
}

func (s *valueSerializer) writeStruct(b *strings.Builder, rv reflect.Value, depth int) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(rt.Field(i).Name)
		b.WriteByte(':')
		if err := s.write(b, rv.Field(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// typeName qualifies named types with their package path.
func typeName(rt reflect.Type) string {
	if rt.Name() != "" && rt.PkgPath() != "" {
		return rt.PkgPath() + "." + rt.Name()
	}
	return rt.String()
}
