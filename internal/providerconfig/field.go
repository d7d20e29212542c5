package providerconfig

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type fieldState uint8

const (
	stateUnset fieldState = iota
	stateNull
	stateSet
)

// Field is an attribute value that is either unset (never configured),
// null (explicitly absent) or set. The zero value is unset.
type Field[T any] struct {
	state fieldState
	value T
}

// Of returns a field set to v.
func Of[T any](v T) Field[T] {
	return Field[T]{state: stateSet, value: v}
}

// Null returns an explicitly absent field.
func Null[T any]() Field[T] {
	return Field[T]{state: stateNull}
}

// IsUnset reports whether the field was never configured.
func (f Field[T]) IsUnset() bool { return f.state == stateUnset }

// IsNull reports whether the field was explicitly cleared.
func (f Field[T]) IsNull() bool { return f.state == stateNull }

// IsSet reports whether the field holds a value.
func (f Field[T]) IsSet() bool { return f.state == stateSet }

// Get returns the value and whether the field holds one.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == stateSet
}

// Or returns the value, or def when the field is unset or null.
func (f Field[T]) Or(def T) T {
	if f.state == stateSet {
		return f.value
	}
	return def
}

// Set stores v.
func (f *Field[T]) Set(v T) {
	f.state = stateSet
	f.value = v
}

// Clear marks the field as explicitly absent.
func (f *Field[T]) Clear() {
	var zero T
	f.state = stateNull
	f.value = zero
}

func (f Field[T]) String() string {
	switch f.state {
	case stateSet:
		return fmt.Sprint(f.value)
	case stateNull:
		return "<nil>"
	default:
		return "<unset>"
	}
}

func (f *Field[T]) defaultTo(v T) {
	if f.state == stateUnset {
		f.Set(v)
	}
}

func (f *Field[T]) defaultNull() {
	if f.state == stateUnset {
		f.Clear()
	}
}

// clone copies slice values so merged layers never share backing arrays.
func (f Field[T]) clone() Field[T] {
	if s, ok := any(f.value).([]string); ok && s != nil {
		f.value = any(slices.Clone(s)).(T)
	}
	return f
}

// attribute is the type-erased view of a Field used by the attribute table.
type attribute interface {
	IsUnset() bool
	IsNull() bool
	assign(v any) error
	mergeFrom(other attribute)
	display() any
}

func (f *Field[T]) assign(v any) error {
	if v == nil {
		f.Clear()
		return nil
	}
	if typed, ok := v.(T); ok {
		f.Set(typed)
		*f = f.clone()
		return nil
	}

	var out T
	if err := convert(&out, v); err != nil {
		return err
	}
	f.Set(out)
	return nil
}

func (f *Field[T]) mergeFrom(other attribute) {
	o, ok := other.(*Field[T])
	if !ok || o.IsUnset() {
		return
	}
	*f = o.clone()
}

func (f *Field[T]) display() any {
	switch f.state {
	case stateSet:
		if d, ok := any(f.value).(time.Duration); ok {
			return d.String()
		}
		return f.value
	default:
		return nil
	}
}

// convert coerces loosely typed document values into the field's type.
func convert(target any, v any) error {
	switch out := target.(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %v", ErrInvalidAttribute, v)
		}
		*out = s
	case *bool:
		switch b := v.(type) {
		case bool:
			*out = b
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return fmt.Errorf("%w: expected bool, got %q", ErrInvalidAttribute, b)
			}
			*out = parsed
		default:
			return fmt.Errorf("%w: expected bool, got %v", ErrInvalidAttribute, v)
		}
	case *time.Duration:
		d, err := toDuration(v)
		if err != nil {
			return err
		}
		*out = d
	case *[]string:
		list, err := toStringList(v)
		if err != nil {
			return err
		}
		*out = list
	default:
		return fmt.Errorf("%w: unsupported attribute type %T", ErrInvalidAttribute, target)
	}
	return nil
}

// toDuration accepts integer seconds or a Go duration string.
func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case uint64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		trimmed := strings.TrimSpace(d)
		if secs, err := strconv.Atoi(trimmed); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		parsed, err := time.ParseDuration(trimmed)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid duration %q", ErrInvalidAttribute, d)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: expected duration, got %v", ErrInvalidAttribute, v)
	}
}

// toStringList accepts a single string or a list of strings.
func toStringList(v any) ([]string, error) {
	switch list := v.(type) {
	case string:
		return []string{list}, nil
	case []string:
		return slices.Clone(list), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected list of strings, got %v", ErrInvalidAttribute, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected string or list, got %v", ErrInvalidAttribute, v)
	}
}
