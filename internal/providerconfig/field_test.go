package providerconfig

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestFieldStates(t *testing.T) {
	t.Parallel()

	var f Field[string]
	if !f.IsUnset() || f.IsNull() || f.IsSet() {
		t.Fatalf("zero value should be unset, got %s", f)
	}
	if got := f.Or("fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	f.Clear()
	if !f.IsNull() {
		t.Fatalf("expected null after Clear, got %s", f)
	}
	if _, ok := f.Get(); ok {
		t.Fatal("null field must not report a value")
	}

	f.Set("")
	if v, ok := f.Get(); !ok || v != "" {
		t.Fatalf("expected explicit empty string, got %q (%v)", v, ok)
	}

	if got := Of(3).Or(0); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if !Null[bool]().IsNull() {
		t.Fatal("Null should build a null field")
	}
}

func TestFieldDefaultsOnlyTouchUnset(t *testing.T) {
	t.Parallel()

	explicit := Of("m5.large")
	explicit.defaultTo("m3.medium")
	if got := explicit.Or(""); got != "m5.large" {
		t.Fatalf("explicit value overwritten: %q", got)
	}

	cleared := Null[string]()
	cleared.defaultTo("m3.medium")
	if !cleared.IsNull() {
		t.Fatalf("null value overwritten: %s", cleared)
	}

	var unset Field[string]
	unset.defaultNull()
	if !unset.IsNull() {
		t.Fatalf("expected null, got %s", unset)
	}
}

func TestFieldAssignConversions(t *testing.T) {
	t.Parallel()

	t.Run("Duration", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			in   any
			want time.Duration
		}{
			{in: 30, want: 30 * time.Second},
			{in: int64(5), want: 5 * time.Second},
			{in: 1.5, want: 1500 * time.Millisecond},
			{in: "45", want: 45 * time.Second},
			{in: "2m", want: 2 * time.Minute},
			{in: 10 * time.Second, want: 10 * time.Second},
		}
		for _, tc := range tests {
			var f Field[time.Duration]
			if err := f.assign(tc.in); err != nil {
				t.Fatalf("assign(%v): %v", tc.in, err)
			}
			if got := f.Or(0); got != tc.want {
				t.Fatalf("assign(%v): expected %s, got %s", tc.in, tc.want, got)
			}
		}
	})

	t.Run("Bool", func(t *testing.T) {
		t.Parallel()

		var f Field[bool]
		if err := f.assign("true"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.Or(false) {
			t.Fatal("expected true")
		}
		if err := f.assign(1.5); !errors.Is(err, ErrInvalidAttribute) {
			t.Fatalf("expected ErrInvalidAttribute, got %v", err)
		}
	})

	t.Run("StringList", func(t *testing.T) {
		t.Parallel()

		var f Field[[]string]
		if err := f.assign("sg-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Or(nil); !slices.Equal(got, []string{"sg-1"}) {
			t.Fatalf("expected single group, got %v", got)
		}
		if err := f.assign([]any{"sg-1", "sg-2"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Or(nil); !slices.Equal(got, []string{"sg-1", "sg-2"}) {
			t.Fatalf("expected two groups, got %v", got)
		}
		if err := f.assign([]any{"sg-1", 2}); !errors.Is(err, ErrInvalidAttribute) {
			t.Fatalf("expected ErrInvalidAttribute, got %v", err)
		}
	})

	t.Run("NilClears", func(t *testing.T) {
		t.Parallel()

		f := Of("ami-1")
		if err := f.assign(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.IsNull() {
			t.Fatalf("expected null, got %s", f)
		}
	})

	t.Run("WrongType", func(t *testing.T) {
		t.Parallel()

		var f Field[string]
		if err := f.assign(42); !errors.Is(err, ErrInvalidAttribute) {
			t.Fatalf("expected ErrInvalidAttribute, got %v", err)
		}
		if !f.IsUnset() {
			t.Fatalf("failed assign must not change the field, got %s", f)
		}
	})
}

func TestFieldMergeCopiesSlices(t *testing.T) {
	t.Parallel()

	src := Of([]string{"sg-1"})
	var dst Field[[]string]
	dst.mergeFrom(&src)

	got, _ := dst.Get()
	got[0] = "mutated"
	if v, _ := src.Get(); v[0] != "sg-1" {
		t.Fatalf("merge shared backing array: %v", v)
	}
}
