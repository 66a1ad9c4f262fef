// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"github.com/samber/oops"
)

// Kind identifies the principal kind an account belongs to.
type Kind uint8

// Principal kinds. The zero value is invalid so that an unset Kind is never
// mistaken for a student.
const (
	KindStudent Kind = iota + 1
	KindTeacher
)

// Kinds lists every principal kind in resolution order.
var Kinds = []Kind{KindStudent, KindTeacher}

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindStudent:
		return "student"
	case KindTeacher:
		return "teacher"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k == KindStudent || k == KindTeacher
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "student":
		return KindStudent, nil
	case "teacher":
		return KindTeacher, nil
	default:
		return 0, oops.Code("AUTH_INVALID_KIND").With("kind", s).Errorf("unknown principal kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, oops.Code("AUTH_INVALID_KIND").With("kind", uint8(k)).Errorf("cannot marshal invalid kind")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
