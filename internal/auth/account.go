// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Account is a registered student or teacher.
type Account struct {
	ID           ulid.ULID
	Kind         Kind
	Email        string
	PasswordHash string
	Profile
	CreatedAt time.Time
}

// Profile holds the contact details and the kind-specific attribute of an
// account. Class is set for students only, Subjects for teachers only.
type Profile struct {
	Phone    string
	Address  string
	Class    string
	Subjects []string
}

// NewAccount creates a validated Account with a fresh ID.
func NewAccount(kind Kind, email, passwordHash string, profile Profile) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, invalid("password", "password hash cannot be empty")
	}
	if err := profile.Validate(kind); err != nil {
		return nil, err
	}

	return &Account{
		ID:           ulid.Make(),
		Kind:         kind,
		Email:        email,
		PasswordHash: passwordHash,
		Profile:      profile,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Validate checks that the profile is complete for the given kind.
func (p Profile) Validate(kind Kind) error {
	if strings.TrimSpace(p.Phone) == "" {
		return invalid("phone", "phone is required")
	}
	if strings.TrimSpace(p.Address) == "" {
		return invalid("address", "address is required")
	}

	switch kind {
	case KindStudent:
		if strings.TrimSpace(p.Class) == "" {
			return invalid("class", "class is required")
		}
		if len(p.Subjects) > 0 {
			return invalid("subjects", "students do not have subjects")
		}
	case KindTeacher:
		if len(p.Subjects) == 0 {
			return invalid("subjects", "at least one subject is required")
		}
		if slices.ContainsFunc(p.Subjects, func(s string) bool { return strings.TrimSpace(s) == "" }) {
			return invalid("subjects", "subject names cannot be blank")
		}
		if p.Class != "" {
			return invalid("class", "teachers do not have a class")
		}
	default:
		return invalid("kind", "unknown principal kind")
	}
	return nil
}

// ValidateEmail checks that email is a bare address such as "a@x.com".
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "email address is not valid")
	}
	return nil
}

// ParseSubjects splits a comma-separated subject list, trimming whitespace
// and dropping empty entries.
func ParseSubjects(csv string) []string {
	var subjects []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	return subjects
}

// Registration is the input to Service.Register.
type Registration struct {
	Kind            Kind
	Email           string
	Password        string
	ConfirmPassword string
	Profile
}

// Validate checks the registration before any secret is hashed.
func (r Registration) Validate() error {
	if r.Password != r.ConfirmPassword {
		return invalid("confirmPassword", "Passwords do not match. Please try again.")
	}
	if strings.TrimSpace(r.Password) == "" {
		return invalid("password", "password cannot be blank")
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	return r.Profile.Validate(r.Kind)
}

// AccountRepository manages account persistence for a single principal kind.
type AccountRepository interface {
	// Create stores a new account.
	// Returns ErrDuplicateIdentity if the email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by its exact email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Delete removes an account. Deleting a missing account returns ErrNotFound.
	Delete(ctx context.Context, id ulid.ULID) error
}
