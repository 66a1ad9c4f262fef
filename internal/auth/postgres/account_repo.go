// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/classgate/classgate/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repository needs, so tests
// can substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Per-kind SQL. Each kind lives in its own table; only the kind-specific
// attribute column differs.
type kindSQL struct {
	insert       string
	selectByID   string
	selectByMail string
	updateHash   string
	deleteByID   string
}

var queries = map[auth.Kind]kindSQL{
	auth.KindStudent: {
		insert: `
			INSERT INTO students (id, email, password_hash, phone, address, class, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		selectByID: `
			SELECT id, email, password_hash, phone, address, class, created_at
			FROM students WHERE id = $1`,
		selectByMail: `
			SELECT id, email, password_hash, phone, address, class, created_at
			FROM students WHERE email = $1`,
		updateHash: `UPDATE students SET password_hash = $2 WHERE id = $1`,
		deleteByID: `DELETE FROM students WHERE id = $1`,
	},
	auth.KindTeacher: {
		insert: `
			INSERT INTO teachers (id, email, password_hash, phone, address, subjects, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		selectByID: `
			SELECT id, email, password_hash, phone, address, subjects, created_at
			FROM teachers WHERE id = $1`,
		selectByMail: `
			SELECT id, email, password_hash, phone, address, subjects, created_at
			FROM teachers WHERE email = $1`,
		updateHash: `UPDATE teachers SET password_hash = $2 WHERE id = $1`,
		deleteByID: `DELETE FROM teachers WHERE id = $1`,
	},
}

// AccountRepository implements auth.AccountRepository for one principal kind.
type AccountRepository struct {
	pool poolIface
	kind auth.Kind
	sql  kindSQL
}

// NewAccountRepository creates a repository for kind.
func NewAccountRepository(pool poolIface, kind auth.Kind) (*AccountRepository, error) {
	q, ok := queries[kind]
	if !ok {
		return nil, oops.Code("ACCOUNT_INVALID_KIND").With("kind", uint8(kind)).Errorf("unsupported principal kind")
	}
	return &AccountRepository{pool: pool, kind: kind, sql: q}, nil
}

// NewStudentRepository creates the repository backing the students table.
func NewStudentRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool, kind: auth.KindStudent, sql: queries[auth.KindStudent]}
}

// NewTeacherRepository creates the repository backing the teachers table.
func NewTeacherRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool, kind: auth.KindTeacher, sql: queries[auth.KindTeacher]}
}

// Create stores a new account. Uniqueness of the email is enforced by the
// table's UNIQUE constraint.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	if account.Kind != r.kind {
		return oops.Code("ACCOUNT_KIND_MISMATCH").
			With("repository_kind", r.kind.String()).
			With("account_kind", account.Kind.String()).
			Errorf("account kind does not match repository")
	}

	_, err := r.pool.Exec(ctx, r.sql.insert,
		account.ID.String(),
		account.Email,
		account.PasswordHash,
		account.Phone,
		account.Address,
		r.attribute(account),
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("kind", r.kind.String()).
				With("email", account.Email).
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrDuplicateIdentity)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("kind", r.kind.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	account, err := r.scan(r.pool.QueryRow(ctx, r.sql.selectByID, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("kind", r.kind.String()).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by its exact email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	account, err := r.scan(r.pool.QueryRow(ctx, r.sql.selectByMail, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("kind", r.kind.String()).
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, r.sql.updateHash, id.String(), passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.pool.Exec(ctx, r.sql.deleteByID, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *AccountRepository) attribute(account *auth.Account) any {
	if r.kind == auth.KindTeacher {
		return account.Subjects
	}
	return account.Class
}

func (r *AccountRepository) scan(row pgx.Row) (*auth.Account, error) {
	var (
		idStr   string
		account = auth.Account{Kind: r.kind}
		attr    any
	)
	if r.kind == auth.KindTeacher {
		attr = &account.Subjects
	} else {
		attr = &account.Class
	}

	if err := row.Scan(
		&idStr,
		&account.Email,
		&account.PasswordHash,
		&account.Phone,
		&account.Address,
		attr,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	account.ID = id
	return &account, nil
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
