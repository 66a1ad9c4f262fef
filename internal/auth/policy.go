// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// EmailPolicy restricts which addresses may register.
type EmailPolicy struct {
	patterns []string
	globs    []glob.Glob
}

// NewEmailPolicy compiles case-insensitive glob patterns such as "*@school.edu".
// An empty pattern list allows every address.
func NewEmailPolicy(patterns []string) (*EmailPolicy, error) {
	p := &EmailPolicy{patterns: patterns}
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_EMAIL_PATTERN").
				With("pattern", pattern).
				Wrap(err)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Allows reports whether email matches at least one pattern.
func (p *EmailPolicy) Allows(email string) bool {
	if p == nil || len(p.globs) == 0 {
		return true
	}
	email = strings.ToLower(email)
	for _, g := range p.globs {
		if g.Match(email) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (p *EmailPolicy) Patterns() []string {
	if p == nil {
		return nil
	}
	return p.patterns
}
