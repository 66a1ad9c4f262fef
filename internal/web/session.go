// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/classgate/classgate/internal/auth"
)

// CookieName is the session cookie.
const CookieName = "classgate_session"

type tokenKey struct{}

// tokenFrom returns the session token attached by withSession.
func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// withSession makes sure every request carries a session token, issuing a
// fresh cookie on first contact or when the presented one is malformed.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(CookieName); err == nil && auth.ValidSessionToken(c.Value) {
			token = c.Value
		} else {
			token, err = auth.GenerateSessionToken()
			if err != nil {
				s.logger.ErrorContext(r.Context(), "failed to issue session token", "error", err)
				writeText(w, http.StatusInternalServerError, "Internal server error.")
				return
			}
			setSessionCookie(w, r, token)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
	})
}

// rotateSession swaps the request's token for a new one once the session is
// authenticated. A failed rotation keeps the current token.
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request) {
	next, err := s.auth.RotateSession(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.logger.WarnContext(r.Context(), "session rotation failed, keeping token", "error", err)
		return
	}
	setSessionCookie(w, r, next)
}

func secureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

// putSessionCookie sets the session cookie, replacing one already queued on
// this response so clients never see two conflicting values.
func putSessionCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, CookieName+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	putSessionCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	putSessionCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}
