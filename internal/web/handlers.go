// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/classgate/classgate/internal/auth"
	"github.com/classgate/classgate/pkg/errutil"
)

func title(kind auth.Kind, suffix string) string {
	name := kind.String()
	return strings.ToUpper(name[:1]) + name[1:] + " " + suffix
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageHome, pageData{Title: "Home"})
}

func (s *Server) handleSignupPage(kind auth.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, pageSignup, pageData{Title: title(kind, "Signup"), Kind: kind.String()})
	}
}

func (s *Server) handleSignup(kind auth.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.parseForm(w, r) {
			return
		}
		reg := auth.Registration{
			Kind:            kind,
			Email:           strings.TrimSpace(r.PostFormValue("email")),
			Password:        r.PostFormValue("password"),
			ConfirmPassword: r.PostFormValue("confirmPassword"),
			Profile: auth.Profile{
				Phone:   strings.TrimSpace(r.PostFormValue("phone")),
				Address: strings.TrimSpace(r.PostFormValue("address")),
			},
		}
		switch kind {
		case auth.KindStudent:
			reg.Class = strings.TrimSpace(r.PostFormValue("class"))
		case auth.KindTeacher:
			reg.Subjects = auth.ParseSubjects(r.PostFormValue("subjects"))
		}

		if _, err := s.auth.Register(r.Context(), tokenFrom(r.Context()), reg); err != nil {
			status, msg := s.failure(r, opSignup, err)
			s.render(w, r, status, pageSignup, pageData{
				Title: title(kind, "Signup"),
				Kind:  kind.String(),
				Error: msg,
				Form:  echo(r, "email", "phone", "address", "class", "subjects"),
			})
			return
		}
		http.Redirect(w, r, "/verify-otp", http.StatusSeeOther)
	}
}

func (s *Server) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	pending, err := s.auth.HasPendingChallenge(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.logger.WarnContext(r.Context(), "pending challenge lookup failed", "error", err)
	}
	s.render(w, r, http.StatusOK, pageVerify, pageData{Title: "Verify OTP", Pending: pending})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	identity, err := s.auth.VerifyOTP(r.Context(), tokenFrom(r.Context()), r.PostFormValue("otp"))
	if err != nil {
		status, msg := s.failure(r, opVerify, err)
		s.render(w, r, status, pageVerify, pageData{Title: "Verify OTP", Error: msg, Pending: errors.Is(err, auth.ErrChallengeMismatch)})
		return
	}
	s.rotateSession(w, r)
	http.Redirect(w, r, "/"+identity.Kind.String()+"-dashboard", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(kind auth.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, pageLogin, pageData{Title: title(kind, "Login"), Kind: kind.String()})
	}
}

func (s *Server) handleLogin(kind auth.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.parseForm(w, r) {
			return
		}
		email := strings.TrimSpace(r.PostFormValue("email"))
		identity, err := s.auth.Login(r.Context(), tokenFrom(r.Context()), kind, email, r.PostFormValue("password"))
		if err != nil {
			status, msg := s.failure(r, opLogin, err)
			s.render(w, r, status, pageLogin, pageData{
				Title: title(kind, "Login"),
				Kind:  kind.String(),
				Error: msg,
				Form:  map[string]string{"email": email},
			})
			return
		}
		s.rotateSession(w, r)
		http.Redirect(w, r, "/"+identity.Kind.String()+"-dashboard", http.StatusSeeOther)
	}
}

// handleDashboard is the access guard: only a session authenticated as kind
// gets through, everyone else goes to that kind's login page.
func (s *Server) handleDashboard(kind auth.Kind) http.HandlerFunc {
	loginPath := "/" + kind.String() + "-login"
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.auth.Authorize(r.Context(), tokenFrom(r.Context()), kind)
		if !ok {
			s.logger.InfoContext(r.Context(), "dashboard access denied, redirecting to login", "kind", kind.String())
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}

		account, err := s.auth.Profile(r.Context(), identity)
		if errors.Is(err, auth.ErrAccountNotFound) {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		if err != nil {
			errutil.LogErrorContext(r.Context(), s.logger, "dashboard profile load failed", err)
			writeText(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		s.render(w, r, http.StatusOK, pageDashboard, pageData{
			Title:   title(kind, "Dashboard"),
			Kind:    kind.String(),
			Account: account,
		})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		status, msg := s.failure(r, opLogout, err)
		writeText(w, status, msg)
		return
	}
	clearSessionCookie(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed form submission.")
		return false
	}
	return true
}

// failure classifies err and logs it: server-side faults at error level,
// user-correctable ones at info.
func (s *Server) failure(r *http.Request, op operation, err error) (int, string) {
	status, msg := describe(op, err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), s.logger, string(op)+" failed", err)
	} else {
		s.logger.InfoContext(r.Context(), string(op)+" rejected", "status", status, "reason", msg)
	}
	return status, msg
}

// echo copies non-secret form fields back into a re-rendered form.
func echo(r *http.Request, fields ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f] = r.PostFormValue(f)
	}
	return out
}
