// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

//go:build integration

package signin_test

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

func visit(c *http.Client, path string) (*http.Response, string) {
	resp, err := c.Get(env.site.URL + path)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func submit(c *http.Client, path string, form url.Values) (*http.Response, string) {
	resp, err := c.PostForm(env.site.URL+path, form)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(body)
}

func uniqueEmail(prefix string) string {
	return prefix + "-" + strings.ToLower(ulid.Make().String()) + "@school.example"
}

func studentForm(email string) url.Values {
	return url.Values{
		"email":           {email},
		"password":        {"s3cret"},
		"confirmPassword": {"s3cret"},
		"phone":           {"555-0100"},
		"address":         {"1 School Rd"},
		"class":           {"10A"},
	}
}

var _ = Describe("Student sign-in", func() {
	var (
		browser *http.Client
		email   string
	)

	BeforeEach(func() {
		browser = newBrowser()
		email = uniqueEmail("ada")
	})

	It("registers, verifies the passcode and reaches the dashboard", func() {
		resp, _ := submit(browser, "/student-signup", studentForm(email))
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/verify-otp"))

		code, ok := env.notifier.LastCode(email)
		Expect(ok).To(BeTrue())

		resp, _ = submit(browser, "/verify-otp", url.Values{"otp": {code}})
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/student-dashboard"))

		resp, body := visit(browser, "/student-dashboard")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring(email))
		Expect(body).To(ContainSubstring("10A"))
	})

	It("rejects a wrong passcode and keeps the challenge", func() {
		resp, _ := submit(browser, "/student-signup", studentForm(email))
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

		resp, _ = submit(browser, "/verify-otp", url.Values{"otp": {"000000"}})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		code, ok := env.notifier.LastCode(email)
		Expect(ok).To(BeTrue())
		resp, _ = submit(browser, "/verify-otp", url.Values{"otp": {code}})
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
	})

	It("refuses a duplicate email", func() {
		resp, _ := submit(browser, "/student-signup", studentForm(email))
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

		resp, body := submit(newBrowser(), "/student-signup", studentForm(email))
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("already"))
	})

	It("logs in after logout with the stored password", func() {
		resp, _ := submit(browser, "/student-signup", studentForm(email))
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		code, _ := env.notifier.LastCode(email)
		submit(browser, "/verify-otp", url.Values{"otp": {code}})

		resp, _ = visit(browser, "/logout")
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

		resp, _ = visit(browser, "/student-dashboard")
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/student-login"))

		resp, _ = submit(browser, "/student-login", url.Values{"email": {email}, "password": {"wrong"}})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, _ = submit(browser, "/student-login", url.Values{"email": {email}, "password": {"s3cret"}})
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/student-dashboard"))
	})

	It("keeps sessions in redis", func() {
		visit(browser, "/student-signup")
		submit(browser, "/student-signup", studentForm(email))
		Expect(env.redis.Keys()).NotTo(BeEmpty())
	})
})

var _ = Describe("Teacher sign-in", func() {
	It("does not open the student dashboard for a teacher", func() {
		browser := newBrowser()
		email := uniqueEmail("grace")

		resp, _ := submit(browser, "/teacher-signup", url.Values{
			"email":           {email},
			"password":        {"s3cret"},
			"confirmPassword": {"s3cret"},
			"phone":           {"555-0199"},
			"address":         {"2 School Rd"},
			"subjects":        {"math, physics"},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		code, ok := env.notifier.LastCode(email)
		Expect(ok).To(BeTrue())
		resp, _ = submit(browser, "/verify-otp", url.Values{"otp": {code}})
		Expect(resp.Header.Get("Location")).To(Equal("/teacher-dashboard"))

		resp, body := visit(browser, "/teacher-dashboard")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("physics"))

		resp, _ = visit(browser, "/student-dashboard")
		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/student-login"))
	})
})
