package classroom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
)

const apiProbePath = "/schools/42/api/v1/children/7"

func serveSignIn(m *mockPortal, page string, post http.HandlerFunc) {
	m.handle("/souls/sign_in", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(page))
			return
		}
		post(w, r)
	})
}

func TestLoginAPISuccessSkipsWebForm(t *testing.T) {
	m := newMockPortal(t)
	m.handle(apiProbePath, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "parent@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ignored": true}`))
	})
	serveSignIn(m, signInPage, func(w http.ResponseWriter, r *http.Request) {
		t.Error("web form must not be submitted after API success")
	})

	c := newLoopbackClient(t, m)
	state, err := c.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, APIAuthenticated, state)
	assert.Equal(t, APIAuthenticated, c.State())
	assert.Equal(t, int32(0), m.count("/souls/sign_in"))
}

func TestLoginWebFormAfterAPIFailure(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)

	var submitted http.Header
	var form map[string]string
	serveSignIn(m, signInPage, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		submitted = r.Header.Clone()
		form = map[string]string{
			"utf8":               r.PostForm.Get("utf8"),
			"authenticity_token": r.PostForm.Get("authenticity_token"),
			"soul[login]":        r.PostForm.Get("soul[login]"),
			"soul[password]":     r.PostForm.Get("soul[password]"),
			"soul[remember_me]":  r.PostForm.Get("soul[remember_me]"),
			"commit":             r.PostForm.Get("commit"),
		}
		http.Redirect(w, r, "/schools/42/dashboard", http.StatusFound)
	})
	m.body("/schools/42/dashboard", "text/html", "<h1>Dashboard</h1>")

	c := newLoopbackClient(t, m)
	state, err := c.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, WebAuthenticated, state)
	assert.Equal(t, map[string]string{
		"utf8":               "✓",
		"authenticity_token": "tok-123",
		"soul[login]":        "parent@example.com",
		"soul[password]":     "secret",
		"soul[remember_me]":  "0",
		"commit":             "Sign in",
	}, form)
	assert.Contains(t, submitted.Get("Content-Type"), "application/x-www-form-urlencoded")
	assert.Equal(t, int32(1), m.count("/schools/42/dashboard"), "redirect target fetched once for diagnostics")
}

func TestLoginWebFormSuccessMarkers(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusForbidden)
	serveSignIn(m, signInPage, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/souls/sign_out">Sign out</a></body></html>`))
	})

	c := newRemoteClient(t, m)
	state, err := c.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, WebAuthenticated, state)
}

func TestLoginMissingSignInFormIsNotMasked(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)
	serveSignIn(m, `<html><body><p>maintenance</p></body></html>`, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no POST expected without a token")
	})

	c := newLoopbackClient(t, m)
	state, err := c.Login(context.Background())

	require.Error(t, err)
	assert.Equal(t, Unauthenticated, state)
	assert.ErrorIs(t, err, ErrSignInFormNotFound)
	assert.Equal(t, "Could not find sign-in form in page", err.Error())
	assert.True(t, tcerrors.IsType(err, tcerrors.ErrorTypeParse))
}

func TestLoginFallbackOnLoopbackAuthFailure(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)
	serveSignIn(m, signInPage, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>Invalid email or password</p>"))
	})

	c := newLoopbackClient(t, m)
	state, err := c.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, FallbackAuthenticated, state)
	assert.True(t, state.Authenticated())
}

func TestLoginFallbackWhenTokenMissingInForm(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)
	serveSignIn(m, `<form><input name="soul[login]"></form>`, nil)

	c := newLoopbackClient(t, m)
	state, err := c.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, FallbackAuthenticated, state)
}

func TestLoginTimeoutBlocksFallback(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusRequestTimeout)
	serveSignIn(m, `<form><input name="soul[login]"></form>`, nil)

	c := newLoopbackClient(t, m)
	state, err := c.Login(context.Background())

	require.Error(t, err)
	assert.Equal(t, Unauthenticated, state)
	assert.ErrorIs(t, err, ErrCSRFTokenNotFound, "web-form error is preferred")
}

func TestLoginSlowServerTimesOut(t *testing.T) {
	m := newMockPortal(t)
	m.handle(apiProbePath, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusUnauthorized)
	})
	serveSignIn(m, `<form><input name="soul[login]"></form>`, nil)

	c, err := NewClient(Options{
		Email:    "parent@example.com",
		Password: "secret",
		SchoolID: testSchool,
		ChildID:  testChild,
		BaseURL:  m.server.URL + m.schoolPath(),
		Timeout:  50 * time.Millisecond,
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)

	state, err := c.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, Unauthenticated, state)
}

func TestLoginNoFallbackOnRealHost(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)
	serveSignIn(m, signInPage, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>Invalid email or password</p>"))
	})

	c := newRemoteClient(t, m)
	state, err := c.Login(context.Background())

	require.Error(t, err)
	assert.Equal(t, Unauthenticated, state)
	assert.Equal(t, "Login failed: Invalid email or password", err.Error())
	assert.True(t, tcerrors.IsType(err, tcerrors.ErrorTypeAuthentication))
}

func TestLoginSignInPageStatus(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)
	m.status("/souls/sign_in", http.StatusServiceUnavailable)

	c := newRemoteClient(t, m)
	_, err := c.Login(context.Background())

	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, tcerrors.StatusCode(err))
	assert.Contains(t, err.Error(), "Failed to fetch sign-in page")
}

func TestLoginCancelledContext(t *testing.T) {
	m := newMockPortal(t)
	c := newLoopbackClient(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := c.Login(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Unauthenticated, state)
	assert.Equal(t, int32(0), m.totalHits())
}

func TestClassifyLoginResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"invalid credentials", 200, "<div class=alert>Invalid email or password</div>", "Login failed: Invalid email or password"},
		{"incorrect credentials", 200, "Incorrect email or password", "Login failed: Invalid email or password"},
		{"form still present", 200, `<input name="soul[login]"><input name="soul[password]">`, "Login failed: Still seeing login form after submission"},
		{"dashboard marker", 200, "<h1>Dashboard</h1>", ""},
		{"welcome marker on error status", 500, "Welcome back", ""},
		{"login title", 200, "<title>Parent Login</title>", "Login failed: Still on login page after submission"},
		{"sign in title", 422, "<title>Sign In</title>", "Login failed: Still on login page after submission"},
		{"ambiguous 2xx", 200, "<p>ok</p>", ""},
		{"ambiguous non-2xx", 500, "<p>oops</p>", "Login failed with status: 500. Response preview: <p>oops</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyLoginResponse(tt.status, []byte(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestClassifyLoginResponsePreviewTruncated(t *testing.T) {
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'x'
	}
	err := classifyLoginResponse(http.StatusBadGateway, body)
	require.Error(t, err)
	assert.Len(t, err.Error(), len("Login failed with status: 502. Response preview: ")+200)
}

func TestExtractCSRFToken(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		wantErr error
	}{
		{
			name: "token in sign-in form",
			html: signInPage,
			want: "tok-123",
		},
		{
			name: "sign-in form is not the first form",
			html: `<form><input name="authenticity_token" value="other"></form>
<form><input name="soul[login]"><input name="authenticity_token" value="right"></form>`,
			want: "right",
		},
		{
			name: "form token wins over meta",
			html: `<meta name="csrf-token" content="meta-tok">
<form><input name="soul[login]"><input name="authenticity_token" value="form-tok"></form>`,
			want: "form-tok",
		},
		{
			name: "meta tag",
			html: `<head><meta name="csrf-token" content="meta-tok"></head><form><input name="soul[login]"></form>`,
			want: "meta-tok",
		},
		{
			name: "standalone input",
			html: `<div><input type="hidden" name="authenticity_token" value="loose"></div>`,
			want: "loose",
		},
		{
			name:    "form without token",
			html:    `<form><input name="soul[login]"></form>`,
			wantErr: ErrCSRFTokenNotFound,
		},
		{
			name:    "no form at all",
			html:    `<html><body>nothing here</body></html>`,
			wantErr: ErrSignInFormNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCSRFToken([]byte(tt.html))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "api", APIAuthenticated.String())
	assert.Equal(t, "web", WebAuthenticated.String())
	assert.Equal(t, "fallback", FallbackAuthenticated.String())
	assert.False(t, Unauthenticated.Authenticated())
}

func TestPreviewKeepsRunes(t *testing.T) {
	body := []byte("ab✓✓")
	assert.Equal(t, "ab", preview(body, 3))
	assert.Equal(t, "ab✓", preview(body, 5))
	assert.Equal(t, "ab✓", preview(body, 6))
	assert.Equal(t, "ab✓✓", preview(body, 8))
	assert.True(t, utf8.ValidString(preview([]byte("é"), 1)))
}

type timeoutError struct{ timeout bool }

func (e timeoutError) Error() string   { return "dial tcp: i/o" }
func (e timeoutError) Timeout() bool   { return e.timeout }
func (e timeoutError) Temporary() bool { return false }

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"request timeout status", tcerrors.Transport(http.StatusRequestTimeout, "slow"), true},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"net timeout", timeoutError{timeout: true}, true},
		{"net error without timeout", timeoutError{}, false},
		{"word in url", errors.New(`Get "http://portal.test/timeout-page": EOF`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTimeout(tt.err))
		})
	}
}

func TestHTTPClientLogsThroughLogger(t *testing.T) {
	m := newMockPortal(t)
	m.status(apiProbePath, http.StatusUnauthorized)
	log := logger.NewTestLogger()

	c, err := NewClient(Options{
		Email:    "parent@example.com",
		Password: "secret",
		SchoolID: testSchool,
		ChildID:  testChild,
		BaseURL:  m.server.URL + m.schoolPath(),
		Logger:   log,
	})
	require.NoError(t, err)

	_, err = c.GetWithBasicAuth(context.Background(), m.server.URL+apiProbePath, "parent@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, log.HasMessage("WARN", "HTTP mode"))
}
