package classroom

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"tcphotos/pkg/logger"
)

const (
	testSchool = 42
	testChild  = 7
)

const signInPage = `<html><head><title>Sign in</title></head><body>
<form action="/search"><input name="q"></form>
<form action="/souls/sign_in" method="post">
  <input type="hidden" name="authenticity_token" value="tok-123">
  <input name="soul[login]"><input name="soul[password]" type="password">
</form></body></html>`

// mockPortal routes requests by path and counts hits per path
type mockPortal struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]*int32
	total    int32
}

func newMockPortal(t *testing.T) *mockPortal {
	t.Helper()
	m := &mockPortal{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]*int32),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockPortal) serve(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.total, 1)

	m.mu.Lock()
	counter, ok := m.hits[r.URL.Path]
	if !ok {
		var n int32
		counter = &n
		m.hits[r.URL.Path] = counter
	}
	h := m.handlers[r.URL.Path]
	m.mu.Unlock()

	atomic.AddInt32(counter, 1)
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (m *mockPortal) handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

func (m *mockPortal) status(path string, code int) {
	m.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func (m *mockPortal) body(path, contentType, body string) {
	m.handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	})
}

func (m *mockPortal) count(path string) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.hits[path]; ok {
		return atomic.LoadInt32(c)
	}
	return 0
}

func (m *mockPortal) totalHits() int32 {
	return atomic.LoadInt32(&m.total)
}

func (m *mockPortal) schoolPath() string {
	return "/schools/42"
}

// newLoopbackClient builds a client whose base URL points at the mock server
func newLoopbackClient(t *testing.T, m *mockPortal) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Email:    "parent@example.com",
		Password: "secret",
		SchoolID: testSchool,
		ChildID:  testChild,
		BaseURL:  m.server.URL + m.schoolPath(),
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return c
}

// rewriteTransport sends every request to target regardless of its host
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = rt.target.Scheme
	clone.URL.Host = rt.target.Host
	clone.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

// newRemoteClient builds a client for a non-loopback host whose traffic is
// redirected to the mock server
func newRemoteClient(t *testing.T, m *mockPortal) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Email:    "parent@example.com",
		Password: "secret",
		SchoolID: testSchool,
		ChildID:  testChild,
		BaseURL:  "https://portal.example.com" + m.schoolPath(),
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)

	target, err := url.Parse(m.server.URL)
	require.NoError(t, err)
	rt := rewriteTransport{target: target}
	c.http.SetTransport(rt)
	c.noFollow.SetTransport(rt)
	return c
}
