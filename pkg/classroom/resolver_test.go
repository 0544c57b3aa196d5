package classroom

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
)

const observationsPage = `<html><body>
<div class="observation" id="obs-1">
  <div class="observation-text">Painting</div>
  <div class="observation-author">Ms. Rivera</div>
  <div class="observation-date">2024-03-01</div>
  <div class="observation-photo"><img src="/uploads/1.jpg"></div>
</div>
</body></html>`

func TestFetchPagePrimarySuccessSkipsFallbacks(t *testing.T) {
	m := newMockPortal(t)
	m.body("/schools/42/observations", "text/html", observationsPage)
	m.body("/observations", "text/html", observationsPage)

	c := newLoopbackClient(t, m)
	p, err := c.FetchPage(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, c.PrimaryPostsURL(0), p.URL)
	assert.Equal(t, KindHTML, p.Kind)
	assert.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, int32(1), m.totalHits(), "no fallback requested after primary success")
}

func TestFetchPageUsesFirstWorkingFallback(t *testing.T) {
	m := newMockPortal(t)
	m.status("/schools/42/observations", http.StatusForbidden)
	m.status("/observations", http.StatusNotFound)
	m.body("/schools/42/children/7/observations", "text/html", observationsPage)
	m.body("/schools/42/dashboard", "text/html", observationsPage)

	c := newLoopbackClient(t, m)
	p, err := c.FetchPage(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, m.server.URL+"/schools/42/children/7/observations", p.URL)
	assert.Equal(t, int32(3), m.totalHits())
	assert.Equal(t, int32(0), m.count("/schools/42/dashboard"))
}

func TestFetchPageDiscoversFromRootPage(t *testing.T) {
	m := newMockPortal(t)
	m.body("/", "text/html", `<a href="/timeline/7">Timeline</a><a href="/help">Help</a>`)
	m.body("/timeline/7", "text/html", observationsPage)

	c := newLoopbackClient(t, m)
	p, err := c.FetchPage(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, m.server.URL+"/timeline/7", p.URL)
	assert.Equal(t, int32(2), m.count("/schools/42"), "base fetched as fallback and for discovery")
	assert.Equal(t, int32(1), m.count("/"))
	assert.Equal(t, int32(0), m.count("/help"))
}

func TestFetchPageDiscoversFromSchoolPage(t *testing.T) {
	m := newMockPortal(t)
	var schoolHits int
	m.handle("/schools/42", func(w http.ResponseWriter, r *http.Request) {
		schoolHits++
		if schoolHits == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`<a href="feed">Feed</a>`))
	})
	m.body("/schools/42/feed", "text/html", observationsPage)

	c := newLoopbackClient(t, m)
	p, err := c.FetchPage(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, c.BaseURL()+"/feed", p.URL)
	assert.Equal(t, int32(0), m.count("/"))
}

func TestFetchPageStatusError(t *testing.T) {
	m := newMockPortal(t)
	m.status("/schools/42", http.StatusForbidden)

	c := newLoopbackClient(t, m)
	_, err := c.FetchPage(context.Background(), 2)

	require.Error(t, err)
	assert.Equal(t,
		"Failed to fetch posts from Transparent Classroom. Status: 403. This might indicate an authentication or permissions issue.",
		err.Error())
	assert.Equal(t, http.StatusForbidden, tcerrors.StatusCode(err))
}

func TestFetchPageConnectivityError(t *testing.T) {
	m := newMockPortal(t)
	c := newLoopbackClient(t, m)
	m.server.Close()

	_, err := c.FetchPage(context.Background(), 0)

	require.Error(t, err)
	assert.Equal(t, "Failed to connect to Transparent Classroom: no endpoint responded", err.Error())
	assert.True(t, tcerrors.IsType(err, tcerrors.ErrorTypeTransport))
}

func TestFetchPageCancelled(t *testing.T) {
	m := newMockPortal(t)
	c := newLoopbackClient(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), m.totalHits())
}

func TestFetchPostsJSONFromRemoteFeed(t *testing.T) {
	m := newMockPortal(t)
	m.handle("/s/42/children/7/posts.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("locale"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 11, "normalized_text": "Snack", "photo_url": "https://cdn.test/11.jpg"}]`))
	})

	c := newRemoteClient(t, m)
	posts, err := c.FetchPosts(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "11", posts[0].ID)
	assert.Equal(t, []string{"https://cdn.test/11.jpg"}, posts[0].PhotoURLs)
}

func TestFetchPostsHTMLResolvesAgainstRoot(t *testing.T) {
	m := newMockPortal(t)
	m.body("/schools/42/observations", "text/html", observationsPage)

	c := newLoopbackClient(t, m)
	posts, err := c.FetchPosts(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "obs-1", posts[0].ID)
	assert.Equal(t, "Painting", posts[0].Title)
	assert.Equal(t, []string{m.server.URL + "/uploads/1.jpg"}, posts[0].PhotoURLs)
}

func TestFetchPostsMalformedJSON(t *testing.T) {
	m := newMockPortal(t)
	m.body("/s/42/children/7/posts.json", "application/json", `{"posts": 3}`)

	c := newRemoteClient(t, m)
	_, err := c.FetchPosts(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, tcerrors.IsType(err, tcerrors.ErrorTypeParse))
}

func TestFetchPostsUnauthenticatedClientStillTries(t *testing.T) {
	m := newMockPortal(t)
	m.body("/schools/42/observations", "text/html", "<html><body></body></html>")

	c, err := NewClient(Options{
		SchoolID: testSchool,
		ChildID:  testChild,
		BaseURL:  m.server.URL + m.schoolPath(),
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)

	posts, err := c.FetchPosts(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
