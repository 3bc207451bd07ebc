package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Startup Events</title>
  <item>
    <title>Seed Pitch Night</title>
    <link>https://events.example.com/seed</link>
    <description>&lt;p&gt;Founders pitch on &lt;b&gt;March 3, 2026&lt;/b&gt;&lt;/p&gt;</description>
  </item>
  <item>
    <title>Investor Mixer</title>
    <link>https://events.example.com/mixer</link>
    <description>Meet investors</description>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Demo Days</title>
  <entry>
    <title>Spring Demo Day</title>
    <link href="https://demo.example.com/spring"/>
    <id>urn:1</id>
    <updated>2026-01-01T00:00:00Z</updated>
    <content type="html">&lt;h1&gt;Spring Demo Day&lt;/h1&gt;&lt;p&gt;April 10, 2026 in Boston&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>Seed Pitch Night (mirror)</title>
    <link href="https://events.example.com/seed"/>
    <id>urn:2</id>
    <updated>2026-01-01T00:00:00Z</updated>
  </entry>
</feed>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(rssFeed))
		case "/atom":
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(atomFeed))
		case "/broken":
			_, _ = w.Write([]byte("not a feed"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFetchFeed_RSS(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	f := NewFetcher([]string{srv.URL + "/rss"}, 1, nil)
	results, err := f.FetchFeed(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Seed Pitch Night", results[0].Title)
	assert.Equal(t, "Founders pitch on March 3, 2026", results[0].Snippet)
	assert.Equal(t, "https://events.example.com/seed", results[0].URL)
	assert.Equal(t, "rss", results[0].Source)
	assert.Empty(t, results[0].HTML)
}

func TestFetchFeed_AtomContentBecomesHTML(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	results, err := NewFetcher(nil, 1, nil).FetchFeed(context.Background(), srv.URL+"/atom")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Spring Demo Day April 10, 2026 in Boston", results[0].Snippet)
	assert.Contains(t, results[0].HTML, "<h1>")
}

func TestFetchFeed_Errors(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()
	f := NewFetcher(nil, 1, nil)

	_, err := f.FetchFeed(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")

	_, err = f.FetchFeed(context.Background(), srv.URL+"/broken")
	assert.Error(t, err)
}

func TestFetchAll_MergesAndDedupes(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	f := NewFetcher([]string{srv.URL + "/rss", srv.URL + "/atom", srv.URL + "/broken", "ftp://nope"}, 2, nil)
	assert.Len(t, f.Feeds(), 3)

	results := f.FetchAll(context.Background())
	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	sort.Strings(urls)
	assert.Equal(t, []string{
		"https://demo.example.com/spring",
		"https://events.example.com/mixer",
		"https://events.example.com/seed",
	}, urls)
}
