package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilebles/ozon-parser/internal/app"
)

func resultsPage(w http.ResponseWriter, firstID, count int) {
	fmt.Fprint(w, `<html><head><title>Результаты поиска</title></head><body><h1>поиск</h1>`)
	for i := 0; i < count; i++ {
		fmt.Fprintf(w, `<a href="/product/tovar-%d/">товар</a>`, firstID+i)
	}
	fmt.Fprint(w, `</body></html>`)
}

func newTestStatic(baseURL string, maxPosition int) *Static {
	s := NewStatic(&app.Config{
		BaseURL:        baseURL,
		MaxPosition:    maxPosition,
		BrowserTimeout: 5 * time.Second,
		ChallengeWait:  200 * time.Millisecond,
	})
	s.challengePoll = 10 * time.Millisecond
	s.pageDelay = func() time.Duration { return time.Millisecond }
	return s
}

func TestStaticFindsAcrossPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		assert.Equal(t, "кроссовки", r.URL.Query().Get("text"))
		// 36 products per page, IDs increase with position
		resultsPage(w, (page-1)*resultsPerPage+1, resultsPerPage)
	}))
	defer server.Close()

	s := newTestStatic(server.URL, 1000)

	// Product 40 sits at position 40, on page 2.
	outcome, err := s.FindPosition(context.Background(), "кроссовки", "40")
	require.NoError(t, err)
	assert.Equal(t, Found, outcome.Status)
	assert.Equal(t, 40, outcome.Position)
}

func TestStaticNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Поиск</title></head><body><h1>Ничего не нашлось</h1></body></html>`)
	}))
	defer server.Close()

	outcome, err := newTestStatic(server.URL, 1000).FindPosition(context.Background(), "q", "1")
	require.NoError(t, err)
	assert.Equal(t, NotFound, outcome.Status)
}

func TestStaticExceedsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		resultsPage(w, (page-1)*resultsPerPage+1, resultsPerPage)
	}))
	defer server.Close()

	// Target ID is far past the 72-product limit.
	outcome, err := newTestStatic(server.URL, 72).FindPosition(context.Background(), "q", "999999")
	require.NoError(t, err)
	assert.Equal(t, ExceedsLimit, outcome.Status)
}

func TestStaticResultsEndEarly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page > 1 {
			// Site repeats the last page when pagination runs out.
			resultsPage(w, 1, 10)
			return
		}
		resultsPage(w, 1, 10)
	}))
	defer server.Close()

	outcome, err := newTestStatic(server.URL, 1000).FindPosition(context.Background(), "q", "999999")
	require.NoError(t, err)
	assert.Equal(t, ExceedsLimit, outcome.Status)
}

func TestStaticResumesAfterChallenge(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			fmt.Fprint(w, `<html><head><title>Подтвердите, что вы не робот</title></head><body></body></html>`)
			return
		}
		resultsPage(w, 1, 10)
	}))
	defer server.Close()

	outcome, err := newTestStatic(server.URL, 1000).FindPosition(context.Background(), "q", "5")
	require.NoError(t, err)
	assert.Equal(t, Found, outcome.Status)
	assert.Equal(t, 5, outcome.Position)
}

func TestStaticChallengeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Antibot challenge</title></head><body></body></html>`)
	}))
	defer server.Close()

	_, err := newTestStatic(server.URL, 1000).FindPosition(context.Background(), "q", "5")
	assert.ErrorIs(t, err, ErrChallengeTimeout)
}

func TestStaticBlockedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Ozon</title></head><body><h1>Доступ ограничен</h1></body></html>`)
	}))
	defer server.Close()

	_, err := newTestStatic(server.URL, 1000).FindPosition(context.Background(), "q", "5")
	assert.ErrorIs(t, err, ErrBlocked)
}
