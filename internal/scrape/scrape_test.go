package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"camperwatch/internal/models"
)

func TestSearchURLTemplate(t *testing.T) {
	req := Request{
		Competitor: models.Competitor{
			BaseURL:   "https://example.com",
			SearchURL: "https://example.com/search?loc={location}&from={checkin}&to={checkout}",
		},
		Location: "munich",
		CheckIn:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC),
	}
	require.Equal(t,
		"https://example.com/search?loc=munich&from=2026-07-01&to=2026-07-04",
		req.SearchURL())
}

func TestSearchURLFallsBackToBase(t *testing.T) {
	req := Request{Competitor: models.Competitor{BaseURL: "https://example.com"}}
	require.Equal(t, "https://example.com", req.SearchURL())
}

func TestRegistryContainsAllStrategies(t *testing.T) {
	names := List()
	for _, want := range []string{"direct", "stealth_headless", "visible_humanized", "interactive_form", "api_interception"} {
		require.Contains(t, names, want)
	}

	_, err := New("nope", Deps{})
	require.Error(t, err)
}

func TestIsChallenge(t *testing.T) {
	require.True(t, isChallenge("<title>Just a moment...</title>"))
	require.True(t, isChallenge("please complete the CAPTCHA below"))
	require.False(t, isChallenge("<h1>Campervans from €89 per night</h1>"))
}

func directAgainst(t *testing.T, handler http.HandlerFunc) (*Outcome, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	strat, err := New("direct", Deps{Client: srv.Client()})
	require.NoError(t, err)

	return strat.Execute(context.Background(), Request{
		Competitor: models.Competitor{BaseURL: srv.URL},
	})
}

func TestDirectFetchOK(t *testing.T) {
	out, err := directAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>from €89 per night</body></html>"))
	})
	require.NoError(t, err)
	require.Equal(t, ClassOK, out.Classification)
	require.Contains(t, out.HTML, "€89")
}

func TestDirectFetchBlockedStatus(t *testing.T) {
	out, err := directAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	require.NoError(t, err)
	require.Equal(t, ClassBlockedByChallenge, out.Classification)
}

func TestDirectFetchChallengeBody(t *testing.T) {
	out, err := directAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<title>Just a moment...</title> checking your browser"))
	})
	require.NoError(t, err)
	require.Equal(t, ClassBlockedByChallenge, out.Classification)
}

func TestDirectFetchServerError(t *testing.T) {
	out, err := directAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.NoError(t, err)
	require.Equal(t, ClassNavigationError, out.Classification)
}

func TestDirectFetchEmptyBody(t *testing.T) {
	out, err := directAgainst(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, err)
	require.Equal(t, ClassEmpty, out.Classification)
}
