package stealth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFingerprintPoolRotates(t *testing.T) {
	pool := NewFingerprintPool()

	first := pool.Next()
	second := pool.Next()
	require.NotEqual(t, first.UserAgent, second.UserAgent)

	// Round-robin wraps back to the first identity
	for i := 0; i < 2; i++ {
		pool.Next()
	}
	require.Equal(t, first.UserAgent, pool.Next().UserAgent)
}

func TestDelayProfiles(t *testing.T) {
	cautious := NewHumanDelay(ProfileCautious)
	aggressive := NewHumanDelay(ProfileAggressive)
	require.Greater(t, cautious.MinDelay, aggressive.MaxDelay)

	for i := 0; i < 20; i++ {
		d := aggressive.RequestDelay()
		require.GreaterOrEqual(t, d, aggressive.MinDelay)
		require.LessOrEqual(t, d, aggressive.MaxDelay)
	}

	dwell := aggressive.DwellDelay()
	require.GreaterOrEqual(t, dwell, aggressive.MaxDelay)
	require.LessOrEqual(t, dwell, 2*aggressive.MaxDelay)
}

func TestRobotsCheckerDisallows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	rc := NewRobotsChecker(srv.Client(), true)

	allowed, err := rc.IsAllowed("test-agent", srv.URL+"/search")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = rc.IsAllowed("test-agent", srv.URL+"/private/listing")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRobotsCheckerDisabledAllowsEverything(t *testing.T) {
	rc := NewRobotsChecker(&http.Client{Timeout: time.Second}, false)
	allowed, err := rc.IsAllowed("test-agent", "https://unreachable.invalid/private/x")
	require.NoError(t, err)
	require.True(t, allowed)
}
