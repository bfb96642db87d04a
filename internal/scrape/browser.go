package scrape

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// antiDetectScript is injected before any site script runs. It hides the
// usual headless tells: navigator.webdriver, empty plugin lists and a
// headless WebGL vendor string.
const antiDetectScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', {
	get: () => [{ name: 'Chrome PDF Plugin' }, { name: 'Chrome PDF Viewer' }, { name: 'Native Client' }],
});
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
const origGetParameter = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function (param) {
	if (param === 37445) return 'Intel Inc.';
	if (param === 37446) return 'Intel Iris OpenGL Engine';
	return origGetParameter.call(this, param);
};
`

// session is one disposable browser context. Never shared between strategy
// invocations.
type session struct {
	browser *rod.Browser
	page    *rod.Page
	l       *launcher.Launcher
}

// openSession launches a browser and navigates to pageURL. The caller must
// invoke close on every path.
func openSession(ctx context.Context, pageURL string, headless bool, bin string) (*session, error) {
	l := launcher.New().Headless(headless).Logger(io.Discard)
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if _, err := page.EvalOnNewDocument(antiDetectScript); err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("install anti-detect script: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1920,
		Height: 1080,
	}); err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.Navigate(pageURL); err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("navigate: %w", err)
	}

	return &session{browser: browser, page: page, l: l}, nil
}

func (s *session) close() {
	s.page.Close()
	s.browser.Close()
	s.l.Cleanup()
}

// waitStable lets the page settle after navigation or interaction.
func (s *session) waitStable() {
	timed := s.page.Timeout(15 * time.Second)
	if err := timed.WaitStable(time.Second); err == nil {
		_ = timed.WaitDOMStable(2*time.Second, 0.1)
	}
}

// screenshot captures the viewport into dir, best effort. Returns the saved
// path or "".
func (s *session) screenshot(dir, name string) string {
	if dir == "" {
		return ""
	}
	data, err := s.page.Screenshot(false, nil)
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", name, time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ""
	}
	return path
}

// finalURL returns the page's current URL after redirects.
func (s *session) finalURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
