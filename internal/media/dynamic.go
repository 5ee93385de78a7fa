// Package media discovers media URLs that only appear after JavaScript
// runs, using a headless browser pass over already-fetched pages.
package media

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/landseer/landseer/internal/logger"
)

// collectScript gathers media element sources after render, including
// the usual lazy-loading attributes.
const collectScript = `
(() => {
	const out = [];
	const push = (url, kind) => {
		if (url && /^https?:/.test(url)) out.push({url, kind});
	};
	for (const el of document.querySelectorAll('img')) {
		push(el.currentSrc || el.src, 'img');
		push(el.dataset.src, 'img');
		push(el.dataset.lazySrc, 'img');
	}
	for (const el of document.querySelectorAll('video, video source')) {
		push(el.currentSrc || el.src, 'video');
	}
	for (const el of document.querySelectorAll('audio, audio source')) {
		push(el.currentSrc || el.src, 'audio');
	}
	return out;
})()`

// Ref is one media URL found in the rendered page.
type Ref struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// Browser runs the headless render passes. One allocator is shared
// across pages; each page gets its own browser context.
type Browser struct {
	allocCtx  context.Context
	cancel    context.CancelFunc
	timeout   time.Duration
	available bool
}

// browserNames and browserPaths mirror the executables the allocator
// would try to launch.
var browserNames = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
	"headless-shell", "chrome",
}

var browserPaths = []string{
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

func browserAvailable() bool {
	for _, name := range browserNames {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	for _, path := range browserPaths {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// NewBrowser prepares a headless browser allocator. No process is
// started until the first Collect call. A missing browser executable
// is warned about once here; Collect then returns empty sets.
func NewBrowser(userAgent string, timeout time.Duration) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	available := browserAvailable()
	if !available {
		logger.Warn("no headless browser executable found, dynamic media passes are disabled")
	}
	return &Browser{allocCtx: allocCtx, cancel: cancel, timeout: timeout, available: available}
}

// Close releases the browser allocator.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Collect renders the page and returns the media URLs found in the live
// DOM. A missing or failing browser degrades to an empty result with a
// warning, not an error, so the crawl can proceed on static media.
func (b *Browser) Collect(ctx context.Context, pageURL string) []Ref {
	if !b.available {
		return nil
	}

	browserCtx, cancelBrowser := chromedp.NewContext(b.allocCtx)
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()

	var refs []Ref
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible("body"),
		// Let lazy loaders fire before reading the DOM.
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(collectScript, &refs),
	)
	if err != nil {
		logger.Warn("dynamic media pass failed", "url", pageURL, "error", err)
		return nil
	}

	return dedup(refs)
}

func dedup(refs []Ref) []Ref {
	seen := map[string]struct{}{}
	out := refs[:0]
	for _, r := range refs {
		key := strings.ToLower(r.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
