package probe

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const perfScript = `(() => {
	const nav = performance.getEntriesByType('navigation')[0];
	const paint = performance.getEntriesByType('paint')
		.find(e => e.name === 'first-contentful-paint');
	return {
		domContentLoaded: nav ? nav.domContentLoadedEventEnd : null,
		pageLoad: nav ? nav.loadEventEnd : null,
		firstPaint: paint ? paint.startTime : null,
	};
})()`

// BrowserChecker drives headless Chrome for a deep availability check:
// HTTP status of the document request, DOM readiness, uncaught JS errors,
// console errors, failed subresources and paint timings. Each Check spawns
// its own browser under the caller's ctx so cancellation kills the browser.
type BrowserChecker struct {
	UserAgent string
}

func NewBrowserChecker() *BrowserChecker {
	return &BrowserChecker{UserAgent: "sitewatch/1.0 (deep check)"}
}

func (b *BrowserChecker) Check(ctx context.Context, target string) (DeepResult, error) {
	start := time.Now()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	var mu sync.Mutex
	res := DeepResult{JSHealthy: true}

	chromedp.ListenTarget(bctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventExceptionThrown:
			msg := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				msg = e.ExceptionDetails.Exception.Description
			}
			mu.Lock()
			res.JSErrors = append(res.JSErrors, msg)
			res.JSHealthy = false
			mu.Unlock()
		case *runtime.EventConsoleAPICalled:
			if e.Type == runtime.APITypeError {
				mu.Lock()
				res.ConsoleErrors++
				mu.Unlock()
			}
		case *network.EventResponseReceived:
			mu.Lock()
			if e.Type == network.ResourceTypeDocument && res.StatusCode == 0 {
				res.StatusCode = int(e.Response.Status)
			}
			if e.Response.Status >= 400 {
				res.FailedResources++
			}
			mu.Unlock()
		}
	})

	var domReady bool
	var perf struct {
		DOMContentLoaded *float64 `json:"domContentLoaded"`
		PageLoad         *float64 `json:"pageLoad"`
		FirstPaint       *float64 `json:"firstPaint"`
	}
	err := chromedp.Run(bctx,
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.Evaluate(`document.body !== null && document.readyState !== "loading"`, &domReady),
		chromedp.Evaluate(perfScript, &perf),
	)

	mu.Lock()
	defer mu.Unlock()
	res.LatencyMS = sinceMS(start)
	if err != nil {
		res.Message = err.Error()
		return res, err
	}

	res.DOMReady = domReady
	res.DOMContentLoaded = perf.DOMContentLoaded
	res.PageLoad = perf.PageLoad
	res.FirstPaint = perf.FirstPaint

	httpOK := res.StatusCode >= 200 && res.StatusCode < 400
	res.Available = httpOK && domReady
	if !domReady {
		res.Message = "DOM did not load"
	}
	return res, nil
}
