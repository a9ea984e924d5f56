package fetcher

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const stealthScript = `
(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined, configurable: true });
	try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'], configurable: true });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5], configurable: true });
	Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8, configurable: true });
	window.chrome = window.chrome || { runtime: {} };
	const query = window.navigator.permissions && window.navigator.permissions.query;
	if (query) {
		window.navigator.permissions.query = (p) =>
			p && p.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: query(p);
	}
})();
`

const autoScrollScript = `
async () => {
	await new Promise((resolve) => {
		let total = 0;
		const step = 400;
		const timer = setInterval(() => {
			window.scrollBy(0, step);
			total += step;
			if (total >= document.body.scrollHeight || total > 20000) {
				clearInterval(timer);
				resolve();
			}
		}, 150);
	});
}
`

var blockedResourceTypes = map[string]bool{
	"image": true,
	"font":  true,
	"media": true,
}

type BrowserConfig struct {
	Timeout  time.Duration
	Headless bool
	Scroll   bool
	ProxyURL string
}

// session is one rendering browser. Close must be safe to call more than
// once and from another goroutine while Render is in flight.
type session interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// BrowserFetcher renders the page in a fresh headless Chromium per call.
type BrowserFetcher struct {
	cfg        BrowserConfig
	detector   *Detector
	newSession func(cfg BrowserConfig) (session, error)
}

func NewBrowserFetcher(cfg BrowserConfig, detector *Detector) *BrowserFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if detector == nil {
		detector = NewDetector(0)
	}
	return &BrowserFetcher{
		cfg:        cfg,
		detector:   detector,
		newSession: launchPlaywright,
	}
}

func (f *BrowserFetcher) Name() string {
	return "browser"
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout+10*time.Second)
	defer cancel()

	var html string
	err := f.withSession(ctx, func(s session) error {
		var err error
		html, err = s.Render(ctx, url)
		return err
	})
	if err != nil {
		return "", err
	}

	if d := f.detector.Detect(0, html); d.Blocked {
		log.Printf("Browser fetch blocked (%s: %s) for %s", d.Signal, d.Trigger, url)
		return "", fmt.Errorf("%w: %s (%s)", ErrInsufficientContent, d.Signal, d.Trigger)
	}

	log.Printf("Browser fetch OK: %d bytes from %s", len(html), url)
	return html, nil
}

// withSession launches a session, runs fn against it and always closes it,
// whether fn returns, panics or ctx ends first.
func (f *BrowserFetcher) withSession(ctx context.Context, fn func(s session) error) error {
	s, err := f.newSession(f.cfg)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Printf("Browser close error: %v", cerr)
		}
	}()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("browser panic: %v", r)
			}
		}()
		done <- fn(s)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Closing the browser unblocks the in-flight navigation.
		s.Close()
		<-done
		return ctx.Err()
	}
}

type playwrightSession struct {
	cfg     BrowserConfig
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func launchPlaywright(cfg BrowserConfig) (session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	s := &playwrightSession{cfg: cfg, pw: pw}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if cfg.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: cfg.ProxyURL}
	}
	s.browser, err = pw.Chromium.Launch(opts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.bctx, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(randomUserAgent()),
		Viewport:         &playwright.Size{Width: 1920, Height: 1080},
		ExtraHttpHeaders: browserHeaders(),
		Locale:           playwright.String("en-US"),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	if err := s.bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		log.Printf("Stealth script not installed: %v", err)
	}
	if err := s.bctx.ClearCookies(); err != nil {
		log.Printf("Clear cookies failed: %v", err)
	}

	s.page, err = s.bctx.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return s, nil
}

func (s *playwrightSession) Render(ctx context.Context, url string) (string, error) {
	page := s.page

	err := page.Route("**/*", func(route playwright.Route) {
		if blockedResourceTypes[route.Request().ResourceType()] {
			route.Abort()
			return
		}
		route.Continue()
	})
	if err != nil {
		log.Printf("Resource routing not installed: %v", err)
	}

	log.Printf("Navigating to: %s", url)
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(s.cfg.Timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if resp != nil && resp.Status() >= 400 {
		log.Printf("Browser got HTTP %d for %s", resp.Status(), url)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.simulateHumanBehavior()
	if s.cfg.Scroll {
		if _, err := page.Evaluate(autoScrollScript); err != nil {
			log.Printf("Auto-scroll failed: %v", err)
		}
	}
	s.humanDelay(800, 2000)

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return content, nil
}

func (s *playwrightSession) simulateHumanBehavior() {
	page := s.page

	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))
	page.Mouse().Move(float64(400+rand.Intn(300)), float64(300+rand.Intn(200)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))

	scrollAmount := 100 + rand.Intn(300)
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, scrollAmount))
}

func (s *playwrightSession) humanDelay(minMs, maxMs int) {
	delay := minMs + rand.Intn(maxMs-minMs)
	s.page.WaitForTimeout(float64(delay))
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			s.page.Close()
		}
		if s.bctx != nil {
			s.bctx.Close()
		}
		if s.browser != nil {
			s.browser.Close()
		}
		if s.pw != nil {
			s.closeErr = s.pw.Stop()
		}
	})
	return s.closeErr
}
