package browser

import (
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/metrics"
	"sip/scraperworker/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// blockedResourceTypes are fetched lazily or not at all. Images stay enabled
// because card extraction reads their src and alt attributes.
var blockedResourceTypes = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeStylesheet: true,
	proto.NetworkResourceTypeFont:       true,
	proto.NetworkResourceTypeMedia:      true,
}

// Manager owns a single shared browser process. The browser launches lazily
// on first page request and relaunches when the devtools connection is lost.
type Manager struct {
	cfg config.Config
	log *logger.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewManager creates a manager without launching anything yet.
func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cfg: cfg,
		log: logger.ForComponent("browser"),
	}
}

// NewPage opens a stealth tab with the standard viewport, user agent and
// resource blocking applied. The caller must Close the returned page.
func (m *Manager) NewPage() (*rod.Page, error) {
	page, err := m.openPage()
	if err == nil {
		return page, nil
	}

	// A dead devtools connection poisons every subsequent page. Relaunch
	// once and retry.
	m.log.WithError(err).Warn().Msg("page open failed, relaunching browser")
	m.Reset()
	metrics.BrowserRestarts.Inc()

	page, err = m.openPage()
	if err != nil {
		return nil, fmt.Errorf("open page after relaunch: %w", err)
	}
	return page, nil
}

func (m *Manager) openPage() (*rod.Page, error) {
	browser, err := m.browserInstance()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	if err := m.preparePage(page); err != nil {
		_ = page.Close()
		return nil, err
	}

	metrics.PagesOpen.Inc()
	return page.Timeout(m.cfg.NavTimeout), nil
}

func (m *Manager) preparePage(page *rod.Page) error {
	err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      defaultUserAgent,
		AcceptLanguage: "id-ID,id;q=0.9,en;q=0.8",
	})
	if err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	router := page.HijackRequests()
	err = router.Add("*", "", func(ctx *rod.Hijack) {
		if blockedResourceTypes[ctx.Request.Type()] {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return fmt.Errorf("install request filter: %w", err)
	}
	go router.Run()

	return nil
}

// browserInstance returns the shared browser, launching it on first use.
func (m *Manager) browserInstance() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return m.browser, nil
	}

	bin := m.cfg.BrowserBin
	if bin == "" {
		m.log.Info().Msg("no browser binary configured, downloading default")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(m.cfg.Headless).
		Bin(bin).
		NoSandbox(true).
		Set("remote-allow-origins", "*")
	if m.cfg.ProxyURL != "" {
		l = l.Proxy(m.cfg.ProxyURL)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	m.log.Info().Str("bin", bin).Bool("headless", m.cfg.Headless).Msg("browser started")
	m.browser = browser
	m.launcher = l
	return browser, nil
}

// ClosePage closes a tab and keeps the open-tab gauge honest.
func (m *Manager) ClosePage(page *rod.Page) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		m.log.WithError(err).Debug().Msg("page close failed")
	}
	metrics.PagesOpen.Dec()
}

// Reset tears the browser down so the next page request relaunches it.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

// Close shuts the browser down for good.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	m.log.Info().Msg("browser closed")
}

func (m *Manager) closeLocked() {
	if m.browser == nil {
		return
	}
	if err := m.browser.Close(); err != nil {
		m.log.WithError(err).Warn().Msg("browser close failed")
	}
	if m.launcher != nil {
		m.launcher.Cleanup()
		m.launcher = nil
	}
	m.browser = nil
}
