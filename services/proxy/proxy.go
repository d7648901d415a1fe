package proxy

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"sip/scraperworker/logger"
)

// Public SOCKS5 list sources, best quality first.
var defaultSources = []string{
	"https://spys.me/socks.txt",
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt",
	"https://api.proxyscrape.com/v2/?request=get&protocol=socks5&timeout=10000&country=all&format=textplain",
}

const (
	refreshInterval = 30 * time.Minute
	keepCount       = 5
	testConcurrency = 10
	dialTimeout     = 5 * time.Second
)

// Proxy is one verified SOCKS5 endpoint.
type Proxy struct {
	Host    string        `json:"host"`
	Port    int           `json:"port"`
	Latency time.Duration `json:"latency"`
}

// URL renders the endpoint for a browser launcher or HTTP transport.
func (p Proxy) URL() string {
	return fmt.Sprintf("socks5://%s:%d", p.Host, p.Port)
}

// Pool maintains a small set of verified public SOCKS5 proxies, sorted by
// latency. Browser sessions route through the fastest one when no explicit
// proxy is configured.
type Pool struct {
	sources []string
	client  *http.Client
	log     *logger.Logger

	mu          sync.RWMutex
	proxies     []Proxy
	lastRefresh time.Time
}

// NewPool creates a pool over the default public sources.
func NewPool() *Pool {
	return &Pool{
		sources: defaultSources,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logger.ForComponent("proxy"),
	}
}

// Refresh fetches, verifies and ranks candidates. A refresh inside the
// staleness window is a no-op while the pool still has proxies.
func (p *Pool) Refresh() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastRefresh) < refreshInterval && len(p.proxies) > 0 {
		return nil
	}

	candidates := p.fetchCandidates()
	if len(candidates) == 0 {
		if len(p.proxies) > 0 {
			p.log.Warn().Msg("no fresh candidates, keeping current proxies")
			return nil
		}
		return fmt.Errorf("no proxy candidates from any source")
	}

	working := p.verify(candidates)
	if len(working) == 0 {
		if len(p.proxies) > 0 {
			return nil
		}
		return fmt.Errorf("no working proxies among %d candidates", len(candidates))
	}

	sort.Slice(working, func(i, j int) bool { return working[i].Latency < working[j].Latency })
	if len(working) > keepCount {
		working = working[:keepCount]
	}

	p.proxies = working
	p.lastRefresh = time.Now()
	p.log.Info().
		Int("count", len(working)).
		Str("fastest", working[0].URL()).
		Dur("latency", working[0].Latency).
		Msg("proxy pool refreshed")
	return nil
}

// Fastest returns the lowest-latency verified proxy.
func (p *Pool) Fastest() (Proxy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.proxies) == 0 {
		return Proxy{}, fmt.Errorf("no working proxies available")
	}
	return p.proxies[0], nil
}

func (p *Pool) fetchCandidates() []Proxy {
	for _, source := range p.sources {
		body, err := p.fetchList(source)
		if err != nil {
			p.log.WithError(err).Debug().Str("source", source).Msg("source fetch failed")
			continue
		}
		candidates := parseProxyList(body)
		if len(candidates) > 0 {
			p.log.Debug().Int("count", len(candidates)).Str("source", source).Msg("candidates parsed")
			return candidates
		}
	}
	return nil
}

func (p *Pool) fetchList(source string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d from %s", resp.StatusCode, source)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	text := string(body)
	// An HTML body is an error page, not a list.
	if strings.Contains(text, "<html") || strings.Contains(text, "<!DOCTYPE") {
		return "", fmt.Errorf("HTML response from %s", source)
	}
	return text, nil
}

// verify keeps the candidates that complete a SOCKS5 handshake, measuring
// latency on the way.
func (p *Pool) verify(candidates []Proxy) []Proxy {
	var (
		mu      sync.Mutex
		working []Proxy
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, testConcurrency)

	for _, candidate := range candidates {
		wg.Add(1)
		go func(c Proxy) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			latency, ok := testSOCKS5(c.Host, c.Port)
			if !ok {
				return
			}
			c.Latency = latency
			mu.Lock()
			working = append(working, c)
			mu.Unlock()
		}(candidate)
	}
	wg.Wait()
	return working
}

// parseProxyList extracts host:port pairs from a plain-text list. Lines may
// carry trailing annotations (country codes, flags) that are ignored.
func parseProxyList(text string) []Proxy {
	var proxies []Proxy
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if proxy, ok := parseProxyAddr(field); ok {
				proxies = append(proxies, proxy)
			}
		}
	}
	return proxies
}

func parseProxyAddr(field string) (Proxy, bool) {
	host, portStr, err := net.SplitHostPort(field)
	if err != nil {
		return Proxy{}, false
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIPv4(ip) {
		return Proxy{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 80 || port > 65000 {
		return Proxy{}, false
	}
	return Proxy{Host: host, Port: port}, true
}

// isPublicIPv4 rejects private, loopback, multicast and reserved ranges.
func isPublicIPv4(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	switch {
	case v4[0] == 0, v4[0] == 127, v4[0] == 10:
		return false
	case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
		return false
	case v4[0] == 192 && v4[1] == 168:
		return false
	case v4[0] == 169 && v4[1] == 254:
		return false
	case v4[0] >= 224:
		return false
	}
	return v4[3] != 0 && v4[3] != 255
}

// testSOCKS5 dials and performs the no-auth handshake.
func testSOCKS5(host string, port int) (time.Duration, bool) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return 0, false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(3 * time.Second))

	// [VER=5, NMETHODS=1, METHOD=no-auth]
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return 0, false
	}
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return 0, false
	}
	if resp[0] != 0x05 || resp[1] != 0x00 {
		return 0, false
	}
	return time.Since(start), true
}
