package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"sjsage522/grocerydeals/logger"
)

const (
	// DefaultRotationInterval is how long a proxy stays current before rotating
	DefaultRotationInterval = 5 * time.Minute

	// IPEchoURL is the public endpoint used to probe proxy liveness
	IPEchoURL = "https://api.ipify.org?format=json"
)

// Rotator hands out the current egress proxy
type Rotator interface {
	GetProxy() (*ProxyConfig, bool)
}

// ProxyConfig describes one egress proxy
type ProxyConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username,omitempty" yaml:"username"`
	Password string `json:"-" yaml:"password"`
}

// Addr returns host:port
func (p ProxyConfig) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy as an http URL usable by http.Transport
func (p ProxyConfig) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Addr()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// ParseProxy parses "host:port" or "user:pass@host:port", optionally prefixed
// with "http://".
func ParseProxy(line string) (ProxyConfig, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "http://")
	if line == "" {
		return ProxyConfig{}, fmt.Errorf("empty proxy")
	}

	var cfg ProxyConfig
	if at := strings.LastIndex(line, "@"); at >= 0 {
		creds := line[:at]
		line = line[at+1:]
		user, pass, _ := strings.Cut(creds, ":")
		cfg.Username = user
		cfg.Password = pass
	}

	host, portStr, err := net.SplitHostPort(line)
	if err != nil {
		return ProxyConfig{}, fmt.Errorf("invalid proxy %q: %w", line, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return ProxyConfig{}, fmt.Errorf("invalid proxy port %q", portStr)
	}
	if host == "" {
		return ProxyConfig{}, fmt.Errorf("invalid proxy %q: missing host", line)
	}

	cfg.Host = host
	cfg.Port = port
	return cfg, nil
}

// Manager rotates through a pool of proxies on a time interval. Rotation is
// a side effect of GetProxy, not a background timer.
type Manager struct {
	mu               sync.Mutex
	proxies          []ProxyConfig
	current          int
	lastRotation     time.Time
	rotationInterval time.Duration
	now              func() time.Time

	probeURL string
	log      *logger.Logger
}

// NewManager creates an empty pool. A non-positive interval selects
// DefaultRotationInterval.
func NewManager(rotationInterval time.Duration) *Manager {
	if rotationInterval <= 0 {
		rotationInterval = DefaultRotationInterval
	}
	return &Manager{
		proxies:          make([]ProxyConfig, 0),
		lastRotation:     time.Now(),
		rotationInterval: rotationInterval,
		now:              time.Now,
		probeURL:         IPEchoURL,
		log:              logger.ForProxy(),
	}
}

// AddProxy appends a proxy to the pool
func (m *Manager) AddProxy(cfg ProxyConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proxies = append(m.proxies, cfg)
}

// Len returns the pool size
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.proxies)
}

// Proxies returns a copy of the pool
func (m *Manager) Proxies() []ProxyConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProxyConfig, len(m.proxies))
	copy(out, m.proxies)
	return out
}

// GetProxy returns the current proxy, advancing the cursor first when the
// rotation interval has elapsed. It reports false for an empty pool.
func (m *Manager) GetProxy() (*ProxyConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.proxies) == 0 {
		return nil, false
	}

	now := m.now()
	if now.Sub(m.lastRotation) >= m.rotationInterval {
		m.current = (m.current + 1) % len(m.proxies)
		m.lastRotation = now
	}

	p := m.proxies[m.current]
	return &p, true
}

// ProxyFunc adapts the manager to http.Transport.Proxy. Requests go direct
// when the pool is empty.
func (m *Manager) ProxyFunc(*http.Request) (*url.URL, error) {
	p, ok := m.GetProxy()
	if !ok {
		return nil, nil
	}
	return p.URL(), nil
}

// TestProxy probes the IP echo endpoint through cfg and returns the latency
func (m *Manager) TestProxy(ctx context.Context, cfg ProxyConfig) (time.Duration, error) {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(cfg.URL()),
		},
		Timeout: 10 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create probe request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("proxy %s unreachable: %w", cfg.Addr(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("proxy %s probe returned status %d", cfg.Addr(), resp.StatusCode)
	}
	return time.Since(start), nil
}

// HealthCheck probes every proxy in the pool and drops the ones that fail.
// Proxies added while the check runs are kept unprobed. A done ctx leaves
// the pool untouched. It returns the pool size afterwards.
func (m *Manager) HealthCheck(ctx context.Context) int {
	if err := ctx.Err(); err != nil {
		m.log.Warn().Err(err).Msg("Skipping proxy health check")
		return m.Len()
	}

	m.mu.Lock()
	pool := make([]ProxyConfig, len(m.proxies))
	copy(pool, m.proxies)
	m.mu.Unlock()

	var (
		wg      sync.WaitGroup
		results = make([]bool, len(pool))
	)
	semaphore := make(chan struct{}, 10)

	for i := range pool {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			latency, err := m.TestProxy(ctx, pool[i])
			if err != nil {
				m.log.Warn().Err(err).Str("proxy", pool[i].Addr()).Msg("Dropping dead proxy")
				return
			}
			results[i] = true
			m.log.Debug().Str("proxy", pool[i].Addr()).Dur("latency", latency).Msg("Proxy working")
		}(i)
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		m.log.Warn().Err(ctx.Err()).Msg("Proxy health check interrupted, keeping pool")
		return len(m.proxies)
	}

	alive := make([]ProxyConfig, 0, len(m.proxies))
	for i, ok := range results {
		if ok {
			alive = append(alive, pool[i])
		}
	}
	if len(m.proxies) > len(pool) {
		alive = append(alive, m.proxies[len(pool):]...)
	}
	m.proxies = alive
	if m.current >= len(alive) {
		m.current = 0
	}
	return len(alive)
}

// Stats returns current proxy statistics
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]interface{}{
		"total_proxies": len(m.proxies),
		"last_rotation": m.lastRotation,
	}
	if len(m.proxies) > 0 {
		stats["current_proxy"] = m.proxies[m.current].Addr()
	}
	return stats
}
