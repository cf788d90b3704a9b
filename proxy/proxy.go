// Package proxy implements the dual-stack HTTP proxy: every request a
// simulated device or its companion app makes is routed to the local
// simulator, the vendor's real cloud, or both, depending on a
// per-path policy, mirroring the original's WSGI ProxyMiddleware.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/miekg/dns"
)

// Behaviour decides how a request's local and remote outcomes combine
// into the response that actually gets sent.
type Behaviour int

const (
	// RemoteIfMissing forwards to the cloud only when no local route
	// matches; otherwise behaves like LocalFirst. This is the default
	// for any path with no explicit entry.
	RemoteIfMissing Behaviour = iota
	RemoteFirst
	LocalFirst
	OnlyRemote
	OnlyLocal
)

func (b Behaviour) String() string {
	switch b {
	case RemoteFirst:
		return "remote_first"
	case LocalFirst:
		return "local_first"
	case OnlyRemote:
		return "only_remote"
	case OnlyLocal:
		return "only_local"
	default:
		return "remote_if_missing"
	}
}

// Rule maps a path regexp to the behaviour applied to matching
// requests. Rules are evaluated in order; the first match wins.
type Rule struct {
	Pattern   *regexp.Regexp
	Behaviour Behaviour
}

// DefaultRules mirrors PROXY_URL_BEHAVIOUR from the original: static
// assets and the REST API never leave the box, firmware version
// checks prefer the local answer, and the weather poll prefers the
// cloud. The weather rule is always RemoteFirst: the table does not
// change when a weather.Provider is configured.
func DefaultRules() []Rule {
	return []Rule{
		{regexp.MustCompile(`(?i)^/static.*`), OnlyLocal},
		{regexp.MustCompile(`(?i)^/(index\.html)?$`), OnlyLocal},
		{regexp.MustCompile(`(?i)^/api/v1\.0/.*`), OnlyLocal},
		{regexp.MustCompile(`(?i)^/fwUpgrade/PR06549/version\.txt`), LocalFirst},
		{regexp.MustCompile(`(?i)^/WifiBoxInterface_vokera/getWebTemperature\.php`), RemoteFirst},
	}
}

// localHostPattern matches requests already addressed straight at the
// simulator (by container name, loopback, or localhost); those skip
// the proxy entirely and go only to the local handler.
var localHostPattern = regexp.MustCompile(`(?i)^((\w+-besim\w?)|(127\.\d+\.\d+\.\d+)|(localhost.*))(:\d+)?$`)

// Tracer persists one row per proxied request, satisfied by
// *telemetry.DB.
type Tracer interface {
	LogTraces(ctx context.Context, source, adapterMap, host, uri string, elapsed time.Duration, status string)
}

// UnknownAPILogger persists requests to routes with no local match
// that had to be force-routed to the cloud.
type UnknownAPILogger interface {
	LogUnknownAPI(ctx context.Context, source, host, method, uri string, headers map[string][]string, body []byte, remoteStatus string, remoteBody []byte)
}

// Metrics is the subset of metrics.Proxy this package reports through.
type Metrics interface {
	RequestServed(behaviour string, status int, d time.Duration)
	UnknownAPI()
}

type noopMetrics struct{}

func (noopMetrics) RequestServed(string, int, time.Duration) {}
func (noopMetrics) UnknownAPI()                               {}

// Middleware is an http.Handler that wraps a local handler and
// arbitrates every request between it and the vendor's real cloud
// endpoint.
type Middleware struct {
	local  http.Handler
	router *mux.Router
	rules  []Rule

	nameserver string
	resolver   *dns.Client
	httpClient *http.Client

	tracer  Tracer
	unknown UnknownAPILogger
	metrics Metrics

	mu        sync.Mutex
	upstreams map[string]net.IP
}

// Option configures a Middleware at construction time.
type Option func(*Middleware)

func WithRules(rules []Rule) Option        { return func(m *Middleware) { m.rules = rules } }
func WithTracer(t Tracer) Option           { return func(m *Middleware) { m.tracer = t } }
func WithUnknownAPILogger(u UnknownAPILogger) Option { return func(m *Middleware) { m.unknown = u } }
func WithMetrics(metrics Metrics) Option   { return func(m *Middleware) { m.metrics = metrics } }

// New wraps local behind the dual-stack proxy. router is used only to
// probe whether a path has a local route, for REMOTE_IF_MISSING.
// nameserver is queried directly (not the system resolver) for
// upstream host resolution, matching the original's dedicated
// dns.resolver.Resolver.
func New(local http.Handler, router *mux.Router, nameserver string, opts ...Option) *Middleware {
	m := &Middleware{
		local:      local,
		router:     router,
		rules:      DefaultRules(),
		nameserver: nameserver,
		resolver:   &dns.Client{Timeout: 3 * time.Second},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		metrics:    noopMetrics{},
		upstreams:  make(map[string]net.IP),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) behaviourFor(path string) Behaviour {
	for _, rule := range m.rules {
		if rule.Pattern.MatchString(path) {
			return rule.Behaviour
		}
	}
	return RemoteIfMissing
}

func (m *Middleware) localRouteExists(r *http.Request) bool {
	var match mux.RouteMatch
	return m.router != nil && m.router.Match(r, &match)
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if localHostPattern.MatchString(r.Host) {
		m.local.ServeHTTP(w, r)
		return
	}

	behaviour := m.behaviourFor(r.URL.Path)
	missingAPI := false

	switch behaviour {
	case RemoteIfMissing:
		if m.localRouteExists(r) {
			behaviour = LocalFirst
		} else {
			slog.Warn("proxy: no local route, forcing remote", "method", r.Method, "path", r.URL.Path)
			missingAPI = true
			behaviour = OnlyRemote
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusInternalServerError)
		return
	}
	r.Body.Close()

	var remoteStatus int
	var remoteBody []byte
	var remoteHeader http.Header

	if behaviour != OnlyLocal {
		remoteStatus, remoteHeader, remoteBody, err = m.forwardUpstream(r, body)
		if err != nil {
			slog.Warn("proxy: upstream request failed", "host", r.Host, "err", err)
			if behaviour == OnlyRemote {
				http.Error(w, "upstream unavailable", http.StatusBadGateway)
				m.metrics.RequestServed(behaviour.String(), http.StatusBadGateway, time.Since(start))
				return
			}
			behaviour = OnlyLocal
		}
	}

	var localStatus int
	var localBody []byte
	var localHeader http.Header

	if behaviour != OnlyRemote {
		rec := newResponseRecorder()
		r.Body = io.NopCloser(bytes.NewReader(body))
		m.local.ServeHTTP(rec, r)
		localStatus, localHeader, localBody = rec.status, rec.Header(), rec.body.Bytes()
	}

	finalStatus, finalHeader, finalBody := localStatus, localHeader, localBody
	if behaviour == RemoteFirst || behaviour == OnlyRemote {
		finalStatus, finalHeader, finalBody = remoteStatus, remoteHeader, remoteBody
	}

	if behaviour == LocalFirst && remoteBody != nil && !bytes.Equal(localBody, remoteBody) {
		slog.Warn("proxy: local and remote responses differ",
			"host", r.Host, "path", r.URL.Path, "local_body", string(localBody), "remote_body", string(remoteBody))
	}

	for k, vs := range finalHeader {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if finalStatus == 0 {
		finalStatus = http.StatusOK
	}
	w.WriteHeader(finalStatus)
	w.Write(finalBody)

	elapsed := time.Since(start)
	m.metrics.RequestServed(behaviour.String(), finalStatus, elapsed)

	if m.tracer != nil {
		m.tracer.LogTraces(r.Context(), r.RemoteAddr, behaviour.String(), r.Host, r.Method+" "+r.URL.RequestURI(), elapsed, fmt.Sprint(finalStatus))
	}
	if missingAPI {
		m.metrics.UnknownAPI()
		if m.unknown != nil {
			m.unknown.LogUnknownAPI(r.Context(), r.RemoteAddr, r.Host, r.Method, r.URL.RequestURI(),
				r.Header, body, fmt.Sprint(remoteStatus), remoteBody)
		}
	}
}

// forwardUpstream resolves r.Host against m.nameserver (caching the
// answer) and replays the request against the resolved IP.
func (m *Middleware) forwardUpstream(r *http.Request, body []byte) (status int, header http.Header, respBody []byte, err error) {
	ip, err := m.resolveHost(r.Context(), r.Host)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("proxy: resolve %s: %w", r.Host, err)
	}

	port := r.URL.Port()
	if port == "" {
		port = "80"
	}

	upstreamURL := fmt.Sprintf("http://%s:%s%s", ip, port, r.URL.RequestURI())
	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header = r.Header.Clone()
	req.Host = r.Host

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

func (m *Middleware) resolveHost(ctx context.Context, host string) (net.IP, error) {
	hostOnly := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostOnly = h
	}

	m.mu.Lock()
	if ip, ok := m.upstreams[hostOnly]; ok {
		m.mu.Unlock()
		return ip, nil
	}
	m.mu.Unlock()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostOnly), dns.TypeA)
	in, _, err := m.resolver.ExchangeContext(ctx, msg, net.JoinHostPort(m.nameserver, "53"))
	if err != nil {
		return nil, err
	}
	for _, ans := range in.Answer {
		if a, ok := ans.(*dns.A); ok {
			m.mu.Lock()
			m.upstreams[hostOnly] = a.A
			m.mu.Unlock()
			return a.A, nil
		}
	}
	return nil, fmt.Errorf("no A record for %s", hostOnly)
}

type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: make(http.Header)}
}

func (r *responseRecorder) Header() http.Header { return r.header }
func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}
func (r *responseRecorder) WriteHeader(status int) { r.status = status }
