package service

import (
	"net/http"
	"strings"
	"time"
)

// DefaultRetryAfter is the retry hint sent with overload rejections.
const DefaultRetryAfter = 10 * time.Second

// DefaultPassthroughPrefixes are never rejected and never timed.
var DefaultPassthroughPrefixes = []string{
	"/health",
	"/status",
	"/metrics",
	"/assets/",
	"/favicon",
	"/logo-",
	"/auth/login",
	"/auth/register",
	"/auth/me",
	"/auth/refresh",
	"/admin/",
}

// DefaultHeavyRoutes trigger inference work. A path is heavy if it starts
// or ends with one of them.
var DefaultHeavyRoutes = []string{
	"/chat",
	"/voice-chat",
	"/tts",
}

// RouteClass is how the gate treats a request.
type RouteClass int

const (
	// RouteStandard requests are timed but never rejected.
	RouteStandard RouteClass = iota
	// RoutePassthrough requests bypass the gate entirely.
	RoutePassthrough
	// RouteHeavy requests are timed and may be rejected under load.
	RouteHeavy
)

func (c RouteClass) String() string {
	switch c {
	case RoutePassthrough:
		return "passthrough"
	case RouteHeavy:
		return "heavy"
	default:
		return "standard"
	}
}

// Outcome is the gate's verdict on one request.
type Outcome struct {
	Admitted   bool
	Class      RouteClass
	Reason     string
	RetryAfter time.Duration
}

// AdmissionConfig configures an AdmissionGate.
type AdmissionConfig struct {
	PassthroughPrefixes []string
	HeavyRoutes         []string
	RetryAfter          time.Duration
	Clock               func() time.Time
}

// AdmissionGate classifies requests and rejects heavy ones while the
// monitor reports overload.
type AdmissionGate struct {
	monitor     *RequestMonitor
	passthrough []string
	heavy       []string
	retryAfter  time.Duration
	now         func() time.Time
}

// NewAdmissionGate creates a gate over monitor. Empty lists take defaults.
func NewAdmissionGate(monitor *RequestMonitor, cfg AdmissionConfig) *AdmissionGate {
	if len(cfg.PassthroughPrefixes) == 0 {
		cfg.PassthroughPrefixes = DefaultPassthroughPrefixes
	}
	if len(cfg.HeavyRoutes) == 0 {
		cfg.HeavyRoutes = DefaultHeavyRoutes
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = DefaultRetryAfter
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &AdmissionGate{
		monitor:     monitor,
		passthrough: cfg.PassthroughPrefixes,
		heavy:       cfg.HeavyRoutes,
		retryAfter:  cfg.RetryAfter,
		now:         cfg.Clock,
	}
}

// Monitor returns the underlying monitor.
func (g *AdmissionGate) Monitor() *RequestMonitor {
	return g.monitor
}

// Classify returns the route class for a method and path.
func (g *AdmissionGate) Classify(method, path string) RouteClass {
	if method == http.MethodOptions {
		return RoutePassthrough
	}
	for _, p := range g.passthrough {
		if strings.HasPrefix(path, p) {
			return RoutePassthrough
		}
	}
	for _, h := range g.heavy {
		if strings.HasPrefix(path, h) || strings.HasSuffix(path, h) {
			return RouteHeavy
		}
	}
	return RouteStandard
}

// Admit decides whether a request may proceed. A rejection is recorded on
// the monitor before returning.
func (g *AdmissionGate) Admit(method, path string) Outcome {
	class := g.Classify(method, path)
	if class != RouteHeavy {
		return Outcome{Admitted: true, Class: class}
	}
	if overloaded, reason := g.monitor.CheckOverloaded(); overloaded {
		g.monitor.RecordRejection()
		return Outcome{Class: class, Reason: reason, RetryAfter: g.retryAfter}
	}
	return Outcome{Admitted: true, Class: class}
}

// Ticket tracks one admitted, timed request.
type Ticket struct {
	gate    *AdmissionGate
	started time.Time
	done    bool
}

// Begin starts timing an admitted request. Passthrough requests get a nil
// ticket, on which Finish is a no-op.
func (g *AdmissionGate) Begin(o Outcome) *Ticket {
	if !o.Admitted || o.Class == RoutePassthrough {
		return nil
	}
	g.monitor.RequestStart()
	return &Ticket{gate: g, started: g.now()}
}

// Finish records the request's duration. It is safe to call more than once.
func (t *Ticket) Finish(isError bool) {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.gate.monitor.RequestEnd(t.gate.now().Sub(t.started), isError)
}
