package prober

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/monico-sh/monico/pkg/types"
)

// DefaultTimeout is the total deadline for one probe request, connection
// through body.
const DefaultTimeout = 5 * time.Second

// HTTPProber executes HTTP GET probes against monitor endpoints and maps the
// outcome onto a Probe record.
type HTTPProber struct {
	// Timeout is the total per-probe deadline (default: DefaultTimeout)
	Timeout time.Duration

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// New creates a prober with the default request timeout.
func New() *HTTPProber {
	return &HTTPProber{
		Timeout: DefaultTimeout,
		Client:  &http.Client{},
	}
}

// WithTimeout sets the total per-probe deadline.
func (p *HTTPProber) WithTimeout(timeout time.Duration) *HTTPProber {
	p.Timeout = timeout
	return p
}

// Probe issues GET monitor.Endpoint and returns a fresh probe for the task.
// The response time is the wall-clock seconds from request start to the
// response or to the failure. Transport failures yield a probe with no status
// code and a response error of timeout or connection_error; probes themselves
// never return a Go error.
func (p *HTTPProber) Probe(ctx context.Context, monitor *types.Monitor, task *types.Task) *types.Probe {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, monitor.Endpoint, nil)
	if err != nil {
		return p.failure(monitor, task, time.Since(start), err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return p.failure(monitor, task, time.Since(start), err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return p.failure(monitor, task, time.Since(start), err)
	}

	var match *string
	if monitor.BodyRegexp != "" {
		if re, err := regexp.Compile(monitor.BodyRegexp); err == nil {
			if found := re.Find(body); found != nil {
				s := string(found)
				match = &s
			}
		}
	}

	code := resp.StatusCode
	return types.NewProbe(monitor.ID, task.ID, elapsed.Seconds(), &code, nil, match)
}

func (p *HTTPProber) failure(monitor *types.Monitor, task *types.Task, elapsed time.Duration, err error) *types.Probe {
	probeErr := classify(err)
	return types.NewProbe(monitor.ID, task.ID, elapsed.Seconds(), nil, &probeErr, nil)
}

// classify maps a transport error onto the closed probe error set: deadline
// expiry is a timeout, everything else a connection error.
func classify(err error) types.ProbeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ProbeErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ProbeErrorTimeout
	}
	return types.ProbeErrorConnectionError
}
