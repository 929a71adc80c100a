// Package probe performs HTTP liveness checks against a project's reserved
// ports.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 3 * time.Second

// Result is the outcome of one liveness pass. Errors holds HTTP anomalies
// only: a port that simply refuses connections means "not running" and adds
// nothing to Errors.
type Result struct {
	FrontendRunning bool
	BackendRunning  bool
	Errors          []string
}

// Prober checks frontend and backend endpoints over HTTP.
type Prober struct {
	client *http.Client
	host   string
}

// New returns a prober whose individual requests time out after timeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{
		client: &http.Client{Timeout: timeout},
		host:   "localhost",
	}
}

// Probe checks both component ports. A port of 0 means the component has no
// reservation and is skipped. Frontend counts as running for any status in
// [200,500); backend requires 200 from its health endpoint.
func (p *Prober) Probe(ctx context.Context, frontendPort, backendPort int) Result {
	var res Result
	if frontendPort > 0 {
		status, err := p.get(ctx, fmt.Sprintf("http://%s:%d/", p.host, frontendPort))
		switch {
		case err != nil:
			// connection refused or timeout: the server just is not there
		case status >= 200 && status < 500:
			res.FrontendRunning = true
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("frontend returned status %d", status))
		}
	}
	if backendPort > 0 {
		status, err := p.get(ctx, fmt.Sprintf("http://%s:%d/api/health", p.host, backendPort))
		switch {
		case err != nil:
		case status == http.StatusOK:
			res.BackendRunning = true
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("backend returned status %d", status))
		}
	}
	return res
}

func (p *Prober) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
