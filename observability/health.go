package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/httpkit"
)

// HealthStatus represents the health state of a component or service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the health of an individual component.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth describes the overall health of a service and its upstreams.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// NewServiceHealth creates a ServiceHealth with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// AddComponent adds a component health result and degrades overall status if needed.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}

// EndpointCheck reports the health of an upstream by probing one of its
// endpoints through a client. A 2xx probe is up, any other status is
// degraded, and a failed request is down.
type EndpointCheck struct {
	// Name identifies the upstream in health reports.
	Name string

	// Client executes the probe.
	Client *httpkit.Client

	// Path is the endpoint probed, typically a cheap health route.
	Path string
}

// CheckHealth implements HealthChecker.
func (c *EndpointCheck) CheckHealth(ctx context.Context) Health {
	start := time.Now()
	resp, err := c.Client.Do(ctx, httpkit.NewRequest(http.MethodGet, c.Path))
	latency := time.Since(start)

	h := Health{
		Name:    c.Name,
		Details: map[string]string{"latency": latency.String()},
	}
	if err != nil {
		h.Status = HealthStatusDown
		h.Message = err.Error()
		return h
	}
	defer resp.Close()

	h.Details["status_code"] = strconv.Itoa(resp.StatusCode)
	if resp.IsSuccess() {
		h.Status = HealthStatusUp
	} else {
		h.Status = HealthStatusDegraded
		h.Message = "unexpected status " + strconv.Itoa(resp.StatusCode)
	}
	return h
}
