package component

import "context"

// Component is a long-lived part of the service started and stopped by the
// Registry. Start and Stop are called once each, in registration order and
// reverse registration order respectively.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// HealthStatus is the coarse state reported by a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's entry in the readiness report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Healthy reports name as fully working.
func Healthy(name string) Health {
	return Health{Name: name, Status: StatusHealthy}
}

// Degraded reports name as serving with reduced capacity.
func Degraded(name, msg string) Health {
	return Health{Name: name, Status: StatusDegraded, Message: msg}
}

// Unhealthy reports name as unable to serve.
func Unhealthy(name, msg string) Health {
	return Health{Name: name, Status: StatusUnhealthy, Message: msg}
}

// Description is the line a component contributes to the startup log,
// for example {Type: "server", Details: "0.0.0.0:8080 max_streams=256"}.
// An empty Name falls back to the component's Name().
type Description struct {
	Name    string
	Type    string
	Details string
	Port    int
}

// Describable components report their settings at startup.
type Describable interface {
	Describe() Description
}

// Route is one registered HTTP route as listed at startup.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider is implemented by components that serve HTTP routes.
type RouteProvider interface {
	Routes() []Route
}
