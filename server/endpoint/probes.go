package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/component"
)

// HealthChecker reports the health of every registered component.
type HealthChecker func(ctx context.Context) []component.Health

// probe is the body shared by the liveness, readiness and health routes.
type probe struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Timestamp  string             `json:"timestamp"`
	Components []component.Health `json:"components,omitempty"`
}

func newProbe(service, status string) probe {
	return probe{Status: status, Service: service, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func check(c *gin.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(c.Request.Context())
}

// Liveness answers 200 whenever the process can serve HTTP at all.
func Liveness(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, newProbe(service, "alive"))
	}
}

// Health lists every component and folds them into one status. Only an
// unhealthy service answers 503; degraded still answers 200.
func Health(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		comps := check(c, checker)
		overall := component.Overall(comps)
		p := newProbe(service, string(overall))
		p.Components = comps
		code := http.StatusOK
		if overall == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, p)
	}
}

// Readiness is stricter than Health: anything short of healthy, such as a
// server with every stream slot taken, takes the instance out of rotation.
func Readiness(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if component.Overall(check(c, checker)) != component.StatusHealthy {
			c.JSON(http.StatusServiceUnavailable, newProbe(service, "not_ready"))
			return
		}
		c.JSON(http.StatusOK, newProbe(service, "ready"))
	}
}
