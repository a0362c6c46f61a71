package endpoint

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

const mib = 1 << 20

type runtimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heap_mb"`
	SysMB      uint64 `json:"sys_mb"`
	GCRuns     uint32 `json:"gc_runs"`
}

// Metrics mounts the Prometheus handler h. When metrics are disabled h is
// nil and the route reports a small runtime snapshot as JSON instead.
func Metrics(h http.Handler) gin.HandlerFunc {
	if h != nil {
		return gin.WrapH(h)
	}
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		c.JSON(http.StatusOK, runtimeStats{
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     m.HeapAlloc / mib,
			SysMB:      m.Sys / mib,
			GCRuns:     m.NumGC,
		})
	}
}
