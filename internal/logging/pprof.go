package logging

import (
	"log/slog"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof handlers on the default mux
)

// DefaultPprofAddr is used when profiling is enabled without an address.
const DefaultPprofAddr = "localhost:6060"

// startPprof serves net/http/pprof for profiling long scans.
func startPprof(addr string) {
	if addr == "" {
		addr = DefaultPprofAddr
	}
	go func() {
		Logger().Info("pprof_server_start", slog.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			Logger().Error("pprof_server_error", slog.String("error", err.Error()))
		}
	}()
}
