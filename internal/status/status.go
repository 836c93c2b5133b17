package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/failover/internal/failover"
)

// Source provides the per-host snapshot served by the handler.
// *failover.Coordinator satisfies it.
type Source interface {
	Status() []failover.HostStatus
}

// Report is the body of GET /status.
type Report struct {
	Current string                `json:"current,omitempty" yaml:"current,omitempty"`
	Hosts   []failover.HostStatus `json:"hosts" yaml:"hosts"`
}

// NewReport builds a Report from a snapshot. Current is the address of the
// host flagged current, if any.
func NewReport(hosts []failover.HostStatus) Report {
	r := Report{Hosts: hosts}
	if r.Hosts == nil {
		r.Hosts = []failover.HostStatus{}
	}
	for _, h := range hosts {
		if h.Current {
			r.Current = h.Addr
			break
		}
	}
	return r
}

// NewHandler returns the routes of the status endpoint:
//
//	GET /health  200 while the process runs
//	GET /status  Report as JSON
func NewHandler(src Source, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(NewReport(src.Status())); err != nil {
			logger.Warn("failed to write status", zap.Error(err))
		}
	})
	return mux
}

// NewServer wraps the handler in an http.Server listening on addr.
func NewServer(addr string, src Source, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(src, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// GetJSON fetches url and decodes the JSON body into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Fetch retrieves the Report of a running status endpoint. base may be a
// full URL or a bare "host:port".
func Fetch(ctx context.Context, base string) (*Report, error) {
	url := base
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimRight(url, "/") + "/status"

	var r Report
	if err := GetJSON(ctx, url, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
