package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

const serviceInfoPath = "/service-info"

// HTTPProber asks executors for live capability info over HTTP.
type HTTPProber struct {
	client *http.Client
	scheme string
}

// NewHTTPProber creates a prober. timeout bounds each request on top of the caller's context.
func NewHTTPProber(timeout time.Duration, useTLS bool) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
		scheme: scheme,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, address string, port int, basePath, serviceDefinition string, minVersion, maxVersion int) (*executor.ServiceInfo, error) {
	if strings.TrimSpace(address) == "" || port <= 0 {
		return nil, fmt.Errorf("invalid executor endpoint %q:%d", address, port)
	}
	u := url.URL{
		Scheme: p.scheme,
		Host:   net.JoinHostPort(address, strconv.Itoa(port)),
		Path:   joinPath(basePath, serviceInfoPath),
	}
	q := u.Query()
	q.Set("service", serviceDefinition)
	q.Set("min_version", strconv.Itoa(minVersion))
	q.Set("max_version", strconv.Itoa(maxVersion))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("probe returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info executor.ServiceInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode service info: %w", err)
	}
	if err := validateInfo(&info, serviceDefinition, minVersion, maxVersion); err != nil {
		return nil, err
	}
	return &info, nil
}

func validateInfo(info *executor.ServiceInfo, serviceDefinition string, minVersion, maxVersion int) error {
	if !strings.EqualFold(strings.TrimSpace(info.ServiceDefinition), serviceDefinition) {
		return fmt.Errorf("executor serves %q, not %q", info.ServiceDefinition, serviceDefinition)
	}
	if info.MinVersion > info.MaxVersion {
		return errors.New("executor reported an inverted version range")
	}
	if info.MinVersion > maxVersion || info.MaxVersion < minVersion {
		return fmt.Errorf("executor version range [%d,%d] is outside [%d,%d]", info.MinVersion, info.MaxVersion, minVersion, maxVersion)
	}
	return nil
}

func joinPath(basePath, suffix string) string {
	base := strings.TrimRight(strings.TrimSpace(basePath), "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base + suffix
}
