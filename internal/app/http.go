package app

import (
	"net"
	"net/http"
	"time"
)

// newAPIHTTPClient returns the HTTP client shared by all API calls. Fetching
// is sequential, so the connection pool stays small; the generous overall
// timeout covers large granule downloads without allowing hangs.
func newAPIHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   90 * time.Second,
	}
}
