package api

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var geoEndpoint = "https://ipapi.co"

var geoClient = &http.Client{Timeout: 3 * time.Second}

// clientIP extracts the requester's address, preferring the first
// X-Forwarded-For hop.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// guessCountry resolves an IP to an ISO country code via ipapi.co. Empty on
// any failure; callers fall back to the configured default.
func guessCountry(ip string) string {
	if ip == "" {
		return ""
	}

	resp, err := geoClient.Get(geoEndpoint + "/" + ip + "/country/")
	if err != nil {
		log.WithError(err).Debug("Country lookup failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16))
	if err != nil {
		return ""
	}

	code := strings.ToUpper(strings.TrimSpace(string(body)))
	if len(code) != 2 {
		return ""
	}
	return code
}
