// Package ipchecker restricts operator endpoints to callers inside a trusted
// subnet. The caller address is taken from X-Real-IP, then the first
// X-Forwarded-For entry, then the connection's remote address.
package ipchecker

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

// IPChecker decides whether a request comes from the trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New creates an IPChecker for a subnet in CIDR notation (e.g. "192.168.1.0/24").
// An empty trustedSubnet yields a checker that trusts nobody.
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/New(): error while `net.ParseCIDR()` calling: %w", err)
	}
	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// Check reports whether clientIP is inside the trusted subnet.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP extracts the caller's address from request.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	if ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP"))); ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip, nil
		}
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("in internal/ipchecker/ipchecker.go/GetClientIP(): error while `net.SplitHostPort()` calling: %w", err)
	}
	return net.ParseIP(host), nil
}

// IsTrustedSubnetEmpty returns true if the IPChecker was initialized
// without a trusted subnet.
func (checker *IPChecker) IsTrustedSubnetEmpty() bool {
	return checker.trustedSubnet == nil
}

// RequireTrustedSubnet answers 403 to every caller outside the trusted subnet.
func (checker *IPChecker) RequireTrustedSubnet(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		clientIP, err := checker.GetClientIP(request)
		if err != nil {
			logger.Log.Debugw("cannot determine the client address", "remote_addr", request.RemoteAddr, "error", err)
		}
		if err != nil || !checker.Check(clientIP) {
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(response).Encode(models.MessageResponse{Message: "access denied"})
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
