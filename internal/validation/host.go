package validation

import (
	"fmt"
	"net"
	"strings"
)

// HostValidator checks bare domain names before the application makes
// outbound requests to them.
type HostValidator struct {
	// AllowLocalhost determines if localhost names are permitted
	AllowLocalhost bool
	// AllowPrivateIPs determines if private IP addresses are permitted
	AllowPrivateIPs bool
	// MaxLength is the maximum allowed domain length
	MaxLength int
}

// NewHostValidator creates a validator with secure defaults.
func NewHostValidator() *HostValidator {
	return &HostValidator{MaxLength: 253}
}

// NewPermissiveHostValidator allows local hosts, for development and tests.
func NewPermissiveHostValidator() *HostValidator {
	return &HostValidator{AllowLocalhost: true, AllowPrivateIPs: true, MaxLength: 253}
}

// ValidateDomain normalizes and validates a bare domain (optionally with a port).
func (v *HostValidator) ValidateDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", fmt.Errorf("domain cannot be empty")
	}
	if len(domain) > v.MaxLength {
		return "", fmt.Errorf("domain too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(domain, "/?#@ <>\"'`\\") {
		return "", fmt.Errorf("domain contains invalid characters")
	}

	hostname := domain
	if strings.Contains(domain, ":") && net.ParseIP(domain) == nil {
		h, _, err := net.SplitHostPort(domain)
		if err != nil {
			return "", fmt.Errorf("invalid host format: %w", err)
		}
		hostname = h
	}

	if !v.AllowLocalhost && isLocalhost(hostname) {
		return "", fmt.Errorf("localhost is not permitted")
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if !v.AllowPrivateIPs && isPrivateIP(ip) {
			return "", fmt.Errorf("private IP addresses are not permitted")
		}
		return domain, nil
	}
	for _, label := range strings.Split(hostname, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", fmt.Errorf("invalid domain label in %q", hostname)
		}
	}
	return domain, nil
}

func isLocalhost(hostname string) bool {
	return hostname == "localhost" ||
		hostname == "127.0.0.1" ||
		hostname == "::1" ||
		strings.HasSuffix(hostname, ".localhost")
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
