package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors shared by stores and the controller.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicatePage = errors.New("duplicate page for job")
)

// BlockedReason classifies why a domain crawl produced no pages.
type BlockedReason string

// Blocked reasons recorded on the debug snapshot.
const (
	BlockedNone           BlockedReason = ""
	BlockedFirewall       BlockedReason = "firewall"
	BlockedTimeout        BlockedReason = "timeout"
	BlockedDNS            BlockedReason = "dns"
	BlockedTLS            BlockedReason = "tls"
	BlockedConnection     BlockedReason = "connection"
	BlockedUnknown        BlockedReason = "unknown"
	BlockedRobots         BlockedReason = "robots_disallow"
	BlockedUnsafeTarget   BlockedReason = "unsafe_target"
	BlockedHomepageFailed BlockedReason = "homepage_failed"
)

// SafetyError reports a URL rejected before any network traffic.
type SafetyError struct {
	URL    string
	Reason string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("unsafe url %q: %s", e.URL, e.Reason)
}

// TransportError wraps a network failure with its classification.
type TransportError struct {
	URL   string
	Class BlockedReason
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Class, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPBlockedError is returned for statuses that signal a firewall or rate limit.
type HTTPBlockedError struct {
	URL        string
	StatusCode int
}

func (e *HTTPBlockedError) Error() string {
	return fmt.Sprintf("blocked fetching %s: HTTP %d", e.URL, e.StatusCode)
}

// HTTPStatusError is returned for any other status >= 400.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// ContentRejectedError marks a response that is not stored: wrong type or too large.
type ContentRejectedError struct {
	URL         string
	ContentType string
	Size        int
	Reason      string
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("content rejected for %s: %s", e.URL, e.Reason)
}

// IsBlockingStatus reports the statuses treated as firewall/rate-limit responses.
func IsBlockingStatus(code int) bool {
	switch code {
	case 403, 406, 429, 503:
		return true
	}
	return false
}

// ClassifyTransport maps a low-level fetch error onto a blocked reason.
func ClassifyTransport(err error) BlockedReason {
	if err == nil {
		return BlockedNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return BlockedTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return BlockedTimeout
		}
		return BlockedDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return BlockedTimeout
	}
	var (
		certErr      *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostErr      x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		recordHeader tls.RecordHeaderError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) ||
		errors.As(err, &invalidCert) || errors.As(err, &recordHeader) {
		return BlockedTLS
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return BlockedTimeout
	case strings.Contains(msg, "tls") || strings.Contains(msg, "certificate") || strings.Contains(msg, "ssl"):
		return BlockedTLS
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "dns"):
		return BlockedDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return BlockedConnection
	}
	return BlockedUnknown
}

// HomepageBlockReason classifies a failed homepage fetch.
func HomepageBlockReason(err error) BlockedReason {
	var (
		blocked   *HTTPBlockedError
		transport *TransportError
		safety    *SafetyError
	)
	switch {
	case errors.As(err, &blocked):
		return BlockedFirewall
	case errors.As(err, &transport):
		if transport.Class == BlockedNone {
			return BlockedUnknown
		}
		return transport.Class
	case errors.As(err, &safety):
		return BlockedUnsafeTarget
	default:
		return BlockedHomepageFailed
	}
}
