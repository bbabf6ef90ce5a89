package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	minSecretLength = 32
	maxSecretLength = 256

	minAttempts     = 1
	maxAttempts     = 10
	minInitialDelay = 100 * time.Millisecond
	maxInitialDelay = 60 * time.Second
	minMaxDelay     = time.Second
	maxMaxDelay     = 300 * time.Second
)

// blockedCIDRs lists RFC special-use IP ranges that must never be webhook
// destinations. Covers private, loopback, link-local, documentation,
// benchmarking, multicast, reserved, and IPv6 transition prefixes that
// embed IPv4 addresses.
var blockedCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"0.0.0.0/8",       // "this" network (RFC 1122)
		"10.0.0.0/8",      // private (RFC 1918)
		"100.64.0.0/10",   // shared address / CGN (RFC 6598)
		"127.0.0.0/8",     // loopback (RFC 1122)
		"169.254.0.0/16",  // link-local (RFC 3927)
		"172.16.0.0/12",   // private (RFC 1918)
		"192.0.0.0/24",    // IETF protocol assignments (RFC 6890)
		"192.0.2.0/24",    // TEST-NET-1 (RFC 5737)
		"192.168.0.0/16",  // private (RFC 1918)
		"198.18.0.0/15",   // benchmarking (RFC 2544)
		"198.51.100.0/24", // TEST-NET-2 (RFC 5737)
		"203.0.113.0/24",  // TEST-NET-3 (RFC 5737)
		"224.0.0.0/4",     // multicast (RFC 5771)
		"240.0.0.0/4",     // reserved (RFC 1112)
		"::1/128",         // IPv6 loopback
		"fc00::/7",        // IPv6 unique local (RFC 4193)
		"fe80::/10",       // IPv6 link-local (RFC 4291)
		"2001:db8::/32",   // IPv6 documentation (RFC 3849)
		"2001::/32",       // Teredo (RFC 4380), embeds IPv4
		"2002::/16",       // 6to4 (RFC 3056), embeds IPv4
		"64:ff9b::/96",    // NAT64 (RFC 6052), embeds IPv4
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, ipnet)
		}
	}
	return nets
}()

func isBlockedIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, cidr := range blockedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// alternativeIPPattern matches hex, octal, and packed-decimal host forms
// that bypass net.ParseIP but some HTTP stacks interpret as addresses.
var alternativeIPPattern = regexp.MustCompile(`^(0x[0-9a-fA-F]+|0[0-7]+(\.0[0-7]+)*|\d{8,})$`)

func looksLikeAlternativeIP(host string) bool {
	return alternativeIPPattern.MatchString(host)
}

// validateURL checks the destination scheme and rejects hosts that are,
// or encode, a blocked IP. Hostnames are re-checked at dial time against
// their resolved addresses.
func validateURL(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("url is not parseable: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url must use http or https, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("url has no host")
	}
	if allowPrivate {
		return nil
	}
	if looksLikeAlternativeIP(host) {
		return fmt.Errorf("url host uses an alternative IP encoding")
	}
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return fmt.Errorf("url host %s is in a blocked IP range", ip)
	}
	return nil
}

// safeDialContext resolves DNS and validates every resolved address
// before connecting. Connecting to the validated IP directly prevents a
// second resolution from steering the request into a private range.
func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns resolution failed for %q: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses for %q", host)
	}
	for _, ip := range ips {
		if isBlockedIP(ip.IP) {
			return nil, fmt.Errorf("%s resolves to blocked address %s", host, ip.IP)
		}
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
}

// generateSecret returns a 64-hex-character random secret.
func generateSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// validateRequest checks the registration request and returns the list of
// field problems, empty when valid.
func validateRequest(req RegisterRequest, allowPrivate bool) []string {
	var fields []string

	if strings.TrimSpace(req.Name) == "" {
		fields = append(fields, "name is required")
	}
	if err := validateURL(req.URL, allowPrivate); err != nil {
		fields = append(fields, err.Error())
	}

	if len(req.EventTypes) == 0 {
		fields = append(fields, "event_types must not be empty")
	}
	for _, et := range req.EventTypes {
		if !knownEventTypes[et] {
			fields = append(fields, fmt.Sprintf("unknown event type %q", et))
		}
	}

	if req.Secret != "" {
		if n := len(req.Secret); n < minSecretLength || n > maxSecretLength {
			fields = append(fields, fmt.Sprintf("secret length must be %d-%d characters, got %d",
				minSecretLength, maxSecretLength, n))
		}
	}

	if req.RetryPolicy != nil {
		fields = append(fields, validateRetryPolicy(*req.RetryPolicy)...)
	}

	for i, f := range req.Filters {
		if f.Field == "" {
			fields = append(fields, fmt.Sprintf("filter %d: field is required", i))
		}
		if !knownOperator(f.Operator) {
			fields = append(fields, fmt.Sprintf("filter %d: unknown operator %q", i, f.Operator))
		}
		if f.Operator == opRegex {
			if s, ok := f.Value.(string); !ok {
				fields = append(fields, fmt.Sprintf("filter %d: regex value must be a string", i))
			} else if _, err := regexp.Compile(s); err != nil {
				fields = append(fields, fmt.Sprintf("filter %d: invalid regex: %v", i, err))
			}
		}
	}

	if req.RateLimit != nil {
		if req.RateLimit.MaxRequests <= 0 {
			fields = append(fields, "rate_limit.max_requests must be positive")
		}
		if req.RateLimit.Window <= 0 {
			fields = append(fields, "rate_limit.window_ms must be positive")
		}
		if s := req.RateLimit.Strategy; s != "" &&
			s != "sliding_window" && s != "token_bucket" {
			fields = append(fields, fmt.Sprintf("unknown rate_limit strategy %q", s))
		}
	}

	return fields
}

func validateRetryPolicy(p RetryPolicy) []string {
	var fields []string
	if p.MaxAttempts < minAttempts || p.MaxAttempts > maxAttempts {
		fields = append(fields, fmt.Sprintf("retry_policy.max_attempts must be %d-%d", minAttempts, maxAttempts))
	}
	switch p.BackoffStrategy {
	case BackoffFixed, BackoffLinear, BackoffExponential, BackoffExponentialWithJitter:
	default:
		fields = append(fields, fmt.Sprintf("unknown backoff strategy %q", p.BackoffStrategy))
	}
	if p.InitialDelay < minInitialDelay || p.InitialDelay > maxInitialDelay {
		fields = append(fields, fmt.Sprintf("retry_policy.initial_delay_ms must be %v-%v", minInitialDelay, maxInitialDelay))
	}
	if p.MaxDelay < minMaxDelay || p.MaxDelay > maxMaxDelay {
		fields = append(fields, fmt.Sprintf("retry_policy.max_delay_ms must be %v-%v", minMaxDelay, maxMaxDelay))
	}
	for _, c := range p.RetryableErrors {
		switch c {
		case ErrorClassNetwork, ErrorClassTimeout, ErrorClassHTTP, ErrorClassRateLimited, ErrorClassUnknown:
		default:
			fields = append(fields, fmt.Sprintf("unknown retryable error class %q", c))
		}
	}
	return fields
}
