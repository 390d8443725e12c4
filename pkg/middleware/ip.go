package middleware

import (
	"strings"

	"github.com/Suhaibinator/SBridge/pkg/common"
	"github.com/Suhaibinator/SBridge/pkg/environ"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the host's REMOTE_ADDR variable
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For
	// If false, REMOTE_ADDR will be used for all sources
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// ClientIPKey is the environment key holding the client IP
const ClientIPKey = "sbridge.ClientIp"

// ClientIP returns the client IP stored by ClientIPMiddleware
func ClientIP(env environ.Env) string {
	return environ.Get(env, ClientIPKey, "")
}

// ClientIPMiddleware creates a middleware that extracts the client IP from the
// request and stores it in the environment
func ClientIPMiddleware(config *IPConfig) common.Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next common.AppFunc) common.AppFunc {
		return func(env environ.Env) error {
			env[ClientIPKey] = extractClientIP(env, config)
			return next(env)
		}
	}
}

// remoteAddr returns the host's REMOTE_ADDR variable
func remoteAddr(env environ.Env) string {
	return environ.Get(env, environ.ServerVariablePrefix+"REMOTE_ADDR", "")
}

// extractClientIP extracts the client IP from the environment based on the configuration
func extractClientIP(env environ.Env, config *IPConfig) string {
	headers := env.RequestHeaders()
	var ip string

	switch config.Source {
	case IPSourceXForwardedFor:
		ip = extractIPFromXForwardedFor(headers)
	case IPSourceXRealIP:
		ip = headers.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = headers.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = remoteAddr(env)
	default:
		ip = extractIPFromXForwardedFor(headers)
	}

	// If we don't trust proxy headers or couldn't extract an IP, fall back to REMOTE_ADDR
	if !config.TrustProxy || ip == "" {
		ip = remoteAddr(env)
	}

	return cleanIP(ip)
}

// extractIPFromXForwardedFor extracts the client IP from the X-Forwarded-For header
// The header contains a comma-separated list of IPs, with the leftmost being the original client
func extractIPFromXForwardedFor(headers *environ.Headers) string {
	xff := headers.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}

	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an IP address if present
func cleanIP(ip string) string {
	// IPv6 addresses with ports are formatted as [IPv6]:port
	if strings.HasPrefix(ip, "[") {
		if end := strings.LastIndex(ip, "]"); end > 0 {
			return ip[:end+1]
		}
		return ip
	}

	// An IPv6 address without brackets has no port
	if strings.Count(ip, ":") > 1 {
		return ip
	}

	if end := strings.LastIndex(ip, ":"); end > 0 {
		return ip[:end]
	}

	return ip
}
