package environ

// Version is the value stored under VersionKey.
const Version = "1.0"

// Request keys. All of them are populated before the pipeline is invoked.
const (
	VersionKey            = "owin.Version"
	RequestMethodKey      = "owin.RequestMethod"
	RequestSchemeKey      = "owin.RequestScheme"
	RequestPathBaseKey    = "owin.RequestPathBase"
	RequestPathKey        = "owin.RequestPath"
	RequestQueryStringKey = "owin.RequestQueryString"
	RequestProtocolKey    = "owin.RequestProtocol"
	RequestBodyKey        = "owin.RequestBody"
	RequestHeadersKey     = "owin.RequestHeaders"
	CallCancelledKey      = "owin.CallCancelled"
)

// Response keys. ResponseHeadersKey and ResponseBodyKey are populated before
// dispatch; the status code and reason phrase are set by middleware.
const (
	ResponseHeadersKey      = "owin.ResponseHeaders"
	ResponseBodyKey         = "owin.ResponseBody"
	ResponseStatusCodeKey   = "owin.ResponseStatusCode"
	ResponseReasonPhraseKey = "owin.ResponseReasonPhrase"
)

// Duplex keys. DuplexFuncKey is set by middleware that wants to switch
// protocols; the others live in the duplex session environment.
const (
	DuplexVersion = "1.0"
	DuplexSupport = "WebSocketFunc"

	DuplexVersionKey       = "websocket.Version"
	DuplexSupportKey       = "websocket.Support"
	DuplexFuncKey          = "websocket.Func"
	DuplexSendKey          = "websocket.SendAsync"
	DuplexReceiveKey       = "websocket.ReceiveAsync"
	DuplexCloseKey         = "websocket.CloseAsync"
	DuplexCallCancelledKey = "websocket.CallCancelled"
)

// Host keys. Generic middleware must not depend on these.
const (
	HostContextKey       = "host.Context"
	HostDuplexChannelKey = "host.DuplexChannel"

	// ServerVariablePrefix namespaces host variables copied into the environment.
	ServerVariablePrefix = "server."
)

// UpgradeStatusCode is the response status that, together with DuplexFuncKey,
// requests a protocol switch.
const UpgradeStatusCode = 101

// requiredKeys lists the keys that must exist before dispatch.
var requiredKeys = []string{
	VersionKey,
	RequestMethodKey,
	RequestSchemeKey,
	RequestPathBaseKey,
	RequestPathKey,
	RequestQueryStringKey,
	RequestProtocolKey,
	RequestBodyKey,
	RequestHeadersKey,
	CallCancelledKey,
	ResponseHeadersKey,
	ResponseBodyKey,
}

// RequiredKeys returns a copy of the keys every environment carries before dispatch.
func RequiredKeys() []string {
	keys := make([]string, len(requiredKeys))
	copy(keys, requiredKeys)
	return keys
}

// TraceIDKey holds the request's trace id once tracing middleware has run.
const TraceIDKey = "sbridge.TraceId"
