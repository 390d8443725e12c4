package adapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/Suhaibinator/SBridge/pkg/environ"
	"github.com/Suhaibinator/SBridge/pkg/host"
	"github.com/Suhaibinator/SBridge/pkg/stream"
)

// exchange is the per-request state shared between construction, the commit
// callback and completion.
type exchange struct {
	hc     host.Context
	env    environ.Env
	body   *stream.Trigger
	status int
	forced bool
}

// newExchange builds the environment for hc. It reads no request bytes and
// writes no response bytes.
func (a *Adapter) newExchange(hc host.Context) (*exchange, error) {
	if hc == nil {
		return nil, &ConstructionError{Err: ErrNilHost}
	}
	method := hc.Method()
	if method == "" {
		return nil, &ConstructionError{Err: ErrNoMethod}
	}
	out := hc.Output()
	if out == nil {
		return nil, &ConstructionError{Err: ErrNoOutput}
	}

	pathBase, path := splitPath(hc.ApplicationPath(), a.root, hc.Path())

	body := hc.Body()
	if body == nil {
		body = http.NoBody
	}
	ctx := hc.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	x := &exchange{hc: hc}
	x.body = stream.New(out, x.commit)
	x.env = environ.Env{
		environ.VersionKey:            environ.Version,
		environ.RequestMethodKey:      method,
		environ.RequestSchemeKey:      hc.Scheme(),
		environ.RequestPathBaseKey:    pathBase,
		environ.RequestPathKey:        path,
		environ.RequestQueryStringKey: hc.QueryString(),
		environ.RequestProtocolKey:    hc.Protocol(),
		environ.RequestBodyKey:        body,
		environ.RequestHeadersKey:     environ.HeadersFrom(hc.Header()),
		environ.CallCancelledKey:      ctx,
		environ.ResponseHeadersKey:    environ.NewHeaders(),
		environ.ResponseBodyKey:       x.body,
		environ.HostContextKey:        hc,
	}

	for _, v := range hc.Variables() {
		if excludedVariable(v.Name) {
			continue
		}
		x.env[environ.ServerVariablePrefix+v.Name] = v.Value
	}

	if a.duplex {
		if acc, ok := hc.(host.DuplexAcceptor); ok && acc.IsDuplexRequest() {
			x.env[environ.DuplexVersionKey] = environ.DuplexVersion
			x.env[environ.DuplexSupportKey] = environ.DuplexSupport
		}
	}

	return x, nil
}

// excludedVariable reports whether a host variable duplicates header data.
func excludedVariable(name string) bool {
	return strings.HasPrefix(name, "HTTP_") || name == "ALL_HTTP" || name == "ALL_RAW"
}

// normalizeRoot returns root with a leading slash and no trailing slash.
// An empty or "/" root normalizes to "".
func normalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	root = strings.TrimRight(root, "/")
	if root == "" {
		return ""
	}
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return root
}

// splitPath divides full into the application root and the remainder.
// The root is appPath followed by root. When full is not under it, the
// path-base is empty and full is returned unchanged.
func splitPath(appPath, root, full string) (pathBase, path string) {
	base := normalizeRoot(appPath) + root
	if base == "" {
		return "", full
	}
	if full == base {
		return base, ""
	}
	if strings.HasPrefix(full, base+"/") {
		return base, full[len(base):]
	}
	return "", full
}
