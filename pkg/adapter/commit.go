package adapter

import (
	"net/http"
	"sort"

	"github.com/Suhaibinator/SBridge/pkg/environ"
)

// commit is the response stream's first-write callback. It copies status,
// reason phrase and headers from the environment to the host.
func (x *exchange) commit() {
	x.status = x.env.StatusCode()
	x.hc.SetStatus(x.status)
	if reason, ok := x.env.ReasonPhrase(); ok {
		x.hc.SetReason(reason)
	}
	applyHeaders(x.env[environ.ResponseHeadersKey], x.hc.AddHeader)
}

// currentStatus is the committed status if the response has started, and the
// environment's status otherwise.
func (x *exchange) currentStatus() int {
	if x.body.Started() {
		return x.status
	}
	return x.env.StatusCode()
}

// applyHeaders adds every value in headers through add. *environ.Headers keeps
// insertion order; plain maps are applied in sorted name order.
func applyHeaders(headers any, add func(name, value string)) {
	switch h := headers.(type) {
	case *environ.Headers:
		h.Range(func(name string, values []string) bool {
			for _, v := range values {
				add(name, v)
			}
			return true
		})
	case http.Header:
		applySorted(h, add)
	case map[string][]string:
		applySorted(h, add)
	}
}

func applySorted(h map[string][]string, add func(name, value string)) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range h[name] {
			add(name, v)
		}
	}
}

// responseHeader returns the environment's response headers as an http.Header.
func responseHeader(env environ.Env) http.Header {
	out := http.Header{}
	applyHeaders(env[environ.ResponseHeadersKey], out.Add)
	return out
}
