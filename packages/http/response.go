package http

import (
	"net/textproto"
	"strings"
	"time"
)

// Response is the raw result a Transport produces for one exchange. The
// pipeline copies it into an Envelope or a ServerError unchanged.
type Response struct {
	StatusCode int
	StatusText string
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) Header(key string) string {
	return headerValue(r.Headers, key)
}

// headerValue returns the first value for key, matched case-insensitively.
// Transports other than net/http may not canonicalize names.
func headerValue(headers map[string][]string, key string) string {
	if v := headers[textproto.CanonicalMIMEHeaderKey(key)]; len(v) > 0 {
		return v[0]
	}
	for k, v := range headers {
		if len(v) > 0 && strings.EqualFold(k, key) {
			return v[0]
		}
	}
	return ""
}
