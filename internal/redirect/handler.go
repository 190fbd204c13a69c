package redirect

import (
	"log/slog"
	"net/http"
)

// NotFoundBody is the body sent when no rule matches
const NotFoundBody = "Not found!"

// Response describes what to send back for a single request
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Location returns the Location header value, empty if none
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// Responder turns a request into a Response
type Responder interface {
	Respond(r *http.Request) *Response
}

// Handler answers requests with redirects built from a RuleSet.
// It keeps no per-request state and is safe for concurrent use.
type Handler struct {
	rules  *RuleSet
	logger *slog.Logger
}

// NewHandler creates a handler for the given rules
func NewHandler(rules *RuleSet, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		rules:  rules,
		logger: logger,
	}
}

// EffectiveURL returns the Host header value followed by the request target,
// with nothing in between. This is the string rule patterns are matched against.
func EffectiveURL(r *http.Request) string {
	target := r.RequestURI
	if target == "" && r.URL != nil {
		target = r.URL.RequestURI()
	}
	return r.Host + target
}

// Respond implements Responder
func (h *Handler) Respond(r *http.Request) *Response {
	return h.Lookup(EffectiveURL(r))
}

// Lookup matches an effective URL against the rules and builds the response
func (h *Handler) Lookup(url string) *Response {
	rule, idx, rewritten := h.rules.Match(url)
	if rule == nil {
		h.logger.Debug("no match found", "url", url)
		return &Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{},
			Body:       NotFoundBody,
		}
	}

	h.logger.Debug("rule matched",
		"url", url,
		"rule", idx,
		"pattern", rule.Pattern(),
		"location", rewritten,
		"status", rule.StatusCode(),
	)

	header := http.Header{}
	header.Set("Location", rewritten)

	return &Response{
		StatusCode: rule.StatusCode(),
		Header:     header,
		Body:       rewritten,
	}
}

// ServeHTTP writes the response for r
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, h.Respond(r))
}

// WriteResponse copies resp onto w
func WriteResponse(w http.ResponseWriter, resp *Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resp.Body))
}
