package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// Attribute keys and query parameter names that always carry secrets.
var (
	headerKeys = []string{
		"authorization", "proxy-authorization", "cookie", "set-cookie",
		"x-api-key", "x-auth-token", "x-csrf-token", "x-xsrf-token",
	}
	credentialKeys = []string{
		"password", "passwd", "secret", "token", "auth", "credential", "credentials",
		"api_key", "apikey", "api-key", "access_token", "refresh_token", "id_token",
		"private_key", "privatekey", "secret_key", "secretkey", "client_secret",
	}
	sessionKeys = []string{
		"session", "session_id", "sessionid", "sid", "jsessionid", "phpsessid",
		"sso", "ticket", "saml", "samlresponse",
	}
	// signedLinkKeys are query parameters of pre-signed download and
	// attachment links that docs portals hand out.
	signedLinkKeys = []string{
		"sig", "signature", "x-amz-signature", "x-amz-credential",
		"x-amz-security-token", "x-goog-signature", "code",
	}
)

var sensitiveKeys = keySet(headerKeys, credentialKeys, sessionKeys, signedLinkKeys)

// sensitiveKeywords flag a key when they appear anywhere in it.
// A bare "key" is deliberately absent: "primary_key" or "keyboard" are not secrets.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private", "signature",
}

// sensitivePatterns match secret values whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// urlPattern finds http(s) URLs inside free text such as error messages.
var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

func keySet(groups ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, g := range groups {
		for _, k := range g {
			set[k] = true
		}
	}
	return set
}

// SecureHandler wraps an slog.Handler and sanitizes every attribute before
// it reaches the wrapped handler.
//
// Attributes are masked when their key is sensitive or their value looks
// like a secret. URLs keep their shape, with only sensitive query values
// masked, including URLs embedded in error messages. Header maps have
// their sensitive entries masked.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the wrapped handler handles level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, redactText(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with the sanitized attrs added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup returns a handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if masked := redactText(s); masked != s {
			return slog.String(a.Key, masked)
		}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			msg := x.Error()
			if masked := redactText(msg); masked != msg {
				return slog.String(a.Key, masked)
			}
		case map[string]string:
			return slog.Any(a.Key, redactHeaderMap(x))
		case http.Header:
			return slog.Any(a.Key, redactHTTPHeader(x))
		case *url.URL:
			if x != nil {
				return slog.String(a.Key, redactText(x.String()))
			}
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// redactText masks sensitive query values of every URL found in s.
func redactText(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	return urlPattern.ReplaceAllStringFunc(s, redactURLQuery)
}

// redactURLQuery masks the values of sensitive query parameters in one URL.
// Parameter order, unknown encodings and the fragment are preserved.
func redactURLQuery(rawURL string) string {
	base, query, found := strings.Cut(rawURL, "?")
	if !found || query == "" {
		return rawURL
	}
	query, fragment, hasFragment := strings.Cut(query, "#")

	params := strings.Split(query, "&")
	changed := false
	for i, param := range params {
		name, _, hasValue := strings.Cut(param, "=")
		if !hasValue {
			continue
		}
		key, err := url.QueryUnescape(name)
		if err != nil {
			key = name
		}
		if isSensitiveKey(key) {
			params[i] = name + "=" + MaskValue
			changed = true
		}
	}
	if !changed {
		return rawURL
	}

	out := base + "?" + strings.Join(params, "&")
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

func redactHeaderMap(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSensitiveKey(k) || isSensitiveValue(v) {
			v = MaskValue
		}
		out[k] = v
	}
	return out
}

func redactHTTPHeader(headers http.Header) http.Header {
	out := make(http.Header, len(headers))
	for k, vs := range headers {
		if isSensitiveKey(k) {
			out[k] = []string{MaskValue}
			continue
		}
		out[k] = vs
	}
	return out
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}

// NewSecureLogger returns a text logger writing to w through a SecureHandler.
// verbose lowers the level from Warn to Debug.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output, for log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}
