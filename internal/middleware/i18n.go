package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"ugcvideo/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// edge proxies that already resolved the caller's country
var countryHeaders = []string{"CF-IPCountry", "X-Country-Code"}

// I18N stores the response locale and the caller's country in the request
// context. The locale comes from X-Locale, then Accept-Language, then the
// country (Indonesia maps to "id"), then defaultLocale. AuthJWT may later
// replace it with the token's locale claim.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := i18n.Base(defaultLocale)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			ctx := context.WithValue(r.Context(), LocaleKey, detectLocale(r, fallback, country))
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback, country string) string {
	if v, ok := i18n.Negotiate(r.Header.Get("X-Locale")); ok {
		return v
	}
	if v, ok := i18n.Negotiate(r.Header.Get("Accept-Language")); ok {
		return v
	}
	if country == "ID" {
		return "id"
	}
	return fallback
}

func normalizeLocale(locale string) string {
	return i18n.Base(locale)
}

// ClientIP returns the host part of RemoteAddr. Behind a proxy chimw.RealIP
// has already rewritten RemoteAddr from the forwarding headers.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry returns an upper-case ISO country code for the caller, or ""
// when neither the edge headers nor the lookup know it.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(key)); len(v) == 2 {
			return strings.ToUpper(v)
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}
