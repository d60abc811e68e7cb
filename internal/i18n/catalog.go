// Package i18n holds the user-facing message catalog. English is the base
// language; Indonesian is the only translation.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"ugcvideo/internal/domain"
)

// Message keys.
const (
	MsgGenerationNotFound   = "generation_not_found"
	MsgRefundOnlyFailed     = "refund_only_failed"
	MsgRefundNotEligible    = "refund_not_eligible"
	MsgRefundAlreadyDone    = "refund_already_done"
	MsgRefundSucceeded      = "refund_succeeded"
	MsgRefundFailed         = "refund_failed"
	MsgRetryOnlyFailed      = "retry_only_failed"
	MsgRetryNotAllowed      = "retry_not_allowed"
	MsgRetryNoCredits       = "retry_insufficient_credits"
	MsgInsufficientCredits  = "insufficient_credits"
	MsgValidationFailed     = "validation_failed"
	MsgUnauthorized         = "unauthorized"
	MsgConflict             = "conflict"
	MsgInternal             = "internal_error"
	MsgClientTimeout        = "client_timeout"
	msgErrorTypePrefix      = "error_type."
	defaultLanguageFallback = "en"
)

var supported = []language.Tag{language.English, language.Indonesian}

var matcher = language.NewMatcher(supported)

var messages = map[language.Tag]map[string]string{
	language.English: {
		MsgGenerationNotFound:  "Generation not found or does not belong to you",
		MsgRefundOnlyFailed:    "Only failed generations can be refunded",
		MsgRefundNotEligible:   "This generation is not eligible for refund (user error or validation error)",
		MsgRefundAlreadyDone:   "Credits have already been refunded for this generation",
		MsgRefundSucceeded:     "Successfully refunded %d credits",
		MsgRefundFailed:        "Failed to process refund. Please try again or contact support.",
		MsgRetryOnlyFailed:     "Only failed generations can be retried",
		MsgRetryNotAllowed:     "This generation cannot be retried",
		MsgRetryNoCredits:      "Insufficient credits. Need at least %d credits to retry.",
		MsgInsufficientCredits: "Insufficient credits. Need at least %d credits.",
		MsgValidationFailed:    "Some fields are invalid. Please check your input.",
		MsgUnauthorized:        "Please sign in to continue.",
		MsgConflict:            "This generation changed while we were updating it. Please refresh.",
		MsgInternal:            "Something went wrong. Please try again or contact support.",
		MsgClientTimeout:       "Generation is taking longer than expected. Check back later.",

		msgErrorTypePrefix + string(domain.ErrorTypeUser):       domain.ErrorTypeUser.DefaultMessage(),
		msgErrorTypePrefix + string(domain.ErrorTypeValidation): domain.ErrorTypeValidation.DefaultMessage(),
		msgErrorTypePrefix + string(domain.ErrorTypeSystem):     domain.ErrorTypeSystem.DefaultMessage(),
		msgErrorTypePrefix + string(domain.ErrorTypeService):    domain.ErrorTypeService.DefaultMessage(),
		msgErrorTypePrefix + string(domain.ErrorTypeTimeout):    domain.ErrorTypeTimeout.DefaultMessage(),
	},
	language.Indonesian: {
		MsgGenerationNotFound:  "Generasi tidak ditemukan atau bukan milik Anda",
		MsgRefundOnlyFailed:    "Hanya generasi yang gagal yang dapat dikembalikan kreditnya",
		MsgRefundNotEligible:   "Generasi ini tidak memenuhi syarat pengembalian kredit (kesalahan pengguna atau validasi)",
		MsgRefundAlreadyDone:   "Kredit untuk generasi ini sudah dikembalikan",
		MsgRefundSucceeded:     "Berhasil mengembalikan %d kredit",
		MsgRefundFailed:        "Gagal memproses pengembalian kredit. Silakan coba lagi atau hubungi dukungan.",
		MsgRetryOnlyFailed:     "Hanya generasi yang gagal yang dapat diulang",
		MsgRetryNotAllowed:     "Generasi ini tidak dapat diulang",
		MsgRetryNoCredits:      "Kredit tidak cukup. Dibutuhkan minimal %d kredit untuk mengulang.",
		MsgInsufficientCredits: "Kredit tidak cukup. Dibutuhkan minimal %d kredit.",
		MsgValidationFailed:    "Beberapa kolom tidak valid. Periksa kembali input Anda.",
		MsgUnauthorized:        "Silakan masuk untuk melanjutkan.",
		MsgConflict:            "Generasi ini berubah saat sedang diperbarui. Silakan muat ulang.",
		MsgInternal:            "Terjadi kesalahan. Silakan coba lagi atau hubungi dukungan.",
		MsgClientTimeout:       "Proses generasi lebih lama dari biasanya. Silakan cek kembali nanti.",

		msgErrorTypePrefix + string(domain.ErrorTypeUser):       "Input tidak valid. Periksa data Anda dan coba lagi.",
		msgErrorTypePrefix + string(domain.ErrorTypeValidation): "Perbaiki kesalahan validasi lalu coba lagi.",
		msgErrorTypePrefix + string(domain.ErrorTypeSystem):     "Terjadi kesalahan sistem. Kredit Anda akan dikembalikan otomatis.",
		msgErrorTypePrefix + string(domain.ErrorTypeService):    "Layanan AI sedang tidak tersedia. Kredit Anda akan dikembalikan.",
		msgErrorTypePrefix + string(domain.ErrorTypeTimeout):    "Proses generasi terlalu lama dan dihentikan. Kredit Anda akan dikembalikan.",
	},
}

// Match picks the closest supported language for a locale string such as
// "id", "id-ID" or an Accept-Language header value.
func Match(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Negotiate returns the supported language code that best serves locale, and
// false when locale is empty or names no supported language.
func Negotiate(locale string) (string, bool) {
	tags, _, err := language.ParseAcceptLanguage(strings.TrimSpace(locale))
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	base, _ := supported[idx].Base()
	return base.String(), true
}

// Base returns the two-letter language code for locale.
func Base(locale string) string {
	base, _ := Match(locale).Base()
	if s := base.String(); s != "" {
		return s
	}
	return defaultLanguageFallback
}

// T translates key into locale, formatting args when given. Unknown keys are
// returned unchanged.
func T(locale, key string, args ...any) string {
	msg, ok := messages[Match(locale)][key]
	if !ok {
		msg, ok = messages[language.English][key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// ErrorMessage localizes a stored failure message. Messages written by the
// external processor are passed through; taxonomy defaults are translated.
func ErrorMessage(locale string, errType domain.ErrorType, stored string) string {
	if errType == "" {
		return stored
	}
	if stored != "" && stored != errType.DefaultMessage() {
		return stored
	}
	return T(locale, msgErrorTypePrefix+string(errType))
}
