package cart

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GuestCookieName carries the signed anonymous cart identifier.
const GuestCookieName = "guest_cart_id"

var errBadGuestCookie = errors.New("malformed guest cart cookie")

func signGuestID(secret, id string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

func verifyGuestID(secret, value string) (string, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", errBadGuestCookie
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", errBadGuestCookie
	}
	return id, nil
}

// GuestIDFromRequest extracts and verifies the guest identifier cookie.
// Returns an empty string when the cookie is absent or tampered with.
func GuestIDFromRequest(r *http.Request, secret string) string {
	c, err := r.Cookie(GuestCookieName)
	if err != nil {
		return ""
	}
	id, err := verifyGuestID(secret, c.Value)
	if err != nil {
		return ""
	}
	return id
}

// IssueGuestID mints a fresh guest identifier and sets its signed cookie.
func IssueGuestID(w http.ResponseWriter, secret string, ttl time.Duration, secure bool) string {
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    signGuestID(secret, id),
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// ClearGuestID expires the guest cookie after a merge.
func ClearGuestID(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
