package remote

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// SignPhoto returns the signature that authorizes one proxied photo without the service token.
// The signature covers ref, maxWidth and expires, keyed by the service token. expires is a Unix
// time; zero means the signature does not expire.
func SignPhoto(secret, ref string, maxWidth int, expires int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ref + "\n" + strconv.Itoa(max(maxWidth, 0)) + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPhoto reports whether sig was produced by SignPhoto for the same arguments and has
// not expired at now.
func VerifyPhoto(secret, ref string, maxWidth int, expires int64, sig string, now time.Time) bool {
	if secret == "" || sig == "" {
		return false
	}
	if expires > 0 && now.Unix() > expires {
		return false
	}
	want := SignPhoto(secret, ref, maxWidth, expires)
	return hmac.Equal([]byte(want), []byte(sig))
}
