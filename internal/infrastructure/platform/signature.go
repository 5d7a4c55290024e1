package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignatureParam is the query parameter carrying the callback signature.
// It is excluded from the canonical signing string.
const SignatureParam = "hmac"

// VerifyCallbackSignature checks the authorization callback query
// string. The canonical signing string is every parameter except the
// signature itself, sorted lexicographically by key and joined as
// key=value pairs with &, HMAC-SHA256 under the shared secret, hex
// encoded. Missing secret or signature fails immediately; verification
// is never skipped.
func VerifyCallbackSignature(params url.Values, sharedSecret string) bool {
	if sharedSecret == "" {
		return false
	}
	provided := params.Get(SignatureParam)
	if provided == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if key == SignatureParam {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params.Get(key))
	}
	message := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write([]byte(message))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// SignCallbackParams computes the hex callback signature for a
// parameter set. Used by tests and by the provider simulator.
func SignCallbackParams(params url.Values, sharedSecret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == SignatureParam {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params.Get(key))
	}

	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks an asynchronous webhook delivery. The
// HMAC-SHA256 is computed over the raw, unparsed request body, exactly
// the bytes received; the header carries the expected value base64
// encoded. JSON parsing must happen only after this returns true.
func VerifyWebhookSignature(rawBody []byte, headerSignature, sharedSecret string) bool {
	if sharedSecret == "" || headerSignature == "" {
		return false
	}

	provided, err := base64.StdEncoding.DecodeString(headerSignature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(rawBody)

	return hmac.Equal(mac.Sum(nil), provided)
}
