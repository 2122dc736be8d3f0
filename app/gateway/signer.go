package gateway

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign computes the MD5 signature used by the payment family: non-empty
// fields except sign, sorted by key, joined as k=v with '&', followed by
// &key=<secret>, hashed and upper-cased.
func Sign(fields Fields, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", &ConfigurationError{Field: "pay_key"}
	}

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == FieldSign || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		items = append(items, k+"="+fields[k])
	}
	items = append(items, "key="+secret)

	sum := md5.Sum([]byte(strings.Join(items, "&")))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// Verify checks signature against the MD5 signature of fields.
func Verify(fields Fields, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected, err := Sign(fields, secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(signature))) == 1
}

// VerifyPayload verifies the sign field carried inside fields.
func VerifyPayload(fields Fields, secret string) bool {
	return Verify(fields, fields[FieldSign], secret)
}

// CardSign computes the SHA-1 signature of the card/ticket family: the
// non-empty values plus the api ticket, sorted by value, concatenated,
// lower-case hex.
func CardSign(values []string, apiTicket string) (string, error) {
	if strings.TrimSpace(apiTicket) == "" {
		return "", &ConfigurationError{Field: "api_ticket"}
	}

	items := make([]string, 0, len(values)+1)
	for _, v := range values {
		if v == "" {
			continue
		}
		items = append(items, v)
	}
	items = append(items, apiTicket)
	sort.Strings(items)

	sum := sha1.Sum([]byte(strings.Join(items, "")))
	return hex.EncodeToString(sum[:]), nil
}

// JSSDKSign signs a JS-SDK config request with the jsapi ticket.
func JSSDKSign(jsapiTicket, nonceStr, timestamp, url string) (string, error) {
	if strings.TrimSpace(jsapiTicket) == "" {
		return "", &ConfigurationError{Field: "jsapi_ticket"}
	}
	items := []string{
		"jsapi_ticket=" + jsapiTicket,
		"noncestr=" + nonceStr,
		"timestamp=" + timestamp,
		"url=" + url,
	}
	sum := sha1.Sum([]byte(strings.Join(items, "&")))
	return hex.EncodeToString(sum[:]), nil
}
