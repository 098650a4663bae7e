// Package signer issues and checks HMAC signed object URLs.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type HMACSigner struct {
	secret  []byte
	baseURL string
}

func NewHMACSigner(secret string, baseURL string) HMACSigner {
	return HMACSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SignURL returns baseURL/key?expires=..&signature=.. where the signature is
// HMAC-SHA256 over "METHOD|key|expires".
func (s HMACSigner) SignURL(method string, storageKey string, expiresAt time.Time) string {
	expires := strconv.FormatInt(expiresAt.Unix(), 10)
	query := url.Values{}
	query.Set("method", strings.ToUpper(method))
	query.Set("expires", expires)
	query.Set("signature", s.signature(method, storageKey, expires))
	return s.baseURL + "/" + storageKey + "?" + query.Encode()
}

func (s HMACSigner) Verify(method string, storageKey string, expiresAt time.Time, signature string, now time.Time) bool {
	if !now.Before(expiresAt) {
		return false
	}
	expected := s.signature(method, storageKey, strconv.FormatInt(expiresAt.Unix(), 10))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s HMACSigner) signature(method string, storageKey string, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.ToUpper(method) + "|" + storageKey + "|" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}
