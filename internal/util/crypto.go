package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	sessionIDBytes       = 12
	sessionPasswordBytes = 4
	tokenBytes           = 32
)

// GenerateSessionID produces the opaque external identifier used in all
// client-facing URLs: 24 lowercase hex characters, 96 bits of entropy.
func GenerateSessionID() (string, error) {
	bytes := make([]byte, sessionIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateSessionPassword produces the 8-character uppercase hex one-time
// password. Low entropy is deliberate: the operator reads it aloud or sends
// a join link, and the session expiry bounds the guessing window.
func GenerateSessionPassword() (string, error) {
	bytes := make([]byte, sessionPasswordBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(bytes)), nil
}

// HashPassword returns the SHA-256 hex digest of a session password.
func HashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return hex.EncodeToString(hash[:])
}

// VerifyPassword re-hashes the candidate and compares digests in constant
// time, so the comparison never short-circuits on an early mismatch.
func VerifyPassword(password, hash string) bool {
	return ConstantTimeEqual(HashPassword(password), hash)
}

// GenerateToken produces a 64-character hex API token for host accounts.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
