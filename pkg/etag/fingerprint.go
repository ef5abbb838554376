package etag

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrUnknownAlgorithm is returned for unsupported fingerprint algorithms.
var ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")

// Algorithm selects how content is turned into an ETag token.
type Algorithm string

const (
	// AlgorithmSHA1 produces `<hex length>-<27 chars of base64 SHA-1>`,
	// the token format of the widely used Node.js etag module.
	AlgorithmSHA1 Algorithm = "sha1"

	// AlgorithmSHA256 produces `<hex length>-<base64url SHA-256>`.
	AlgorithmSHA256 Algorithm = "sha256"

	// AlgorithmXXHash produces `<hex length>-<16 hex digits of xxh64>`.
	AlgorithmXXHash Algorithm = "xxhash"
)

type hashFunc func(data []byte) string

var hashers = map[Algorithm]hashFunc{
	AlgorithmSHA1:   sha1Token,
	AlgorithmSHA256: sha256Token,
	AlgorithmXXHash: xxhashToken,
}

func sha1Token(data []byte) string {
	sum := sha1.Sum(data)
	return lengthPrefix(data) + base64.StdEncoding.EncodeToString(sum[:])[:27]
}

func sha256Token(data []byte) string {
	sum := sha256.Sum256(data)
	return lengthPrefix(data) + base64.RawURLEncoding.EncodeToString(sum[:])
}

func xxhashToken(data []byte) string {
	sum := strconv.FormatUint(xxhash.Sum64(data), 16)
	return lengthPrefix(data) + strings.Repeat("0", 16-len(sum)) + sum
}

func lengthPrefix(data []byte) string {
	return strconv.FormatInt(int64(len(data)), 16) + "-"
}

// stripQuotes removes any double quotes from a token. The host adapter adds
// the quotes required on the wire.
func stripQuotes(token string) string {
	return strings.ReplaceAll(token, `"`, "")
}
