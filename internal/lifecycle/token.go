package lifecycle

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const (
	// 32 random bytes hex-encoded: 64 chars, unguessable.
	tokenBytes = 32

	tempPasswordLength  = 16
	tempPasswordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewToken returns the capability token granting the public submitter
// access to their own invitation. Issued once per invitation, never
// reissued.
func NewToken() string {
	buf := make([]byte, tokenBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// NewTempPassword returns the one-time credential mailed to a freshly
// provisioned administrator. Only its bcrypt hash is ever stored.
func NewTempPassword() string {
	max := big.NewInt(int64(len(tempPasswordCharset)))
	out := make([]byte, tempPasswordLength)
	for i := range out {
		n, _ := rand.Int(rand.Reader, max)
		out[i] = tempPasswordCharset[n.Int64()]
	}
	return string(out)
}
