package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

// RandomHex returns n cryptographically random bytes encoded as hex.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

func SHA256Hex(b []byte) string {
	hashed := sha256.Sum256(b)
	return hex.EncodeToString(hashed[:])
}

// DigestMod interprets the hex digest as a big-endian integer and returns
// digest mod n. This is the reduction any third party must reproduce when
// verifying a draw.
func DigestMod(digest string, n int64) (int64, error) {
	b, err := hex.DecodeString(digest)
	if err != nil {
		return 0, err
	}

	v := new(big.Int).SetBytes(b)
	return new(big.Int).Mod(v, big.NewInt(n)).Int64(), nil
}
