package audit

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// PseudonymizeIP replaces an address with a keyed BLAKE2b digest so events
// from one client can still be correlated without storing the address. An
// empty key leaves the address unchanged.
func PseudonymizeIP(key []byte, ip string) string {
	if len(key) == 0 || ip == "" {
		return ip
	}
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return ""
	}
	h.Write([]byte(ip))
	return "ip:" + hex.EncodeToString(h.Sum(nil)[:16])
}
