// Package privacy turns client identifiers into values that are safe to persist or log.
package privacy

import (
	"encoding/hex"
	"errors"
	"net"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hasher produces keyed, one-way digests. The key keeps digests of low-entropy inputs
// such as IPv4 addresses from being reversed by enumeration.
type Hasher struct {
	key []byte
}

// NewHasher builds a hasher with a 16 to 64 byte key.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) < 16 {
		return nil, errors.New("hash key must be at least 16 bytes")
	}
	if len(key) > blake2b.Size {
		return nil, errors.New("hash key must be at most 64 bytes")
	}
	return &Hasher{key: append([]byte(nil), key...)}, nil
}

// Hash returns the hex BLAKE2b-256 digest of the parts joined by a separator that
// cannot appear in an IP or a fingerprint.
func (h *Hasher) Hash(parts ...string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Key length is checked in NewHasher.
		panic(err)
	}
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte{0})
		}
		mac.Write([]byte(p))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// HashIP digests an IP address after canonicalizing its text form.
func (h *Hasher) HashIP(ip string) string {
	if parsed := net.ParseIP(strings.TrimSpace(ip)); parsed != nil {
		ip = parsed.String()
	}
	return h.Hash("ip", ip)
}

// HashFingerprint digests a composite client fingerprint.
func (h *Hasher) HashFingerprint(fingerprint string) string {
	return h.Hash("fp", fingerprint)
}

// AnonymizeIP truncates an address for log lines: IPv4 to /24, IPv6 to /48.
// Unparseable input yields "invalid".
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "invalid"
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
