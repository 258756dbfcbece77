package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/adalundhe/architect/core/request"
)

// Fingerprint identifies a semantically identical generation request.
type Fingerprint string

// Short returns an abbreviated form for logs.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// NewFingerprint hashes everything that changes the reply: template version,
// kind, mode, normalized text, prior code, error context, session history
// and model id.
func NewFingerprint(req *request.GenerationRequest, templateVersion, model string) Fingerprint {
	return hashFields(
		templateVersion,
		string(req.Kind()),
		string(req.Mode()),
		req.NormalizedText(),
		req.PriorCode(),
		req.ErrorContext(),
		req.History(),
		model,
	)
}

// hashFields length-prefixes every field so that ("ab", "c") and ("a", "bc")
// never collide.
func hashFields(fields ...string) Fingerprint {
	h := sha256.New()
	var size [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(size[:], uint64(len(f)))
		h.Write(size[:])
		h.Write([]byte(f))
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
