package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/bytedance/sonic"
)

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the leading 8 characters of a digest, for log
// fields and display.
func ShortDigest(digest string) string {
	if len(digest) < 8 {
		return digest
	}
	return digest[:8]
}

// PayloadID extracts the record identifier a JSON payload names, when
// it names a usable one.
func PayloadID(payload []byte) (string, bool) {
	var probe struct {
		ID any `json:"id"`
	}
	if err := sonic.Unmarshal(payload, &probe); err != nil {
		return "", false
	}
	switch v := probe.ID.(type) {
	case string:
		if ValidateID(v) == nil {
			return v, true
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// PayloadKey derives a stable identifier for a JSON payload: the
// payload's own "id" field when it carries a usable one, otherwise a
// digest of its bytes. Identical payloads without ids collapse onto one
// key, which is what a write-once cache wants.
func PayloadKey(payload []byte) string {
	if id, ok := PayloadID(payload); ok {
		return id
	}
	return Digest(payload)
}
