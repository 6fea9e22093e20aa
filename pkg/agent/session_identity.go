package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Hashed session keys carry this prefix so they pass through unchanged when
// a message is replayed.
const hashedKeyPrefix = "sk1:"

func isHashedSessionKey(key string) bool {
	return strings.HasPrefix(strings.TrimSpace(key), hashedKeyPrefix)
}

// resolveSessionKey names one conversation thread: a sender in a chat on a
// channel. The result is a digest, so history maps never hold raw chat ids.
// When the triple is incomplete, a caller-supplied key is used as given.
func resolveSessionKey(explicit, channel, chatID, senderID string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if isHashedSessionKey(explicit) {
		return explicit, nil
	}

	parts := []string{
		strings.ToLower(strings.TrimSpace(channel)),
		strings.TrimSpace(chatID),
		strings.TrimSpace(senderID),
	}
	for _, p := range parts {
		if p != "" {
			continue
		}
		if explicit != "" {
			return explicit, nil
		}
		return "", errors.New("resolve session key: channel, chat and sender are required")
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hashedKeyPrefix + hex.EncodeToString(sum[:12]), nil
}
