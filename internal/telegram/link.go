package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Telegram caps /start payloads at 64 characters: the token is the user id
// plus a truncated HMAC.
const linkSigLen = 8

// LinkToken returns the /start payload that links a chat to userID.
func LinkToken(secret []byte, userID string) string {
	return userID + "_" + sign(secret, userID)
}

// ParseLinkToken verifies token and returns the user id it was issued for.
func ParseLinkToken(secret []byte, token string) (string, error) {
	i := strings.LastIndexByte(token, '_')
	if i <= 0 || i == len(token)-1 {
		return "", fmt.Errorf("telegram: malformed link token")
	}
	userID, sig := token[:i], token[i+1:]
	if !hmac.Equal([]byte(sig), []byte(sign(secret, userID))) {
		return "", fmt.Errorf("telegram: bad link token signature")
	}
	return userID, nil
}

// LinkURL is the deep link a user opens to connect their chat.
func LinkURL(botName string, secret []byte, userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botName, LinkToken(secret, userID))
}

func sign(secret []byte, userID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil)[:linkSigLen])
}
