package user

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenKeyBytes = 20

// GenerateTokenKey 生成不透明 token（40 位十六进制，凭证本身不携带任何含义）。
func GenerateTokenKey() (string, error) {
	b := make([]byte, tokenKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
