package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"strings"
)

const credentialKeyEnv = "BW_CREDENTIAL_KEY"
const credentialPrevKeyEnv = "BW_CREDENTIAL_PREV_KEY"

type sealedCredential struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// SealCredential encrypts an account access token for storage. Without a key
// in the environment the token is stored as-is; the account id binds the
// ciphertext to its row.
func SealCredential(accountID, token string) string {
	if token == "" {
		return token
	}
	gcm := loadPrimaryCredentialGCM()
	if gcm == nil {
		return token
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return token
	}
	ct := gcm.Seal(nil, nonce, []byte(token), credentialAAD(accountID))
	payload := sealedCredential{
		Enc:   "aes-gcm-v1",
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(ct),
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return token
	}
	return string(out)
}

// RevealCredential decrypts a stored credential, trying the current key first
// and then the previous one so key rotation does not strand accounts.
// Plaintext values pass through untouched.
func RevealCredential(accountID, stored string) string {
	if stored == "" {
		return stored
	}
	var payload sealedCredential
	if err := json.Unmarshal([]byte(stored), &payload); err != nil {
		return stored
	}
	if payload.Enc != "aes-gcm-v1" || payload.Nonce == "" || payload.Data == "" {
		return stored
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return stored
	}
	ct, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return stored
	}
	for _, gcm := range loadCredentialGCMs() {
		pt, err := gcm.Open(nil, nonce, ct, credentialAAD(accountID))
		if err == nil {
			return string(pt)
		}
	}
	return stored
}

func credentialAAD(accountID string) []byte {
	return []byte(strings.TrimSpace(strings.ToLower(accountID)))
}

func loadPrimaryCredentialGCM() cipher.AEAD {
	keyBytes := parseCredentialKey(strings.TrimSpace(os.Getenv(credentialKeyEnv)))
	if len(keyBytes) == 0 {
		return nil
	}
	return newGCM(keyBytes)
}

func loadCredentialGCMs() []cipher.AEAD {
	keys := []string{
		strings.TrimSpace(os.Getenv(credentialKeyEnv)),
		strings.TrimSpace(os.Getenv(credentialPrevKeyEnv)),
	}
	out := make([]cipher.AEAD, 0, 2)
	seen := map[string]struct{}{}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keyBytes := parseCredentialKey(key)
		if len(keyBytes) == 0 {
			continue
		}
		if gcm := newGCM(keyBytes); gcm != nil {
			out = append(out, gcm)
		}
	}
	return out
}

func parseCredentialKey(k string) []byte {
	if strings.TrimSpace(k) == "" {
		return nil
	}
	// Prefer base64 key. fallback to raw bytes.
	keyBytes, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		keyBytes = []byte(k)
	}
	// Normalize key sizes accepted by AES.
	switch len(keyBytes) {
	case 16, 24, 32:
		// keep
	default:
		if len(keyBytes) < 16 {
			return nil
		}
		if len(keyBytes) < 24 {
			keyBytes = keyBytes[:16]
		} else if len(keyBytes) < 32 {
			keyBytes = keyBytes[:24]
		} else {
			keyBytes = keyBytes[:32]
		}
	}
	return keyBytes
}

func newGCM(keyBytes []byte) cipher.AEAD {
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil
	}
	return gcm
}
