package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jimyag/aggravator/pkg/errors"
)

// Ansible Vault 1.1/1.2 载荷格式:
//
//	$ANSIBLE_VAULT;1.1;AES256
//	<hex 编码正文，每行 80 字符>
//
// 正文 hex 解码后是三行: hex(salt)、HMAC-SHA256 十六进制摘要、hex(密文)
// 密钥派生: PBKDF2-HMAC-SHA256，10000 轮，输出 80 字节
// 前 32 字节为 AES-256-CTR 密钥，随后 32 字节为 HMAC 密钥，最后 16 字节为 IV
const (
	headerPrefix = "$ANSIBLE_VAULT"
	cipherName   = "AES256"

	saltLen       = 32
	keyLen        = 32
	ivLen         = 16
	derivedLen    = keyLen*2 + ivLen
	kdfIterations = 10000
	lineWidth     = 80
)

// IsEncrypted 判断数据是否为 vault 加密载荷
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte(headerPrefix))
}

// Decrypt 用密码解密 vault 载荷并返回明文
// HMAC 校验失败返回 BadKey，载荷格式非法返回 CorruptBlob
func Decrypt(data []byte, password string) ([]byte, error) {
	body, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}

	salt, expectedMAC, ciphertext, err := parseBody(body)
	if err != nil {
		return nil, err
	}

	aesKey, hmacKey, iv := deriveKeys([]byte(password), salt)

	// 先验证 HMAC，再解密
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ciphertext)
	if subtle.ConstantTimeCompare(mac.Sum(nil), expectedMAC) != 1 {
		return nil, errors.NewBadKeyError("")
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, errors.NewCorruptBlobError("", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return unpad(plaintext)
}

// Encrypt 用密码加密明文，生成 1.1 版本的 vault 载荷
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aesKey, hmacKey, iv := deriveKeys([]byte(password), salt)

	padded := pad(plaintext)
	ciphertext := make([]byte, len(padded))

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, padded)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ciphertext)

	body := strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(mac.Sum(nil)),
		hex.EncodeToString(ciphertext),
	}, "\n")

	var out bytes.Buffer
	out.WriteString(headerPrefix + ";1.1;" + cipherName + "\n")
	encoded := hex.EncodeToString([]byte(body))
	for len(encoded) > lineWidth {
		out.WriteString(encoded[:lineWidth])
		out.WriteByte('\n')
		encoded = encoded[lineWidth:]
	}
	out.WriteString(encoded)
	out.WriteByte('\n')

	return out.Bytes(), nil
}

// parseEnvelope 校验头部并 hex 解码正文
func parseEnvelope(data []byte) ([]byte, error) {
	text := strings.TrimSpace(string(data))
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) != 2 {
		return nil, errors.NewCorruptBlobError("", fmt.Errorf("missing payload body"))
	}

	// 头部: $ANSIBLE_VAULT;<version>;<cipher>[;<vault-id>]
	fields := strings.Split(strings.TrimSpace(lines[0]), ";")
	if len(fields) < 3 || fields[0] != headerPrefix {
		return nil, errors.NewCorruptBlobError("", fmt.Errorf("invalid header %q", lines[0]))
	}
	version := fields[1]
	if version != "1.1" && version != "1.2" {
		return nil, errors.NewCorruptBlobError("", fmt.Errorf("unsupported payload version %q", version))
	}
	if fields[2] != cipherName {
		return nil, errors.NewCorruptBlobError("", fmt.Errorf("unsupported cipher %q", fields[2]))
	}

	body, err := hex.DecodeString(strings.ReplaceAll(lines[1], "\n", ""))
	if err != nil {
		return nil, errors.NewCorruptBlobError("", err)
	}
	return body, nil
}

// parseBody 拆出 salt、HMAC 摘要和密文
func parseBody(body []byte) (salt, mac, ciphertext []byte, err error) {
	parts := bytes.SplitN(body, []byte("\n"), 3)
	if len(parts) != 3 {
		return nil, nil, nil, errors.NewCorruptBlobError("", fmt.Errorf("payload body must have 3 parts, got %d", len(parts)))
	}

	if salt, err = hex.DecodeString(string(parts[0])); err != nil {
		return nil, nil, nil, errors.NewCorruptBlobError("", fmt.Errorf("invalid salt: %w", err))
	}
	if mac, err = hex.DecodeString(string(parts[1])); err != nil {
		return nil, nil, nil, errors.NewCorruptBlobError("", fmt.Errorf("invalid hmac: %w", err))
	}
	if ciphertext, err = hex.DecodeString(string(parts[2])); err != nil {
		return nil, nil, nil, errors.NewCorruptBlobError("", fmt.Errorf("invalid ciphertext: %w", err))
	}
	return salt, mac, ciphertext, nil
}

// deriveKeys 从密码和盐派生 AES 密钥、HMAC 密钥和 IV
func deriveKeys(password, salt []byte) (aesKey, hmacKey, iv []byte) {
	derived := pbkdf2.Key(password, salt, kdfIterations, derivedLen, sha256.New)
	return derived[:keyLen], derived[keyLen : keyLen*2], derived[keyLen*2:]
}

// pad 按 PKCS#7 填充到 AES 块大小
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad 去除 PKCS#7 填充
func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.NewCorruptBlobError("", fmt.Errorf("empty plaintext"))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errors.NewCorruptBlobError("", fmt.Errorf("invalid padding"))
	}
	return data[:len(data)-n], nil
}
