package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// CipherMode selects the AES block mode used for refund notification
// payloads.
type CipherMode int

const (
	CipherECB CipherMode = iota
	CipherCBC
)

func (m CipherMode) String() string {
	if m == CipherCBC {
		return "cbc"
	}
	return "ecb"
}

func ParseCipherMode(raw string) (CipherMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "ecb":
		return CipherECB, nil
	case "cbc":
		return CipherCBC, nil
	default:
		return CipherECB, fmt.Errorf("unknown cipher mode %q", raw)
	}
}

// refundKey derives the AES-256 key: the lower-case MD5 hex of the pay key.
func refundKey(paySecret string) []byte {
	sum := md5.Sum([]byte(paySecret))
	return []byte(hex.EncodeToString(sum[:]))
}

// DecryptReqInfo decodes and decrypts a base64 req_info value.
func DecryptReqInfo(reqInfo, paySecret string, mode CipherMode) ([]byte, error) {
	if strings.TrimSpace(paySecret) == "" {
		return nil, &ConfigurationError{Field: "pay_key"}
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(reqInfo))
	if err != nil {
		return nil, &CryptoError{Op: "base64 decode", Err: err}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &CryptoError{Op: "decrypt", Err: fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))}
	}

	key := refundKey(paySecret)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "decrypt", Err: err}
	}

	plaintext := make([]byte, len(ciphertext))
	switch mode {
	case CipherCBC:
		cipher.NewCBCDecrypter(block, key[:aes.BlockSize]).CryptBlocks(plaintext, ciphertext)
	default:
		for start := 0; start < len(ciphertext); start += aes.BlockSize {
			block.Decrypt(plaintext[start:start+aes.BlockSize], ciphertext[start:start+aes.BlockSize])
		}
	}

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, &CryptoError{Op: "unpad", Err: err}
	}
	return unpadded, nil
}

// EncryptReqInfo is the inverse of DecryptReqInfo.
func EncryptReqInfo(plaintext []byte, paySecret string, mode CipherMode) (string, error) {
	if strings.TrimSpace(paySecret) == "" {
		return "", &ConfigurationError{Field: "pay_key"}
	}

	key := refundKey(paySecret)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", &CryptoError{Op: "encrypt", Err: err}
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	switch mode {
	case CipherCBC:
		cipher.NewCBCEncrypter(block, key[:aes.BlockSize]).CryptBlocks(ciphertext, padded)
	default:
		for start := 0; start < len(padded); start += aes.BlockSize {
			block.Encrypt(ciphertext[start:start+aes.BlockSize], padded[start:start+aes.BlockSize])
		}
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecodeRefundNotify parses a refund notification: the outer envelope and the
// decrypted inner document carried in req_info. An inner document that does
// not parse is reported as a CryptoError wrapping the FormatError, since it
// usually means the wrong key or mode.
func DecodeRefundNotify(body []byte, paySecret string, mode CipherMode) (Fields, Fields, error) {
	outer, err := Decode(body)
	if err != nil {
		return nil, nil, err
	}
	if outer.ReturnCode() != ResultSuccess {
		return outer, nil, &BusinessError{Endpoint: "refund_notify", ReturnCode: outer.ReturnCode(), ReturnMsg: outer[FieldReturnMsg]}
	}

	reqInfo := strings.TrimSpace(outer[FieldReqInfo])
	if reqInfo == "" {
		return outer, nil, &FormatError{Op: "decode refund notify", Err: errors.New("req_info is missing")}
	}

	plaintext, err := DecryptReqInfo(reqInfo, paySecret, mode)
	if err != nil {
		return outer, nil, err
	}

	inner, err := Decode(plaintext)
	if err != nil {
		return outer, nil, &CryptoError{Op: "decode req_info", Err: err}
	}
	return outer, inner, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	for i := 0; i < padding; i++ {
		out = append(out, byte(padding))
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
