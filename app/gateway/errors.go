package gateway

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned before any network call when a credential
// the operation depends on is missing.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("gateway configuration missing: %s", e.Field)
}

// FormatError reports a payload that is not well-formed gateway XML.
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gateway format error: %s", e.Op)
	}
	return fmt.Sprintf("gateway format error: %s: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// CryptoError reports a signature mismatch or a decryption failure.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gateway crypto error: %s", e.Op)
	}
	return fmt.Sprintf("gateway crypto error: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// TransportError covers network failures, timeouts and non-2xx HTTP replies.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway transport error: endpoint=%s status=%d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("gateway transport error: endpoint=%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BusinessError is a well-formed gateway reply whose return_code or
// result_code is not SUCCESS.
type BusinessError struct {
	Endpoint   string
	ReturnCode string
	ReturnMsg  string
	ResultCode string
	ErrCode    string
	ErrCodeDes string
}

func (e *BusinessError) Error() string {
	if e.ReturnCode != ResultSuccess {
		return fmt.Sprintf("gateway rejected request: endpoint=%s return_code=%s return_msg=%s", e.Endpoint, e.ReturnCode, e.ReturnMsg)
	}
	return fmt.Sprintf("gateway business failure: endpoint=%s result_code=%s err_code=%s err_code_des=%s", e.Endpoint, e.ResultCode, e.ErrCode, e.ErrCodeDes)
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
