package gateway

import "strings"

const (
	ResultSuccess = "SUCCESS"
	ResultFail    = "FAIL"

	FieldSign       = "sign"
	FieldReturnCode = "return_code"
	FieldReturnMsg  = "return_msg"
	FieldResultCode = "result_code"
	FieldErrCode    = "err_code"
	FieldErrCodeDes = "err_code_des"
	FieldNonceStr   = "nonce_str"
	FieldReqInfo    = "req_info"
)

// Fields is a flat gateway payload: one entry per element under the XML root.
type Fields map[string]string

func (f Fields) Get(key string) string {
	return f[key]
}

func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Set stores value under key, skipping empty values so optional attributes
// never reach the wire.
func (f Fields) Set(key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	f[key] = value
}

// SetPtr is Set for optional attributes.
func (f Fields) SetPtr(key string, value *string) {
	if value == nil {
		return
	}
	f.Set(key, *value)
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Fields) ReturnCode() string {
	return strings.TrimSpace(f[FieldReturnCode])
}

func (f Fields) ResultCode() string {
	return strings.TrimSpace(f[FieldResultCode])
}

// Succeeded reports whether both the communication and the business result
// are SUCCESS.
func (f Fields) Succeeded() bool {
	return f.ReturnCode() == ResultSuccess && f.ResultCode() == ResultSuccess
}

// BusinessError describes a non-success reply; nil when the reply succeeded.
func (f Fields) BusinessError(endpoint string) error {
	if f.Succeeded() {
		return nil
	}
	return &BusinessError{
		Endpoint:   endpoint,
		ReturnCode: f.ReturnCode(),
		ReturnMsg:  f[FieldReturnMsg],
		ResultCode: f.ResultCode(),
		ErrCode:    f[FieldErrCode],
		ErrCodeDes: f[FieldErrCodeDes],
	}
}
