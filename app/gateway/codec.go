package gateway

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

const rootElement = "xml"

// Encode renders fields as <xml><key>value</key>...</xml> with keys in sorted
// order.
func Encode(fields Fields) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !validElementName(k) {
			return nil, &FormatError{Op: "encode", Err: fmt.Errorf("invalid field name %q", k)}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("<" + rootElement + ">")
	for _, k := range keys {
		buf.WriteString("<" + k + ">")
		if err := xml.EscapeText(&buf, []byte(fields[k])); err != nil {
			return nil, &FormatError{Op: "encode", Err: err}
		}
		buf.WriteString("</" + k + ">")
	}
	buf.WriteString("</" + rootElement + ">")
	return buf.Bytes(), nil
}

// Decode parses a gateway XML document into a flat map of the root's child
// elements. The root element name is not checked.
func Decode(data []byte) (Fields, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FormatError{Op: "decode", Err: errors.New("empty document")}
	}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	fields := Fields{}
	depth := 0
	rootSeen := false
	rootClosed := false
	var current string
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &FormatError{Op: "decode", Err: err}
		}

		switch t := token.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, &FormatError{Op: "decode", Err: errors.New("multiple root elements")}
			}
			depth++
			switch depth {
			case 1:
				rootSeen = true
			case 2:
				current = t.Name.Local
				text.Reset()
			}
		case xml.EndElement:
			if depth == 2 {
				fields[current] = strings.TrimSpace(text.String())
			}
			depth--
			if depth == 0 {
				rootClosed = true
			}
		case xml.CharData:
			if depth >= 2 {
				text.Write(t)
			}
		}
	}

	if !rootSeen || !rootClosed {
		return nil, &FormatError{Op: "decode", Err: errors.New("missing root element")}
	}
	return fields, nil
}

// NotifyAck is the acknowledgement body returned to gateway webhooks.
type NotifyAck struct {
	ReturnCode string
	ReturnMsg  string
}

func AckSuccess() NotifyAck {
	return NotifyAck{ReturnCode: ResultSuccess, ReturnMsg: "OK"}
}

func AckFail(msg string) NotifyAck {
	return NotifyAck{ReturnCode: ResultFail, ReturnMsg: msg}
}

func (a NotifyAck) Succeeded() bool {
	return a.ReturnCode == ResultSuccess
}

// Bytes renders the acknowledgement as gateway XML. The gateway does not
// verify acknowledgements, so no sign field is added.
func (a NotifyAck) Bytes() []byte {
	body, err := Encode(Fields{FieldReturnCode: a.ReturnCode, FieldReturnMsg: a.ReturnMsg})
	if err != nil {
		return []byte("<xml><return_code>FAIL</return_code></xml>")
	}
	return body
}

func validElementName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case (r >= '0' && r <= '9') || r == '-' || r == '.':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
