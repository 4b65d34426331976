package fetchcache

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// BodyKind reports which strategy decoded a response body.
type BodyKind int

const (
	BodyBinary BodyKind = iota
	BodyText
	BodyJSON
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	default:
		return "binary"
	}
}

// ClassifyContentType picks the decode strategy for a Content-Type value.
func ClassifyContentType(contentType string) BodyKind {
	if contentType == "" {
		return BodyBinary
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}

	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return BodyJSON
	case strings.HasPrefix(mediaType, "text/"):
		return BodyText
	default:
		return BodyBinary
	}
}

// DecodeBody turns body into the value returned as Result.Data: a parsed
// JSON value, a string, or the raw bytes. Malformed JSON falls back to text
// with a warning. Only a body that is not valid text either yields a
// KindDecode error.
func DecodeBody(header http.Header, body []byte, logger Logger) (interface{}, BodyKind, error) {
	kind := ClassifyContentType(header.Get("Content-Type"))

	switch kind {
	case BodyJSON:
		if len(body) == 0 {
			return nil, BodyJSON, nil
		}
		var v interface{}
		jsonErr := json.Unmarshal(body, &v)
		if jsonErr == nil {
			return v, BodyJSON, nil
		}
		if logger != nil {
			logger.Warn("JSON decode failed, falling back to text", "error", jsonErr.Error(), "bytes", len(body))
		}
		if !utf8.Valid(body) {
			return nil, BodyJSON, &FetchError{
				Kind:    KindDecode,
				Message: "body is neither valid JSON nor valid text",
				Cause:   jsonErr,
			}
		}
		return string(body), BodyText, nil

	case BodyText:
		return string(body), BodyText, nil

	default:
		out := make([]byte, len(body))
		copy(out, body)
		return out, BodyBinary, nil
	}
}

// DecodeInto unmarshals a JSON body into v.
func DecodeInto(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &FetchError{
			Kind:    KindDecode,
			Message: "failed to decode JSON into target type",
			Cause:   err,
		}
	}
	return nil
}
