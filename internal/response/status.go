package response

// StatusCode is one of the codes this server emits.
type StatusCode int

const (
	StatusOK                      StatusCode = 200
	StatusBadRequest              StatusCode = 400
	StatusNotFound                StatusCode = 404
	StatusNotImplemented          StatusCode = 501
	StatusHTTPVersionNotSupported StatusCode = 505
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:                      "OK",
	StatusBadRequest:              "Bad Request",
	StatusNotFound:                "Not Found",
	StatusNotImplemented:          "Method Not Implemented",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for a status code
func StatusText(code StatusCode) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown Status"
}

// IsSuccess returns true for 2xx status codes
func (code StatusCode) IsSuccess() bool {
	return code >= 200 && code < 300
}

// IsClientError returns true for 4xx status codes
func (code StatusCode) IsClientError() bool {
	return code >= 400 && code < 500
}

// IsServerError returns true for 5xx status codes
func (code StatusCode) IsServerError() bool {
	return code >= 500 && code < 600
}
