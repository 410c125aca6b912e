// Package restclient issues HTTP requests from a gateway host by running a
// command-line HTTP client through an established session, and decodes the
// captured text output into a structured response.
package restclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// ansiEscape matches the VT100 control sequences a remote terminal may
// inject into captured output. Only the header block is cleaned with it;
// escape bytes are legitimate inside a response body.
var ansiEscape = regexp.MustCompile(`(?i)\x1b(` +
	`(\[\??\d+[hl])|` +
	`([=<>a-kzNM78])|` +
	`([\(\)][a-b0-2])|` +
	`(\[\d{0,2}[ma-dgkjqi])|` +
	`(\[\d+;\d+[hfy]?)|` +
	`(\[;?[hf])|` +
	`(#[3-68])|` +
	`([01356]n)|` +
	`(O[mlnp-z]?)|` +
	`(/Z)|` +
	`(\d+)|` +
	`(\[\?\d;\d0c)|` +
	`(\d;\dR))`)

// HTTPResponse is one decoded HTTP response recovered from command output.
type HTTPResponse struct {
	StatusCode int
	Reason     string
	Headers    map[string]string
	Text       string
}

// ParseHTTPResponse decodes the raw text a command-line HTTP client printed
// into a structured response. The text passed through a terminal, so doubled
// carriage returns are collapsed and escape sequences are stripped from the
// header block before parsing.
func ParseHTTPResponse(raw string) (*HTTPResponse, error) {
	// A PTY doubles carriage returns, and the header scanner only
	// recognizes \r\n, \n or empty as a line terminator.
	cleaned := strings.ReplaceAll(raw, "\r\r\n", "\r\n")

	header, body, found := splitHeaderBody(cleaned)
	if found {
		cleaned = ansiEscape.ReplaceAllString(header, "") + "\r\n\r\n" + body
	} else {
		cleaned = ansiEscape.ReplaceAllString(header, "") + "\r\n\r\n"
	}

	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(cleaned)), nil)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("malformed http response text: %v", err)}
	}
	defer resp.Body.Close()

	// The remote client closed the stream instead of honoring
	// Content-Length, so a short body is expected for header-only reads.
	payload, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, &Error{Message: fmt.Sprintf("read http response body: %v", err)}
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Reason:     reason,
		Headers:    headers,
		Text:       strings.TrimSpace(string(payload)),
	}, nil
}

// splitHeaderBody cuts the text at the first blank-line boundary.
func splitHeaderBody(text string) (header, body string, found bool) {
	crlf := strings.Index(text, "\r\n\r\n")
	lf := strings.Index(text, "\n\n")
	switch {
	case crlf >= 0 && (lf < 0 || crlf <= lf):
		return text[:crlf], text[crlf+4:], true
	case lf >= 0:
		return text[:lf], text[lf+2:], true
	default:
		return text, "", false
	}
}

// CheckSuccess returns an error unless the status code is 200 or 201.
func (r *HTTPResponse) CheckSuccess() error {
	if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusCreated {
		return &Error{Message: fmt.Sprintf("http error received: %s", r)}
	}
	return nil
}

// IsValidJSON reports whether the body decodes as JSON.
func (r *HTTPResponse) IsValidJSON() bool {
	return json.Valid([]byte(r.Text))
}

// JSON decodes the body into v.
func (r *HTTPResponse) JSON(v any) error {
	if err := json.Unmarshal([]byte(r.Text), v); err != nil {
		return &Error{Message: fmt.Sprintf("http response body is not valid json: %s", r.Text)}
	}
	return nil
}

// String renders the response for humans, pretty-printing a JSON body when
// possible.
func (r *HTTPResponse) String() string {
	result := fmt.Sprintf("%d %s\n", r.StatusCode, r.Reason)
	var decoded any
	if err := json.Unmarshal([]byte(r.Text), &decoded); err == nil {
		if pretty, err := json.MarshalIndent(decoded, "", "    "); err == nil {
			return result + string(pretty)
		}
	}
	return result + r.Text
}
