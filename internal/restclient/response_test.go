package restclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusOnlyResponse(t *testing.T) {
	resp, err := ParseHTTPResponse("HTTP/1.0 200 OK\r\n\r\n")
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", resp.Reason)
	assert.Empty(t, resp.Text)
	assert.False(t, resp.IsValidJSON())
}

func TestParseResponseWithHeadersAndBody(t *testing.T) {
	raw := "HTTP/1.0 200 OK\r\n" +
		"Content-Type: application/json\r\n" +
		"Server: nginx\r\n" +
		"\r\n" +
		`{"a": 1}`

	resp, err := ParseHTTPResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, "nginx", resp.Headers["Server"])
	assert.Equal(t, `{"a": 1}`, resp.Text)
	assert.True(t, resp.IsValidJSON())
}

func TestParseResponseStripsAnsiFromHeadersOnly(t *testing.T) {
	raw := "HTTP/1.0 200 OK\r\n" +
		"Content-Type: \x1b[0mapplication/json\x1b[1m\r\n" +
		"\r\n" +
		`{"a":1}`

	resp, err := ParseHTTPResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.NotContains(t, resp.Headers["Content-Type"], "\x1b")

	var body map[string]int
	require.NoError(t, resp.JSON(&body))
	assert.Equal(t, map[string]int{"a": 1}, body)
}

func TestParseResponseCollapsesDoubledCarriageReturns(t *testing.T) {
	raw := "HTTP/1.0 201 Created\r\r\n" +
		"Location: /things/42\r\r\n" +
		"\r\r\n" +
		"created"

	resp, err := ParseHTTPResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "/things/42", resp.Headers["Location"])
	assert.Equal(t, "created", resp.Text)
}

func TestParseResponseTrimsBodyWhitespace(t *testing.T) {
	resp, err := ParseHTTPResponse("HTTP/1.0 200 OK\r\n\r\nhello\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
}

func TestParseResponseMalformed(t *testing.T) {
	_, err := ParseHTTPResponse("this is not an http response")
	var restErr *Error
	require.ErrorAs(t, err, &restErr)
}

func TestCheckSuccess(t *testing.T) {
	for _, status := range []int{200, 201} {
		resp := &HTTPResponse{StatusCode: status}
		assert.NoError(t, resp.CheckSuccess())
	}

	resp := &HTTPResponse{StatusCode: 404, Reason: "Not Found"}
	err := resp.CheckSuccess()
	var restErr *Error
	require.ErrorAs(t, err, &restErr)
	assert.Contains(t, restErr.Message, "404")
}

func TestJSONInvalidBody(t *testing.T) {
	resp := &HTTPResponse{Text: "not json"}
	var v any
	err := resp.JSON(&v)
	var restErr *Error
	require.ErrorAs(t, err, &restErr)
	assert.Contains(t, restErr.Message, "not json")
}

func TestStringPrettyPrintsJSON(t *testing.T) {
	resp := &HTTPResponse{StatusCode: 200, Reason: "OK", Text: `{"b":2,"a":1}`}
	rendered := resp.String()
	assert.Contains(t, rendered, "200 OK")
	assert.Contains(t, rendered, "\"a\": 1")

	plain := &HTTPResponse{StatusCode: 500, Reason: "Internal Server Error", Text: "boom"}
	assert.Equal(t, "500 Internal Server Error\nboom", plain.String())
}
