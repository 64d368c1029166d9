package smtpfilter

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseMessage(t *testing.T, raw string) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func TestExtractTextPlainMessage(t *testing.T) {
	msg := parseMessage(t, "From: a@example.com\r\n"+
		"Subject: hello\r\n"+
		"\r\n"+
		"Just a plain body.\r\n")

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "Just a plain body.\r\n", text)
}

func TestExtractTextMultipart(t *testing.T) {
	msg := parseMessage(t, "From: a@example.com\r\n"+
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n"+
		"\r\n"+
		"--BOUNDARY\r\n"+
		"Content-Type: text/plain\r\n"+
		"\r\n"+
		"The plain part.\r\n"+
		"--BOUNDARY\r\n"+
		"Content-Type: text/html\r\n"+
		"\r\n"+
		"<p>The html part.</p>\r\n"+
		"--BOUNDARY--\r\n")

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "The plain part.")
	assert.NotContains(t, text, "html part")
}

func TestExtractTextNestedMultipart(t *testing.T) {
	msg := parseMessage(t, "From: a@example.com\r\n"+
		"Content-Type: multipart/mixed; boundary=OUTER\r\n"+
		"\r\n"+
		"--OUTER\r\n"+
		"Content-Type: multipart/alternative; boundary=INNER\r\n"+
		"\r\n"+
		"--INNER\r\n"+
		"Content-Type: text/plain\r\n"+
		"\r\n"+
		"Nested plain text.\r\n"+
		"--INNER--\r\n"+
		"--OUTER\r\n"+
		"Content-Type: application/pdf\r\n"+
		"\r\n"+
		"%PDF-fake\r\n"+
		"--OUTER--\r\n")

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "Nested plain text.")
	assert.NotContains(t, text, "%PDF")
}

func TestExtractTextNoPlainParts(t *testing.T) {
	msg := parseMessage(t, "From: a@example.com\r\n"+
		"Content-Type: multipart/alternative; boundary=BOUNDARY\r\n"+
		"\r\n"+
		"--BOUNDARY\r\n"+
		"Content-Type: text/html\r\n"+
		"\r\n"+
		"<p>Only html.</p>\r\n"+
		"--BOUNDARY--\r\n")

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "[No text content found in multipart message]", text)
}

func TestDecodeEncodedHeader(t *testing.T) {
	assert.Equal(t, "Hello World", decodeEncodedHeader("=?UTF-8?B?SGVsbG8gV29ybGQ=?="))
	assert.Equal(t, "plain subject", decodeEncodedHeader("plain subject"))
	assert.Equal(t, "=?bogus?X?zzz?=", decodeEncodedHeader("=?bogus?X?zzz?="))
}
