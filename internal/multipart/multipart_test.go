package multipart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBody(boundary string, parts ...string) []byte {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--")
		b.WriteString(boundary)
		b.WriteString("\r\n")
		b.WriteString(p)
	}
	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString("--\r\n")
	return []byte(b.String())
}

func TestParseSimpleField(t *testing.T) {
	body := buildBody("xyz",
		"Content-Disposition: form-data; name=\"title\"\r\n\r\nhello world\r\n",
	)

	parts, err := Parse(body, "xyz", "utf-8", "text/plain")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, "title", parts[0].Name)
	require.Equal(t, "hello world", parts[0].Value)
	require.Equal(t, "utf-8", parts[0].Charset)
}

func TestParseFileUpload(t *testing.T) {
	body := buildBody("xyz",
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\nContent-Type: text/plain\r\n\r\ndata\r\n",
	)

	parts, err := Parse(body, "xyz", "utf-8", "text/plain")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, "a.txt", parts[0].Filename)
	require.Equal(t, "text/plain", parts[0].ContentType)
	require.Equal(t, "data", parts[0].Value)
}

func TestParseCharsetDirective(t *testing.T) {
	body := buildBody("xyz",
		"Content-Disposition: form-data; name=\"_charset_\"\r\n\r\nlatin1\r\n",
		"Content-Disposition: form-data; name=\"title\"\r\n\r\nhello\r\n",
	)

	parts, err := Parse(body, "xyz", "utf-8", "text/plain")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, "latin1", parts[0].Charset)
}

func TestParseMissingBoundary(t *testing.T) {
	_, err := Parse([]byte("anything"), "", "utf-8", "text/plain")
	require.Error(t, err)
}

func TestParseMultipleFields(t *testing.T) {
	body := buildBody("xyz",
		"Content-Disposition: form-data; name=\"a\"\r\n\r\n1\r\n",
		"Content-Disposition: form-data; name=\"b\"\r\n\r\n2\r\n",
	)

	parts, err := Parse(body, "xyz", "utf-8", "text/plain")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, "a", parts[0].Name)
	require.Equal(t, "b", parts[1].Name)
}
