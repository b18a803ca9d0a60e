package form

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURLEncoded(t *testing.T) {
	f, err := Parse("application/x-www-form-urlencoded", []byte("name=John&age=30"), 256)
	require.NoError(t, err)

	name, ok := f.Field("name")
	require.True(t, ok)
	require.Equal(t, "John", name.Value)

	age, ok := f.Field("age")
	require.True(t, ok)
	require.Equal(t, "30", age.Value)
}

func TestParseMultipartField(t *testing.T) {
	body := "--xyz\r\nContent-Disposition: form-data; name=\"title\"\r\n\r\nhello\r\n--xyz--\r\n"

	f, err := Parse("multipart/form-data; boundary=xyz", []byte(body), 256)
	require.NoError(t, err)

	title, ok := f.Field("title")
	require.True(t, ok)
	require.Equal(t, "hello", title.Value)
}

func TestParseMultipartFile(t *testing.T) {
	body := "--xyz\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\ncontents\r\n--xyz--\r\n"

	f, err := Parse("multipart/form-data; boundary=xyz", []byte(body), 256)
	require.NoError(t, err)

	file, ok := f.File("a.txt")
	require.True(t, ok)
	require.Equal(t, "upload", file.Name)
	require.Equal(t, "contents", file.Value)
}

func TestParseMultipartMissingBoundary(t *testing.T) {
	_, err := Parse("multipart/form-data", []byte("anything"), 256)
	require.Error(t, err)
}

func TestParseUnsupportedMediaTypeYieldsEmptyForm(t *testing.T) {
	f, err := Parse("application/json", []byte("{}"), 256)
	require.NoError(t, err)
	require.Empty(t, f)
}
