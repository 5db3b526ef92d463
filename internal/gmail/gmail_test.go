package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"
)

func encode(body string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(body))
}

func TestPlainTextBodyTopLevel(t *testing.T) {
	msg := &gm.Message{
		Id: "m1",
		Payload: &gm.MessagePart{
			MimeType: "text/plain; charset=UTF-8",
			Body:     &gm.MessagePartBody{Data: encode("hello digest")},
		},
	}

	body, err := PlainTextBody(msg)
	require.NoError(t, err)
	assert.Equal(t, "hello digest", body)
}

func TestPlainTextBodyMultipartAlternative(t *testing.T) {
	msg := &gm.Message{
		Id: "m2",
		Payload: &gm.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gm.MessagePart{
				{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: encode("plain wins")}},
				{MimeType: "text/html", Body: &gm.MessagePartBody{Data: encode("<p>plain wins</p>")}},
			},
		},
	}

	body, err := PlainTextBody(msg)
	require.NoError(t, err)
	assert.Equal(t, "plain wins", body)
}

func TestPlainTextBodyNestedMultipart(t *testing.T) {
	msg := &gm.Message{
		Id: "m3",
		Payload: &gm.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gm.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gm.MessagePart{
						{MimeType: "text/html", Body: &gm.MessagePartBody{Data: encode("<p>no</p>")}},
						{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: encode("found it")}},
					},
				},
				{MimeType: "application/pdf", Body: &gm.MessagePartBody{Data: encode("attachment")}},
			},
		},
	}

	body, err := PlainTextBody(msg)
	require.NoError(t, err)
	assert.Equal(t, "found it", body)
}

func TestPlainTextBodyHTMLOnlyIsError(t *testing.T) {
	msg := &gm.Message{
		Id: "m4",
		Payload: &gm.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gm.MessagePart{
				{MimeType: "text/html", Body: &gm.MessagePartBody{Data: encode("<p>only html</p>")}},
			},
		},
	}

	_, err := PlainTextBody(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text/plain part")
}

func TestPlainTextBodyNoPayload(t *testing.T) {
	_, err := PlainTextBody(&gm.Message{Id: "m5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payload")
}

func TestPlainTextBodyBadEncoding(t *testing.T) {
	msg := &gm.Message{
		Id: "m6",
		Payload: &gm.MessagePart{
			MimeType: "text/plain",
			Body:     &gm.MessagePartBody{Data: "!!! not base64 !!!"},
		},
	}

	_, err := PlainTextBody(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode body")
}

func TestDecodeBase64URL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"url alphabet", base64.RawURLEncoding.EncodeToString([]byte("a?b~c")), "a?b~c"},
		{"needs one pad", base64.RawURLEncoding.EncodeToString([]byte("ab")), "ab"},
		{"needs two pads", base64.RawURLEncoding.EncodeToString([]byte("a")), "a"},
		{"already padded", base64.URLEncoding.EncodeToString([]byte("padded")), "padded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeBase64URL(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
