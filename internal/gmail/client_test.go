package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func plainPart(text string) *gmail.MessagePart {
	return &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(text))},
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name: "no parts and no body data",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Body:     &gmail.MessagePartBody{},
			},
			want: "",
		},
		{
			name: "first plain part wins",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					plainPart("first body"),
					plainPart("second body"),
				},
			},
			want: "first body",
		},
		{
			name: "html only falls through to empty",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/html",
						Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<p>hi</p>"))},
					},
				},
			},
			want: "",
		},
		{
			name: "nested plain part found depth first",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							plainPart("nested body"),
						},
					},
					plainPart("sibling body"),
				},
			},
			want: "nested body",
		},
		{
			name: "top level body data fallback",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("single part body"))},
			},
			want: "single part body",
		},
		{
			name: "unpadded base64url data",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("unpadded data"))},
			},
			want: "unpadded data",
		},
		{
			name: "undecodable base64 yields empty string",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: "@@@not-base64@@@"},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBody(tt.payload))
		})
	}
}

func TestExtractBodyReplacesInvalidUTF8(t *testing.T) {
	// 0xff is not valid UTF-8; the lossy decoder substitutes it instead of
	// failing the extraction.
	data := base64.URLEncoding.EncodeToString([]byte{'h', 'i', 0xff, '!'})
	payload := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: data},
	}

	got := ExtractBody(payload)
	assert.Equal(t, "hi�!", got)
}
