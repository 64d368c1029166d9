package smtpfilter

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// extractTextFromMessage pulls the text content out of an email message.
// Multipart messages contribute their text/plain parts, descending into
// nested multiparts; anything unparseable falls back to the raw body.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	var textContent bytes.Buffer
	collectTextParts(msg.Body, boundary, &textContent)

	if textContent.Len() > 0 {
		return textContent.String(), nil
	}
	return "[No text content found in multipart message]", nil
}

// collectTextParts appends every text/plain part under the given boundary
// to out, recursing into nested multipart parts
func collectTextParts(body io.Reader, boundary string, out *bytes.Buffer) {
	mr := multipart.NewReader(body, boundary)

	for {
		part, err := mr.NextPart()
		if err != nil {
			return
		}

		partType := part.Header.Get("Content-Type")
		lower := strings.ToLower(partType)

		switch {
		case strings.Contains(lower, "text/plain"):
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			out.Write(partBytes)
			out.WriteString("\n")
		case strings.Contains(lower, "multipart/"):
			if _, params, err := mime.ParseMediaType(partType); err == nil {
				if nested, ok := params["boundary"]; ok {
					collectTextParts(part, nested, out)
				}
			}
		}
		// Other parts (html alternatives, attachments) are skipped
	}
}
