package blogapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FileAttachment is a binary blob submitted alongside form fields,
// typically a post image or profile picture.
type FileAttachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// quoteEscaper matches multipart.Writer's own header escaping.
var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeMultipart builds a multipart/form-data body from string fields plus
// an optional file under fileField. String fields are trimmed before
// encoding. A nil file is simply absent from the payload rather than sent
// as an empty part; the server's field schema (title, content, category,
// image, profilePicture) distinguishes "unchanged" from "empty" that way.
// Returns the encoded body and the Content-Type header value to send.
func EncodeMultipart(fields map[string]string, fileField string, file *FileAttachment) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	for name, value := range fields {
		if err := w.WriteField(name, strings.TrimSpace(value)); err != nil {
			return nil, "", fmt.Errorf("encode field %q: %w", name, err)
		}
	}

	if file != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(fileField), quoteEscaper.Replace(file.Name)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("encode file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("encode file data: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

// DataURL renders the attachment as a data: URL for local image previews,
// the in-memory equivalent of FileReader.readAsDataURL. A nil attachment
// renders as the empty string.
func DataURL(file *FileAttachment) string {
	if file == nil {
		return ""
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(file.Data)
}
