package normalize

import (
	"encoding/base64"
	"fmt"
	"io"
)

// maxAttachmentBytes bounds what we will base64-encode; the receiver
// stores attachment content inline in the outgoing request.
const maxAttachmentBytes = 10 << 20 // 10 MiB

// Attachment is an uploaded file, already read and transport-safe.
type Attachment struct {
	Name    string
	MIME    string
	Content []byte
}

// ReadAttachment drains the upload into an Attachment. A read error
// or oversize file fails here, before the record is built, so a
// submission is never silently sent without its file.
func ReadAttachment(name, mime string, r io.Reader) (Attachment, error) {
	content, err := io.ReadAll(io.LimitReader(r, maxAttachmentBytes+1))
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to read attachment %q: %w", name, err)
	}
	if len(content) > maxAttachmentBytes {
		return Attachment{}, fmt.Errorf("attachment %q exceeds %d bytes", name, maxAttachmentBytes)
	}
	return Attachment{Name: name, MIME: mime, Content: content}, nil
}

// WithAttachment returns a copy of the record carrying the encoded
// file as the three sibling fields the receiver expects: filename,
// base64 content, and MIME type.
func (r Record) WithAttachment(a Attachment) Record {
	r.FileName = a.Name
	r.FileContent = base64.StdEncoding.EncodeToString(a.Content)
	r.FileType = a.MIME
	return r
}
