package model

import "encoding/json"

// AttachmentState tracks a local media transfer. The payload metadata of an
// attachment may be refreshed at any time; a genuinely in-progress or
// completed transfer survives that refresh.
type AttachmentState string

const (
	AttachmentStateUnset             AttachmentState = ""
	AttachmentStateUploading         AttachmentState = "uploading"
	AttachmentStateUploadingFailed   AttachmentState = "uploadingFailed"
	AttachmentStateUploaded          AttachmentState = "uploaded"
	AttachmentStateDownloading       AttachmentState = "downloading"
	AttachmentStateDownloadingFailed AttachmentState = "downloadingFailed"
	AttachmentStateDownloaded        AttachmentState = "downloaded"
)

// Active reports whether a transfer is in progress or has produced a local
// artifact worth keeping.
func (s AttachmentState) Active() bool {
	switch s {
	case AttachmentStateUploading, AttachmentStateUploaded,
		AttachmentStateDownloading, AttachmentStateDownloaded:
		return true
	}
	return false
}

// Attachment is media or a file attached to a message, identified by the
// message id plus its ordinal position within the message.
type Attachment struct {
	MessageID string `json:"message_id"`
	Index     int    `json:"index"`

	Type string `json:"type"`

	// Payload is the opaque attachment blob as delivered by the server.
	Payload     json.RawMessage `json:"payload,omitempty"`
	PayloadHash uint64          `json:"payload_hash,omitempty"`

	LocalState        AttachmentState `json:"local_state,omitempty"`
	Progress          float64         `json:"progress,omitempty"`
	LocalRelativePath string          `json:"local_relative_path,omitempty"`
}

// NewAttachment returns a blank attachment entity for (message, index).
func NewAttachment(messageID string, index int) *Attachment {
	return &Attachment{MessageID: messageID, Index: index}
}

func (a *Attachment) Key() string {
	return AttachmentKey(a.MessageID, a.Index)
}

func (a *Attachment) Ref() Ref {
	return Ref{Kind: KindAttachment, Key: a.Key()}
}

func (a *Attachment) Clone() *Attachment {
	cp := *a
	cp.Payload = cloneRaw(a.Payload)
	return &cp
}
