package repository

import (
	"context"
	"fmt"

	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
	"github.com/Gopher0727/ChatSync/internal/store"
	"github.com/Gopher0727/ChatSync/utils"
)

// reconcileAttachments aligns the stored attachment ordinals with a message
// payload. Metadata is refreshed in place; an active transfer state and the
// local artifact path survive the refresh. Ordinals past the payload length
// are removed.
func (r *Repository) reconcileAttachments(ctx context.Context, tx *store.WriteTx, m *model.Message, atts []*payload.Attachment) error {
	for i, ap := range atts {
		a := tx.AttachmentOrCreate(m.ID, i)
		a.Type = ap.Type
		blob, hash := r.sanitizeBlob(ctx, ap.Payload, "attachment", a.Key())
		if hash != a.PayloadHash {
			a.Payload = blob
			a.PayloadHash = hash
		}
		if !a.LocalState.Active() {
			a.LocalState = model.AttachmentStateUnset
			a.Progress = 0
			a.LocalRelativePath = ""
		}
	}
	for _, a := range tx.AttachmentsForMessage(m.ID) {
		if a.Index >= len(atts) {
			tx.DeleteAttachment(m.ID, a.Index)
		}
	}
	m.AttachmentCount = len(atts)
	return nil
}

// SaveAttachments replaces the attachment list of an existing message from
// a standalone attachment payload, outside a full message save.
func (r *Repository) SaveAttachments(ctx context.Context, messageID string, atts []*payload.Attachment) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		m := tx.Message(messageID)
		if m == nil {
			return ErrMessageNotFound
		}
		return r.reconcileAttachments(ctx, tx, m, atts)
	})
}

// SetAttachmentState records local transfer progress for one attachment.
func (r *Repository) SetAttachmentState(ctx context.Context, messageID string, index int, state model.AttachmentState, progress float64, localPath string) error {
	return r.db.Update(func(tx *store.WriteTx) error {
		if tx.Message(messageID) == nil {
			return ErrMessageNotFound
		}
		a := tx.Attachment(messageID, index)
		if a == nil {
			return fmt.Errorf("attachment %s[%d]: %w", messageID, index, ErrInvalidPayload)
		}
		a.LocalState = state
		a.Progress = utils.Clamp(progress, 0, 1)
		if localPath != "" {
			a.LocalRelativePath = localPath
		}
		if !state.Active() && state != model.AttachmentStateUploadingFailed &&
			state != model.AttachmentStateDownloadingFailed {
			a.Progress = 0
			a.LocalRelativePath = ""
		}
		return nil
	})
}
