package model

import (
	"fmt"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

// Status is the lifecycle state of a business record.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSent        Status = "sent"
	StatusDraftSigned Status = "draft_signed"
	StatusSigned      Status = "signed"
	StatusCancelled   Status = "cancelled"
)

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusSigned || s == StatusCancelled
}

// Action is an operator or client trigger on a record.
type Action string

const (
	ActionSend           Action = "send"
	ActionPreviewSign    Action = "preview_signature"
	ActionConfirmSign    Action = "confirm_signature"
	ActionDiscardPreview Action = "discard_preview"
	ActionCancel         Action = "cancel"
	ActionEdit           Action = "edit"
	ActionDelete         Action = "delete"
)

// Next returns the status a record moves to when action is applied, or an
// error when the current status does not allow it. Signature actions exist
// only for contracts.
func Next(rec *BusinessRecord, action Action) (Status, error) {
	from := rec.Status
	if from.IsTerminal() {
		return "", apperr.WithMetadata(apperr.KindTerminalState, apperr.CodeRecordRetired,
			fmt.Sprintf("%s is %s and can no longer change", rec.Kind, from),
			map[string]string{"status": string(from), "action": string(action)})
	}

	switch action {
	case ActionSend:
		if from == StatusDraft {
			return StatusSent, nil
		}
	case ActionPreviewSign:
		if rec.Kind == KindContract && (from == StatusDraft || from == StatusSent) {
			return StatusDraftSigned, nil
		}
	case ActionConfirmSign:
		if rec.Kind == KindContract && from == StatusDraftSigned {
			return StatusSigned, nil
		}
	case ActionDiscardPreview:
		if from == StatusDraftSigned {
			return rec.signableStatus(), nil
		}
	case ActionCancel:
		if from == StatusDraft || from == StatusSent {
			return StatusCancelled, nil
		}
	case ActionEdit:
		if from == StatusDraftSigned {
			return rec.signableStatus(), nil
		}
		return from, nil
	case ActionDelete:
		if from == StatusDraft {
			return from, nil
		}
	}

	return "", apperr.WithMetadata(apperr.KindIllegalTransition, apperr.CodeTransitionDenied,
		fmt.Sprintf("%s %s not allowed from %s", rec.Kind, action, from),
		map[string]string{"status": string(from), "action": string(action)})
}

// signableStatus is the state a preview returns to when it is discarded.
func (r *BusinessRecord) signableStatus() Status {
	if r.PreviewFrom == StatusDraft || r.PreviewFrom == StatusSent {
		return r.PreviewFrom
	}
	return StatusSent
}
