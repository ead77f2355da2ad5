package model

import (
	"testing"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

func TestNextTransitionTable(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		from   Status
		prior  Status
		action Action
		want   Status
		kindOK apperr.Kind
	}{
		{"send draft", KindContract, StatusDraft, "", ActionSend, StatusSent, ""},
		{"send sent", KindContract, StatusSent, "", ActionSend, "", apperr.KindIllegalTransition},
		{"preview from draft", KindContract, StatusDraft, "", ActionPreviewSign, StatusDraftSigned, ""},
		{"preview from sent", KindContract, StatusSent, "", ActionPreviewSign, StatusDraftSigned, ""},
		{"preview on proposal", KindProposal, StatusSent, "", ActionPreviewSign, "", apperr.KindIllegalTransition},
		{"confirm from sent", KindContract, StatusSent, "", ActionConfirmSign, "", apperr.KindIllegalTransition},
		{"confirm from preview", KindContract, StatusDraftSigned, StatusSent, ActionConfirmSign, StatusSigned, ""},
		{"discard back to draft", KindContract, StatusDraftSigned, StatusDraft, ActionDiscardPreview, StatusDraft, ""},
		{"discard back to sent", KindContract, StatusDraftSigned, StatusSent, ActionDiscardPreview, StatusSent, ""},
		{"discard without prior", KindContract, StatusDraftSigned, "", ActionDiscardPreview, StatusSent, ""},
		{"cancel draft", KindContract, StatusDraft, "", ActionCancel, StatusCancelled, ""},
		{"cancel sent", KindProposal, StatusSent, "", ActionCancel, StatusCancelled, ""},
		{"cancel preview", KindContract, StatusDraftSigned, StatusSent, ActionCancel, "", apperr.KindIllegalTransition},
		{"edit sent", KindContract, StatusSent, "", ActionEdit, StatusSent, ""},
		{"edit preview", KindContract, StatusDraftSigned, StatusDraft, ActionEdit, StatusDraft, ""},
		{"delete draft", KindProposal, StatusDraft, "", ActionDelete, StatusDraft, ""},
		{"delete sent", KindProposal, StatusSent, "", ActionDelete, "", apperr.KindIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &BusinessRecord{Kind: tt.kind, Status: tt.from, PreviewFrom: tt.prior}
			got, err := Next(rec, tt.action)
			if tt.kindOK != "" {
				if !apperr.IsKind(err, tt.kindOK) {
					t.Fatalf("Expected %s error, got %v", tt.kindOK, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	actions := []Action{ActionSend, ActionPreviewSign, ActionConfirmSign, ActionDiscardPreview, ActionCancel, ActionEdit, ActionDelete}

	for _, status := range []Status{StatusSigned, StatusCancelled} {
		for _, action := range actions {
			rec := &BusinessRecord{Kind: KindContract, Status: status}
			_, err := Next(rec, action)
			if !apperr.IsKind(err, apperr.KindTerminalState) {
				t.Errorf("%s/%s: expected terminal state error, got %v", status, action, err)
			}
		}
	}
}
