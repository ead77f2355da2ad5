package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

// AccessResolver maps the key of a public URL to its record. A key is either
// the public token or the slug.
type AccessResolver struct {
	store   RecordStore
	baseURL string
}

func NewAccessResolver(store RecordStore, baseURL string) *AccessResolver {
	return &AccessResolver{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// Resolve looks key up as a token first and as a slug second. A record of
// another kind is reported as not found so a contract is never reachable
// through a proposal URL.
func (a *AccessResolver) Resolve(ctx context.Context, kind model.Kind, key string) (*model.BusinessRecord, error) {
	key = strings.TrimSpace(key)
	if !kind.Valid() {
		return nil, apperr.WithMetadata(apperr.KindNotFound, apperr.CodeInvalidKind,
			fmt.Sprintf("unknown document type %q", kind), map[string]string{"document_type": string(kind)})
	}
	if key == "" {
		return nil, apperr.Validation(apperr.CodeRequiredField, "document key is required")
	}

	rec, err := a.store.GetRecordByToken(ctx, key)
	if apperr.IsKind(err, apperr.KindNotFound) {
		rec, err = a.store.GetRecordBySlug(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if rec.Kind != kind {
		return nil, recordNotFound(key)
	}
	return rec, nil
}

// PublicLink is the URL a client opens to view (and for contracts sign) the
// record. It is built on the token, which never changes.
func (a *AccessResolver) PublicLink(rec *model.BusinessRecord) string {
	return fmt.Sprintf("%s/%s/%s", a.baseURL, rec.Kind, rec.PublicToken)
}
