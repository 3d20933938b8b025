package sqlstore

import (
	"time"

	"github.com/streamkit/go-linking/core"
	"github.com/streamkit/go-linking/vault"
)

func newLinkRecord(in core.LinkRecord) *linkRecord {
	return &linkRecord{
		ID:             in.ID,
		UserID:         in.UserID,
		ProviderID:     in.ProviderID,
		State:          string(in.State),
		GrantedScopes:  copyScopes(in.GrantedScopes),
		CredentialRef:  in.CredentialRef,
		LinkedAt:       cloneTimePointer(in.LinkedAt),
		LastVerifiedAt: cloneTimePointer(in.LastVerifiedAt),
		LastSyncNote:   in.LastSyncNote,
		LastError:      in.LastError,
		Version:        in.Version,
		CreatedAt:      in.CreatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
}

func (r *linkRecord) toDomain() core.LinkRecord {
	if r == nil {
		return core.LinkRecord{}
	}
	return core.LinkRecord{
		ID:             r.ID,
		UserID:         r.UserID,
		ProviderID:     r.ProviderID,
		State:          core.LinkState(r.State),
		GrantedScopes:  copyScopes(r.GrantedScopes),
		CredentialRef:  r.CredentialRef,
		LinkedAt:       cloneTimePointer(r.LinkedAt),
		LastVerifiedAt: cloneTimePointer(r.LastVerifiedAt),
		LastSyncNote:   r.LastSyncNote,
		LastError:      r.LastError,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func newPendingAuthRecord(in core.PendingAuthorization) *pendingAuthRecord {
	return &pendingAuthRecord{
		State:           in.State,
		UserID:          in.UserID,
		ProviderID:      in.ProviderID,
		RedirectURI:     in.RedirectURI,
		RequestedScopes: copyScopes(in.RequestedScopes),
		CreatedAt:       in.CreatedAt,
		ExpiresAt:       in.ExpiresAt,
	}
}

func (r *pendingAuthRecord) toDomain() core.PendingAuthorization {
	if r == nil {
		return core.PendingAuthorization{}
	}
	return core.PendingAuthorization{
		State:           r.State,
		UserID:          r.UserID,
		ProviderID:      r.ProviderID,
		RedirectURI:     r.RedirectURI,
		RequestedScopes: copyScopes(r.RequestedScopes),
		CreatedAt:       r.CreatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func newVaultItemRecord(in vault.Item) *vaultItemRecord {
	return &vaultItemRecord{
		Reference:  in.Reference,
		UserID:     in.UserID,
		ProviderID: in.ProviderID,
		Ciphertext: append([]byte(nil), in.Ciphertext...),
		KeyID:      in.KeyID,
		KeyVersion: in.KeyVersion,
		CreatedAt:  in.CreatedAt,
		UpdatedAt:  in.UpdatedAt,
	}
}

func (r *vaultItemRecord) toDomain() vault.Item {
	if r == nil {
		return vault.Item{}
	}
	return vault.Item{
		Reference:  r.Reference,
		UserID:     r.UserID,
		ProviderID: r.ProviderID,
		Ciphertext: append([]byte(nil), r.Ciphertext...),
		KeyID:      r.KeyID,
		KeyVersion: r.KeyVersion,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func copyScopes(scopes []string) []string {
	if scopes == nil {
		return []string{}
	}
	return append([]string(nil), scopes...)
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
