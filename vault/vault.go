// Package vault owns encrypted credential storage. Link records never see
// token material, only the opaque references issued here.
package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamkit/go-linking/core"
)

var ErrReferenceNotFound = fmt.Errorf("vault: reference not found")

// Item is one encrypted credential at rest. KeyID and KeyVersion record which
// key sealed the ciphertext so rekeying can find stragglers.
type Item struct {
	Reference  string
	UserID     string
	ProviderID string
	Ciphertext []byte
	KeyID      string
	KeyVersion int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ItemStore persists vault items. Delete must be a no-op for unknown
// references so destroy stays idempotent.
type ItemStore interface {
	Save(ctx context.Context, item Item) error
	Get(ctx context.Context, reference string) (Item, bool, error)
	Delete(ctx context.Context, reference string) error
	ListReferences(ctx context.Context) ([]string, error)
}

type KeyMetadataProvider interface {
	Metadata() (string, int)
}

type Vault struct {
	store  ItemStore
	secret core.SecretProvider
	nowFn  func() time.Time
}

type Option func(*Vault)

func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.nowFn = now
		}
	}
}

func New(store ItemStore, secret core.SecretProvider, opts ...Option) (*Vault, error) {
	if store == nil {
		return nil, fmt.Errorf("vault: item store is required")
	}
	if secret == nil {
		return nil, fmt.Errorf("vault: secret provider is required")
	}
	v := &Vault{
		store:  store,
		secret: secret,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(v)
	}
	return v, nil
}

func (v *Vault) Store(ctx context.Context, userID string, providerID string, cred core.Credential) (string, error) {
	if v == nil {
		return "", fmt.Errorf("vault: vault is nil")
	}
	userID = strings.TrimSpace(userID)
	providerID = strings.TrimSpace(providerID)
	if userID == "" || providerID == "" {
		return "", fmt.Errorf("vault: user id and provider id are required")
	}
	if strings.TrimSpace(cred.AccessToken) == "" {
		return "", fmt.Errorf("vault: credential access token is required")
	}

	ciphertext, err := v.seal(ctx, cred)
	if err != nil {
		return "", err
	}

	now := v.nowFn()
	keyID, keyVersion := v.keyMetadata()
	item := Item{
		Reference:  "cred_" + uuid.NewString(),
		UserID:     userID,
		ProviderID: providerID,
		Ciphertext: ciphertext,
		KeyID:      keyID,
		KeyVersion: keyVersion,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := v.store.Save(ctx, item); err != nil {
		return "", fmt.Errorf("vault: save item: %w", err)
	}
	return item.Reference, nil
}

func (v *Vault) Fetch(ctx context.Context, reference string) (core.Credential, error) {
	if v == nil {
		return core.Credential{}, fmt.Errorf("vault: vault is nil")
	}
	item, found, err := v.getItem(ctx, reference)
	if err != nil {
		return core.Credential{}, err
	}
	if !found {
		return core.Credential{}, fmt.Errorf("vault: fetch %q: %w", reference, ErrReferenceNotFound)
	}
	plaintext, err := v.secret.Decrypt(ctx, item.Ciphertext)
	if err != nil {
		return core.Credential{}, fmt.Errorf("vault: decrypt %q: %w", reference, err)
	}
	return decodeCredential(plaintext)
}

// Destroy removes the credential behind reference. Destroying a missing or
// already-destroyed reference succeeds.
func (v *Vault) Destroy(ctx context.Context, reference string) error {
	if v == nil {
		return fmt.Errorf("vault: vault is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}
	if err := v.store.Delete(ctx, reference); err != nil {
		return fmt.Errorf("vault: destroy %q: %w", reference, err)
	}
	return nil
}

// Rotate replaces the credential behind an existing reference in place so
// link records keep their reference across token refreshes.
func (v *Vault) Rotate(ctx context.Context, reference string, cred core.Credential) (string, error) {
	if v == nil {
		return "", fmt.Errorf("vault: vault is nil")
	}
	item, found, err := v.getItem(ctx, reference)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("vault: rotate %q: %w", reference, ErrReferenceNotFound)
	}

	ciphertext, err := v.seal(ctx, cred)
	if err != nil {
		return "", err
	}
	item.Ciphertext = ciphertext
	item.KeyID, item.KeyVersion = v.keyMetadata()
	item.UpdatedAt = v.nowFn()
	if err := v.store.Save(ctx, item); err != nil {
		return "", fmt.Errorf("vault: save rotated item: %w", err)
	}
	return item.Reference, nil
}

func (v *Vault) References(ctx context.Context) ([]string, error) {
	if v == nil {
		return nil, fmt.Errorf("vault: vault is nil")
	}
	refs, err := v.store.ListReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault: list references: %w", err)
	}
	return refs, nil
}

func (v *Vault) seal(ctx context.Context, cred core.Credential) ([]byte, error) {
	plaintext, err := encodeCredential(cred)
	if err != nil {
		return nil, err
	}
	ciphertext, err := v.secret.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("vault: encrypt credential: %w", err)
	}
	return ciphertext, nil
}

func (v *Vault) getItem(ctx context.Context, reference string) (Item, bool, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Item{}, false, fmt.Errorf("vault: reference is required")
	}
	item, found, err := v.store.Get(ctx, reference)
	if err != nil {
		return Item{}, false, fmt.Errorf("vault: get item: %w", err)
	}
	return item, found, nil
}

func (v *Vault) keyMetadata() (string, int) {
	if provider, ok := v.secret.(KeyMetadataProvider); ok {
		return provider.Metadata()
	}
	return "", 0
}

var _ core.CredentialVault = (*Vault)(nil)
