package vault

import (
	"context"
	"fmt"

	"github.com/streamkit/go-linking/core"
)

// Rekey re-encrypts every stored item from the old key to the new one,
// returning how many items were rewritten. References are stable across the
// rewrite so link records need no update.
func Rekey(ctx context.Context, store ItemStore, from core.SecretProvider, to core.SecretProvider) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("vault: item store is required")
	}
	if from == nil || to == nil {
		return 0, fmt.Errorf("vault: both secret providers are required")
	}

	refs, err := store.ListReferences(ctx)
	if err != nil {
		return 0, fmt.Errorf("vault: list references: %w", err)
	}

	keyID, keyVersion := "", 0
	if provider, ok := to.(KeyMetadataProvider); ok {
		keyID, keyVersion = provider.Metadata()
	}

	rewritten := 0
	for _, reference := range refs {
		item, found, getErr := store.Get(ctx, reference)
		if getErr != nil {
			return rewritten, fmt.Errorf("vault: get %q: %w", reference, getErr)
		}
		if !found {
			continue
		}
		plaintext, decryptErr := from.Decrypt(ctx, item.Ciphertext)
		if decryptErr != nil {
			return rewritten, fmt.Errorf("vault: decrypt %q with old key: %w", reference, decryptErr)
		}
		ciphertext, encryptErr := to.Encrypt(ctx, plaintext)
		if encryptErr != nil {
			return rewritten, fmt.Errorf("vault: encrypt %q with new key: %w", reference, encryptErr)
		}
		item.Ciphertext = ciphertext
		item.KeyID = keyID
		item.KeyVersion = keyVersion
		if saveErr := store.Save(ctx, item); saveErr != nil {
			return rewritten, fmt.Errorf("vault: save %q: %w", reference, saveErr)
		}
		rewritten++
	}
	return rewritten, nil
}
