package vault

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamkit/go-linking/core"
)

const credentialPayloadVersion = 1

type jsonCredentialPayload struct {
	Version      int        `json:"v"`
	TokenType    string     `json:"token_type,omitempty"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Refreshable  bool       `json:"refreshable"`
}

func encodeCredential(credential core.Credential) ([]byte, error) {
	payload := jsonCredentialPayload{
		Version:      credentialPayloadVersion,
		TokenType:    strings.TrimSpace(credential.TokenType),
		AccessToken:  strings.TrimSpace(credential.AccessToken),
		RefreshToken: strings.TrimSpace(credential.RefreshToken),
		Scopes:       append([]string(nil), credential.Scopes...),
		ExpiresAt:    credential.ExpiresAt,
		Refreshable:  credential.Refreshable,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vault: encode credential payload: %w", err)
	}
	return encoded, nil
}

func decodeCredential(payload []byte) (core.Credential, error) {
	if len(payload) == 0 {
		return core.Credential{}, fmt.Errorf("vault: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return core.Credential{}, fmt.Errorf("vault: decode credential payload: %w", err)
	}
	return core.Credential{
		TokenType:    strings.TrimSpace(decoded.TokenType),
		AccessToken:  strings.TrimSpace(decoded.AccessToken),
		RefreshToken: strings.TrimSpace(decoded.RefreshToken),
		Scopes:       append([]string(nil), decoded.Scopes...),
		ExpiresAt:    decoded.ExpiresAt,
		Refreshable:  decoded.Refreshable,
	}, nil
}
