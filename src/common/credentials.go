package common

import (
	"context"
	"fmt"

	"menusync/src/models"
	"menusync/src/repository"
	"menusync/src/types"
	"menusync/src/utils"

	"github.com/google/uuid"
)

// Vault stores tenant credentials encrypted and decrypts them only for the
// duration of a single use.
type Vault struct {
	Credentials *repository.CredentialRepository
	key         []byte
}

func NewVault(creds *repository.CredentialRepository, key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, utils.ErrInvalidKey
	}
	return &Vault{Credentials: creds, key: key}, nil
}

// Store creates or rotates a credential in one row write.
func (v *Vault) Store(ctx context.Context, tenantID uuid.UUID, service types.Service, credentialType types.CredentialType, value, secret string) (*types.APIResponseCredential, error) {
	encValue, err := utils.EncryptMessage(v.key, value)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}
	encSecret := ""
	if secret != "" {
		if encSecret, err = utils.EncryptMessage(v.key, secret); err != nil {
			return nil, fmt.Errorf("encrypt credential secret: %w", err)
		}
	}
	stored, err := v.Credentials.Upsert(ctx, tenantID, &models.ApiCredential{
		Service:         service,
		CredentialType:  credentialType,
		EncryptedValue:  encValue,
		EncryptedSecret: encSecret,
	})
	if err != nil {
		return nil, err
	}
	view := maskedView(stored, value)
	return &view, nil
}

// Reveal returns the plaintext of the active credential.
func (v *Vault) Reveal(ctx context.Context, tenantID uuid.UUID, service types.Service, credentialType types.CredentialType) (string, error) {
	value, _, err := v.RevealPair(ctx, tenantID, service, credentialType)
	return value, err
}

// RevealPair returns the value and optional secret, e.g. an OAuth client id
// and client secret.
func (v *Vault) RevealPair(ctx context.Context, tenantID uuid.UUID, service types.Service, credentialType types.CredentialType) (string, string, error) {
	cred, err := v.Credentials.Find(ctx, tenantID, service, credentialType)
	if err != nil {
		return "", "", err
	}
	value, err := utils.DecryptMessage(v.key, cred.EncryptedValue)
	if err != nil {
		return "", "", fmt.Errorf("decrypt credential: %w", err)
	}
	secret := ""
	if cred.EncryptedSecret != "" {
		if secret, err = utils.DecryptMessage(v.key, cred.EncryptedSecret); err != nil {
			return "", "", fmt.Errorf("decrypt credential secret: %w", err)
		}
	}
	return value, secret, nil
}

// List returns masked views only.
func (v *Vault) List(ctx context.Context, tenantID uuid.UUID) ([]types.APIResponseCredential, error) {
	creds, err := v.Credentials.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]types.APIResponseCredential, 0, len(creds))
	for i := range creds {
		plain, err := utils.DecryptMessage(v.key, creds[i].EncryptedValue)
		if err != nil {
			plain = ""
		}
		out = append(out, maskedView(&creds[i], plain))
	}
	return out, nil
}

func (v *Vault) Deactivate(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) error {
	return v.Credentials.Deactivate(ctx, tenantID, id)
}

func maskedView(c *models.ApiCredential, plain string) types.APIResponseCredential {
	masked := utils.Mask(plain)
	if plain == "" {
		masked = "********"
	}
	return types.APIResponseCredential{
		ID:             c.ID.String(),
		Service:        c.Service,
		CredentialType: c.CredentialType,
		MaskedValue:    masked,
		HasSecret:      c.EncryptedSecret != "",
		Active:         c.Active,
		RotatedAt:      c.RotatedAt,
	}
}
