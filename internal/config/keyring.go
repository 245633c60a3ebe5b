package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "repograph"

	KeyringGeminiKeyItem   = "gemini-api-key"
	KeyringOpenAIKeyItem   = "openai-api-key"
	KeyringGitHubTokenItem = "github-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *logrus.Entry
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: logrus.StandardLogger().WithField("component", "keyring"),
	}
}

// Set stores a credential in the OS keychain
// - macOS: Keychain Access.app → "repograph" → item
// - Windows: Credential Manager → "repograph"
// - Linux: Secret Service (requires libsecret)
func (km *KeyringManager) Set(item, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}

	if err := keyring.Set(KeyringService, item, secret); err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to save credential to keychain")
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.WithField("item", item).Info("credential saved to keychain")
	return nil
}

// Get retrieves a credential. A missing item is not an error and yields "".
func (km *KeyringManager) Get(item string) (string, error) {
	secret, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to read credential from keychain")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return secret, nil
}

// Delete removes a credential; deleting a missing item succeeds
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to delete credential from keychain")
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if OS keychain is available
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.WithError(err).Debug("keychain not available")
		return false
	}
	return true
}
