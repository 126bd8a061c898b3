package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: when
// envName+"_FILE" is set the secret is read from that path, otherwise the
// value of envName is used. Neither set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Credentials is a user name and password pair.
type Credentials struct {
	User     string
	Password string
}

// Set reports whether both halves are present.
func (c Credentials) Set() bool { return c.User != "" && c.Password != "" }

// ResolveCredentials reads NARRATIVE_<ROLE>_USER and NARRATIVE_<ROLE>_PASS,
// each with its _FILE form.
func ResolveCredentials(role string) (Credentials, error) {
	base := EnvPrefix + "_" + strings.ToUpper(role)
	user, err := ResolveSecret(base + "_USER")
	if err != nil {
		return Credentials{}, err
	}
	pass, err := ResolveSecret(base + "_PASS")
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{User: user, Password: pass}, nil
}
