// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: openai-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names of the model credential in the environment and in the secrets
// directory.
const (
	CredentialEnv  = "OPENAI_API_KEY"
	CredentialFile = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Origin says where a resolved credential came from.
type Origin string

const (
	OriginNone   Origin = "none"
	OriginFlag   Origin = "flag"
	OriginEnv    Origin = "env"
	OriginSecret Origin = "secrets"
)

// ResolveCredential picks the model credential: explicit (flag or config)
// first, then the environment, then the loaded secrets. getenv is usually
// os.Getenv.
func ResolveCredential(explicit string, getenv func(string) string, loaded map[string]string) (string, Origin) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, OriginFlag
	}
	if getenv != nil {
		if v := strings.TrimSpace(getenv(CredentialEnv)); v != "" {
			return v, OriginEnv
		}
	}
	if v := loaded[CredentialFile]; v != "" {
		return v, OriginSecret
	}
	return "", OriginNone
}
