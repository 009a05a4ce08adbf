package configfile

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	EnvKeyName     = "MINI_API_KEY"
	EnvAuthEnabled = "MINI_API_AUTH_ENABLED"
)

var (
	ErrEnvMissing = errors.New(".env not found")
	ErrKeyExists  = errors.New(EnvKeyName + " already exists, use --force to overwrite")
)

var keyLine = regexp.MustCompile(`(?m)^\s*` + EnvKeyName + `\s*=.*$`)

// WriteAPIKey stores key as MINI_API_KEY in an existing dotenv file. An
// existing key is only replaced when force is set. When the key is new,
// MINI_API_AUTH_ENABLED=true is added unless the file mentions it already.
func WriteAPIKey(path, key string, force bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrEnvMissing
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	if keyLine.MatchString(content) {
		if !force {
			return ErrKeyExists
		}
		content = keyLine.ReplaceAllLiteralString(content, EnvKeyName+"="+key)
	} else {
		content = strings.TrimRight(content, " \t\r\n") + "\n\n" + EnvKeyName + "=" + key + "\n"
		if !strings.Contains(content, EnvAuthEnabled) {
			content += EnvAuthEnabled + "=true\n"
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
