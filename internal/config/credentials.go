package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// SecretEnv overrides the [elevation] secret key of the config file.
const SecretEnv = EnvPrefix + "ELEVATION_SECRET"

// Credentials reads the elevation secret fresh on every call.
type Credentials struct {
	path   string
	getenv func(string) string
}

// NewCredentials returns a source reading configPath and the environment.
func NewCredentials(configPath string) *Credentials {
	return &Credentials{path: configPath, getenv: os.Getenv}
}

// ElevationSecret returns the secret, preferring the env var over the file.
func (c *Credentials) ElevationSecret() (string, bool) {
	if v := c.getenv(SecretEnv); v != "" {
		return v, true
	}
	if c.path == "" {
		return "", false
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", false
	}
	return secretFromTOML(data)
}

// secretFromTOML extracts [elevation] secret and zeroes data on every path.
func secretFromTOML(data []byte) (string, bool) {
	defer clear(data)

	var raw struct {
		Elevation struct {
			Secret string `toml:"secret"`
		} `toml:"elevation"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return "", false
	}
	return raw.Elevation.Secret, raw.Elevation.Secret != ""
}
