package oachat

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fogfish/opts"
	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvAPIKey         = "OPENAI_API_KEY"
	EnvBaseURL        = "OPENAI_BASE_URL"
	EnvUser           = "OACHAT_USER"
	EnvUserAgent      = "OACHAT_USER_AGENT"
	EnvVerifyModel    = "OACHAT_VERIFY_MODEL"
	EnvRequestTimeout = "OACHAT_REQUEST_TIMEOUT"
	EnvStreamTimeout  = "OACHAT_STREAM_TIMEOUT"
)

// FromEnv returns an option that reads configuration from the given dotenv
// files and the process environment. Process variables win over file values.
// Missing files are ignored; unset variables leave the configuration alone.
func FromEnv(files ...string) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		env, err := readEnv(files...)
		if err != nil {
			return err
		}
		return applyEnv(c, env)
	})
}

func readEnv(files ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for _, key := range []string{EnvAPIKey, EnvBaseURL, EnvUser, EnvUserAgent, EnvVerifyModel, EnvRequestTimeout, EnvStreamTimeout} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

func applyEnv(c *Config, env map[string]string) error {
	setString := func(key string, dst *string) {
		if v := env[key]; v != "" {
			*dst = v
		}
	}
	setString(EnvAPIKey, &c.APIKey)
	setString(EnvBaseURL, &c.BaseURL)
	setString(EnvUser, &c.User)
	setString(EnvUserAgent, &c.UserAgent)
	setString(EnvVerifyModel, &c.VerifyModel)

	var err error
	setDuration := func(key string, dst *time.Duration) {
		v := env[key]
		if v == "" {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = errors.Join(err, &ConfigurationError{Field: key, Value: v, Err: perr})
			return
		}
		*dst = d
	}
	setDuration(EnvRequestTimeout, &c.RequestTimeout)
	setDuration(EnvStreamTimeout, &c.StreamTimeout)
	return err
}
