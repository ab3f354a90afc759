// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package config holds the adapter configuration.
//
// A configuration is read from a TOML file, decoded with mapstructure,
// completed with defaults and finally overridden by CS3_<KEY> environment
// variables, so that containers can be configured without a file.
package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cs3org/cs3api4lab/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const envPrefix = "CS3_"

// Lock strategies understood by the lock manager.
const (
	LocksAPIMetadata = "metadata"
	LocksAPICS3      = "cs3"
)

var validate = validator.New()

// Config is the adapter configuration.
type Config struct {
	Endpoint   string `mapstructure:"endpoint" validate:"required"`
	Insecure   bool   `mapstructure:"insecure"`
	SkipVerify bool   `mapstructure:"skip_verify"`

	Authenticator string `mapstructure:"authenticator" validate:"oneof=basic token oidc"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	LoginType     string `mapstructure:"login_type"`
	Token         string `mapstructure:"token"`

	OIDCIssuer       string   `mapstructure:"oidc_issuer"`
	OIDCClientID     string   `mapstructure:"oidc_client_id"`
	OIDCClientSecret string   `mapstructure:"oidc_client_secret"`
	OIDCScopes       []string `mapstructure:"oidc_scopes"`

	HomeDir     string   `mapstructure:"home_dir"`
	RootDirList []string `mapstructure:"root_dir_list"`
	MountDir    string   `mapstructure:"mount_dir"`
	ChunkSize   int      `mapstructure:"chunk_size" validate:"gt=0"`

	LocksAPI               string `mapstructure:"locks_api" validate:"oneof=metadata cs3"`
	LockExpirationTime     int    `mapstructure:"lock_expiration_time" validate:"gt=0"`
	CopyLockExpirationTime int    `mapstructure:"copy_lock_expiration_time" validate:"gt=0"`
	LocksIndex             string `mapstructure:"locks_index"`

	EnableOCM    bool `mapstructure:"enable_ocm"`
	StatCacheTTL int  `mapstructure:"stat_cache_ttl" validate:"gte=0"`
	DevEnv       bool `mapstructure:"dev_env"`

	Log logger.Options `mapstructure:"log"`
}

// Init fills the unset fields with their defaults.
func (c *Config) Init() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:19000"
	}

	if c.Authenticator == "" {
		c.Authenticator = "basic"
	}

	if c.LoginType == "" {
		c.LoginType = "basic"
	}

	if c.HomeDir == "" {
		c.HomeDir = "/home"
	}

	if len(c.RootDirList) == 0 {
		c.RootDirList = []string{"/home", "/reva"}
	}

	if c.MountDir == "" {
		c.MountDir = c.HomeDir
	}

	if c.ChunkSize == 0 {
		c.ChunkSize = 4 * 1024 * 1024
	}

	if c.LocksAPI == "" {
		c.LocksAPI = LocksAPIMetadata
	}

	if c.LockExpirationTime == 0 {
		c.LockExpirationTime = 150
	}

	if c.CopyLockExpirationTime == 0 {
		c.CopyLockExpirationTime = 60
	}

	if c.LocksIndex == "" {
		c.LocksIndex = ".locks"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Mode == "" {
		c.Log.Mode = "console"
	}
}

// LockTTL is the validity of a primary file lock.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockExpirationTime) * time.Second
}

// CopyLockTTL is the validity of a working copy record.
func (c *Config) CopyLockTTL() time.Duration {
	return time.Duration(c.CopyLockExpirationTime) * time.Second
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "config: invalid configuration")
	}
	switch c.Authenticator {
	case "basic":
		if c.ClientID == "" {
			return errors.New("config: basic authenticator requires client_id")
		}
	case "token":
		if c.Token == "" {
			return errors.New("config: token authenticator requires token")
		}
	case "oidc":
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			return errors.New("config: oidc authenticator requires oidc_issuer and oidc_client_id")
		}
	}
	return nil
}

// Parse decodes a raw configuration map and applies the defaults.
func Parse(m map[string]interface{}) (*Config, error) {
	c := &Config{}
	if err := decode(m, c); err != nil {
		return nil, errors.Wrap(err, "error decoding conf")
	}
	c.Init()
	return c, nil
}

// Load reads the TOML file at path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	m := map[string]interface{}{}
	if path != "" {
		if _, err := toml.DecodeFile(path, &m); err != nil {
			return nil, errors.Wrap(err, "config: error reading "+path)
		}
	}

	c := &Config{}
	if err := decode(m, c); err != nil {
		return nil, errors.Wrap(err, "error decoding conf")
	}
	if err := ApplyEnv(c, os.LookupEnv); err != nil {
		return nil, err
	}
	c.Init()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides top level keys with CS3_<KEY> variables returned by lookup.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	m := map[string]interface{}{}
	t := reflect.TypeOf(*c)
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("mapstructure")
		if key == "" || t.Field(i).Type.Kind() == reflect.Struct {
			continue
		}
		if v, ok := lookup(envPrefix + strings.ToUpper(key)); ok {
			m[key] = v
		}
	}
	if len(m) == 0 {
		return nil
	}
	return errors.Wrap(decode(m, c), "config: error decoding environment")
}

func decode(m map[string]interface{}, c *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}
