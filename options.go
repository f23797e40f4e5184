// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlorm

import (
	"bytes"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/letsencrypt/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default connection options, applied by [Options.WithDefaults] to any option
// left unset.
const (
	DefaultHost    = "localhost"
	DefaultPort    = 3306
	DefaultCharset = "utf8"
	DefaultMaxSize = 10
	DefaultMinSize = 1
)

// Options holds the connection options consumed by [CreatePool].
type Options struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=0,max=65535"`
	User string `yaml:"user" validate:"required"`
	// Password may be left empty when PasswordFile names a file containing
	// the password, so that it can be kept out of the options file.
	Password     string `yaml:"password" validate:"required_without=PasswordFile"`
	PasswordFile string `yaml:"passwordfile"`
	Database     string `yaml:"database" validate:"required"`
	Charset      string `yaml:"charset"`
	// Autocommit is a pointer so that an explicit false is not replaced by
	// the default.
	Autocommit *bool `yaml:"autocommit"`
	MaxSize    int   `yaml:"maxsize" validate:"min=0"`
	MinSize    int   `yaml:"minsize" validate:"min=0,ltefield=MaxSize"`
	// ConnMaxLifetime is passed to sql.DB.SetConnMaxLifetime. Zero means
	// connections are reused forever.
	ConnMaxLifetime time.Duration `yaml:"connmaxlifetime"`
}

// LoadOptions reads [Options] from a YAML file. Defaults are not applied.
func LoadOptions(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrap(err, "reading options")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, errors.Wrapf(err, "parsing options file %q", path)
	}
	return opts, nil
}

// WithDefaults returns a copy of the options with every unset option replaced
// by its default.
func (o Options) WithDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	o.Charset = normaliseCharset(o.Charset)
	if o.Autocommit == nil {
		autocommit := true
		o.Autocommit = &autocommit
	}
	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MinSize == 0 {
		o.MinSize = DefaultMinSize
	}
	return o
}

// normaliseCharset maps the charset to the name MySQL uses for it. MySQL does
// not know "utf-8".
func normaliseCharset(charset string) string {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return DefaultCharset
	}
	return charset
}

var validate = validator.New()

// Validate checks that the required options are present and that the numeric
// options are in range.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(err, "invalid options")
	}
	return nil
}

// password returns the password, either directly from the options or by
// reading the password file.
func (o Options) password() (string, error) {
	if o.PasswordFile != "" {
		contents, err := os.ReadFile(o.PasswordFile)
		if err != nil {
			return "", errors.Wrap(err, "reading password file")
		}
		return strings.TrimRight(string(contents), "\n"), nil
	}
	return o.Password, nil
}

// DSN returns the go-sql-driver/mysql data source name described by the
// options. Defaults are applied first.
func (o Options) DSN() (string, error) {
	o = o.WithDefaults()
	password, err := o.password()
	if err != nil {
		return "", err
	}

	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	cfg.DBName = o.Database
	cfg.ParseTime = true
	// Report matched rather than changed rows, so that an UPDATE that
	// rewrites identical values still counts as one row.
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{
		"charset":    o.Charset,
		"autocommit": strconv.FormatBool(*o.Autocommit),
	}
	return cfg.FormatDSN(), nil
}
