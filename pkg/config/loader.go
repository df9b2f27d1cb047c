// Package config loads accessguard settings into tagged structs. Values are
// resolved in three layers, later layers overriding earlier ones:
//
//	envDefault struct tags
//	a YAML or JSON settings file
//	environment variables
//
// Struct tags:
//
//   - `env:"NAME"` names the environment variable for a field. Nested
//     structs prefix their children with their own env tag.
//   - `envDefault:"value"` is applied when the field is still zero.
//   - `required:"true"` fails loading when the field is zero afterwards.
//
// File loading goes through the yaml and json tags of each field.
//
//	s := config.MustLoad[access.Settings](config.New().WithFile("access.yaml"))
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// LookupFunc resolves an environment variable. It has the signature of
// os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Loader resolves settings from defaults, an optional file, and the
// environment. A Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookup    LookupFunc
}

// New returns a Loader that reads the process environment and no file.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix prepends prefix and an underscore to every env tag. The
// prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets a .yaml, .yml or .json settings file. A missing file is
// not an error; paths containing ".." are rejected at load time.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces the environment source. Tests use it to avoid
// mutating the process environment.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn != nil {
		l.lookup = fn
	}
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, and
// validates it. Loading failures carry [agerr.CodeInternalConfiguration];
// a missing required field carries [agerr.CodeValidationRequired]; a
// failing [Validator] carries [agerr.CodeValidation] unless it already
// returned an *agerr.Error.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return agerr.New(agerr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return agerr.New(agerr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(rv, l.envPrefix, lookup); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// MustLoad loads a T or panics. It is meant for main packages, where bad
// settings should stop the process.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return agerr.New(agerr.CodeInternalConfiguration,
			"config: file path must not contain \"..\"")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
			"config: failed to read %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return agerr.Newf(agerr.CodeInternalConfiguration,
			"config: unsupported file extension %q", ext)
	}
	if err != nil {
		return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
			"config: failed to parse %q", l.filePath)
	}
	return nil
}

// isNested reports whether a field is a struct the loader descends into.
func isNested(field reflect.Value) bool {
	return field.Kind() == reflect.Struct && field.Type() != durationType
}

func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if isNested(field) {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}
		def, ok := sf.Tag.Lookup("envDefault")
		if !ok || !field.IsZero() {
			continue
		}
		if err := setField(field, def); err != nil {
			return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
				"config: bad default for field %q", sf.Name)
		}
	}
	return nil
}

func applyEnv(rv reflect.Value, prefix string, lookup LookupFunc) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		name := sf.Tag.Get("env")
		if isNested(field) {
			if err := applyEnv(field, joinEnv(prefix, name), lookup); err != nil {
				return err
			}
			continue
		}
		if name == "" {
			continue
		}
		key := joinEnv(prefix, name)
		val, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return agerr.Wrapf(err, agerr.CodeInternalConfiguration,
				"config: bad value for field %q from %s", sf.Name, key)
		}
	}
	return nil
}

func joinEnv(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

// setField parses value into field. Strings (including named string
// types), bools, signed integers, time.Duration and []string
// (comma-separated) are supported.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			out.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(out)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
