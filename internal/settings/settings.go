// Package settings is the runtime configuration persisted as ze.conf:
// space separated key=value pairs, `$SPACE#` stands for a space inside value.
//
// Value coercion, first match wins:
//  1. surrounded by matching quotes (" or ') -> string without the quotes
//  2. True / False (also lower case) -> bool
//  3. contains '.' and parses as float -> float64
//  4. parses as integer -> int64
//  5. anything else, including empty -> string
package settings

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const SpaceEscape = "$SPACE#"

// Settings keeps insertion order for stable String().
// Values are string, bool, int64 or float64.
type Settings struct {
	keys []string
	m    map[string]interface{}
}

func New() *Settings {
	return &Settings{m: make(map[string]interface{}, 16)}
}

func (s *Settings) Len() int { return len(s.keys) }

func (s *Settings) Keys() []string {
	c := make([]string, len(s.keys))
	copy(c, s.keys)
	return c
}

func (s *Settings) Get(key string) (interface{}, bool) {
	v, ok := s.m[key]
	return v, ok
}

// Set accepts string, bool, any int, float32/64.
func (s *Settings) Set(key string, value interface{}) {
	switch v := value.(type) {
	case string, bool, int64, float64:
	case int:
		value = int64(v)
	case int32:
		value = int64(v)
	case uint16:
		value = int64(v)
	case float32:
		value = float64(v)
	default:
		panic(fmt.Sprintf("code error settings Set key=%s unsupported type %T", key, value))
	}
	if _, ok := s.m[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.m[key] = value
}

func (s *Settings) Delete(key string) bool {
	if _, ok := s.m[key]; !ok {
		return false
	}
	delete(s.m, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

func (s *Settings) GetString(key, def string) string {
	if v, ok := s.m[key]; ok {
		if x, ok := v.(string); ok {
			return x
		}
		return format(v)
	}
	return def
}

func (s *Settings) GetBool(key string, def bool) bool {
	if x, ok := s.m[key].(bool); ok {
		return x
	}
	return def
}

func (s *Settings) GetInt(key string, def int) int {
	switch x := s.m[key].(type) {
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return def
}

func (s *Settings) GetFloat(key string, def float64) float64 {
	switch x := s.m[key].(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return def
}

// Apply executes assignments from text onto s, returns assigned keys.
// Tokens without '=' are ignored.
func (s *Settings) Apply(text string) []string {
	var keys []string
	for _, token := range strings.Fields(text) {
		token = strings.Replace(token, SpaceEscape, " ", -1)
		eq := strings.IndexByte(token, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(token[:eq])
		if key == "" {
			continue
		}
		s.Set(key, Coerce(token[eq+1:]))
		keys = append(keys, key)
	}
	return keys
}

// String serializes in ze.conf grammar. Apply(String()) restores same values.
func (s *Settings) String() string {
	b := strings.Builder{}
	for i, k := range s.keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Replace(encode(s.m[k]), " ", SpaceEscape, -1))
	}
	return b.String()
}

// Load applies file content onto s. Missing file is reported with errors.IsNotFound.
func (s *Settings) Load(path string) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound(err, "settings file "+path)
		}
		return errors.Annotatef(err, "settings load path=%s", path)
	}
	s.Apply(string(b))
	return nil
}

// Save replaces file atomically with rename.
func (s *Settings) Save(path string) error {
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".ze.conf-")
	if err != nil {
		return errors.Annotatef(err, "settings save path=%s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.WriteString(s.String()); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	return errors.Annotatef(err, "settings save path=%s", path)
}

func Coerce(value string) interface{} {
	if n := len(value); n >= 2 && (value[0] == '"' || value[0] == '\'') && value[n-1] == value[0] {
		return value[1 : n-1]
	}
	switch value {
	case "True", "true":
		return true
	case "False", "false":
		return false
	}
	if strings.Contains(value, ".") {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	return value
}

func format(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		f := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(f, ".") {
			f += ".0"
		}
		return f
	}
	return fmt.Sprint(v)
}

func encode(v interface{}) string {
	str, ok := v.(string)
	if !ok {
		return format(v)
	}
	if str == "" {
		return ""
	}
	if c, isStr := Coerce(str).(string); isStr && c == str {
		return str
	}
	return `"` + str + `"`
}

// TypeName for human readable listing.
func TypeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	}
	return fmt.Sprintf("%T", v)
}
