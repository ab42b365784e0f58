// Package store is the flat image store: `<name>.b64` files at root
// and `.last_badge` holding the most recently shown name.
package store

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
)

const (
	Ext       = ".b64"
	LastBadge = ".last_badge"
)

type Store struct {
	Root string
}

func New(root string) *Store { return &Store{Root: root} }

// Normalize appends Ext if missing and rejects names escaping root.
func Normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == Ext {
		return "", errors.NotValidf("empty image name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." || name == LastBadge {
		return "", errors.NotValidf("image name=%q", name)
	}
	if !strings.HasSuffix(name, Ext) {
		name += Ext
	}
	return name, nil
}

// List returns sorted names of regular files with Ext suffix.
func (s *Store) List() ([]string, error) {
	infos, err := ioutil.ReadDir(s.Root)
	if err != nil {
		return nil, errors.Annotatef(err, "store list root=%s", s.Root)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.Mode().IsRegular() && strings.HasSuffix(fi.Name(), Ext) {
			names = append(names, fi.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Write stores payload verbatim, returns normalized name.
func (s *Store) Write(name string, payload []byte) (string, error) {
	name, err := Normalize(name)
	if err != nil {
		return "", err
	}
	if err = writeFile(s.path(name), payload); err != nil {
		return "", errors.Annotatef(err, "store write name=%s", name)
	}
	return name, nil
}

func (s *Store) Read(name string) ([]byte, error) {
	name, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	b, err := ioutil.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(err, "image "+name)
		}
		return nil, errors.Annotatef(err, "store read name=%s", name)
	}
	return b, nil
}

// Delete removes image if present, absence is not an error.
func (s *Store) Delete(name string) (string, error) {
	name, err := Normalize(name)
	if err != nil {
		return "", err
	}
	if err = os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return name, errors.Annotatef(err, "store delete name=%s", name)
	}
	return name, nil
}

// LastBadge returns empty string if none recorded.
func (s *Store) LastBadge() (string, error) {
	b, err := ioutil.ReadFile(s.path(LastBadge))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Annotate(err, "store last badge")
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *Store) SetLastBadge(name string) error {
	name, err := Normalize(name)
	if err != nil {
		return err
	}
	return errors.Annotate(writeFile(s.path(LastBadge), []byte(name)), "store set last badge")
}

func (s *Store) path(name string) string { return filepath.Join(s.Root, name) }

func writeFile(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
