/*
Copyright © 2024 the cesmplot authors.
This file is part of cesmplot.

cesmplot is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cesmplot is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cesmplot.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash creates cache keys.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a cache key for the specified object. Objects that
// gob cannot encode, for example ones holding unregistered types in
// interfaces, are printed with spew instead.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err != nil {
		h.Reset()
		printer := spew.ConfigState{
			Indent:                  " ",
			SortKeys:                true,
			DisableMethods:          true,
			SpewKeys:                true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
		}
		printer.Fprintf(h, "%#v", object)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// fileKey identifies one version of a file.
type fileKey struct {
	Path    string
	ModTime int64
	Size    int64
}

// File returns a cache key for the file at path that changes
// whenever the file is modified.
func File(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	return Hash(fileKey{Path: abs, ModTime: fi.ModTime().UnixNano(), Size: fi.Size()}), nil
}
