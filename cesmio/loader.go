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

package cesmio

import (
	"context"
	"fmt"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot"
	"github.com/spatialmodel/cesmplot/internal/hash"
)

// Loader opens and cleans datasets, keeping the most recently used ones
// in memory. Loads are handled one at a time, so concurrent requests for
// the same file read it only once. A file is read again if it changes
// on disk.
//
// Datasets returned by a Loader are shared between callers and
// must not be modified.
type Loader struct {
	mu    sync.Mutex
	cache *requestcache.Cache
	log   logrus.FieldLogger
}

// NewLoader returns a loader that keeps up to cacheSize datasets in memory.
// If log is nil, logrus.StandardLogger() is used.
func NewLoader(cacheSize int, log logrus.FieldLogger) *Loader {
	if cacheSize < 1 {
		cacheSize = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Loader{log: log}
	l.cache = requestcache.NewCache(l.load, 1, requestcache.Memory(cacheSize))
	return l
}

func (l *Loader) load(ctx context.Context, request interface{}) (interface{}, error) {
	path := request.(string)
	l.log.WithField("path", path).Info("reading dataset")
	ds, err := Open(path)
	if err != nil {
		return nil, err
	}
	ds = Clean(ds)
	l.log.WithFields(logrus.Fields{
		"path":      path,
		"variables": ds.DataVariables(),
	}).Debug("finished reading dataset")
	return ds, nil
}

// Load returns the cleaned dataset at path.
func (l *Loader) Load(ctx context.Context, path string) (*cesmplot.Dataset, error) {
	key, err := hash.File(path)
	if err != nil {
		return nil, fmt.Errorf("cesmio: %v", err)
	}
	l.mu.Lock()
	result, err := l.cache.NewRequest(ctx, path, key).Result()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return result.(*cesmplot.Dataset), nil
}
