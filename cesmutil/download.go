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

package cesmutil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/cesmplot/cesmio"
)

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL, a blob or an scp location.
// If it is, it copies the file into dir and returns the path to the
// copy. If dir is empty, a temporary directory is used.
// For shapefiles, it downloads all associated files and
// returns the path to the file with the ".shp" extension.
// Any other path is returned unchanged.
func maybeDownload(ctx context.Context, path, dir string) (string, error) {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}

	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		return downloadHTTP(ctx, path, dir)
	case IsBlob(path):
		return downloadBlob(ctx, path, dir)
	case isSCP(path):
		return downloadSCP(ctx, path, dir)
	}
	return path, nil
}

// downloadDir creates dir, or a temporary directory if dir is empty.
func downloadDir(dir string) (string, error) {
	if dir == "" {
		d, err := ioutil.TempDir("", "cesmplot")
		if err != nil {
			return "", fmt.Errorf("cesmutil: failed creating temporary download directory: %v", err)
		}
		return d, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cesmutil: failed creating download directory: %v", err)
	}
	return dir, nil
}

// httpRetries is the number of times a failed HTTP download is retried.
var httpRetries uint64 = 5

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func downloadHTTP(ctx context.Context, path, dir string) (string, error) {
	dir, err := downloadDir(dir)
	if err != nil {
		return path, err
	}
	fnames := expandShp(path)
	for i, fname := range fnames {
		err := getHTTP(ctx, fname, filepath.Join(dir, filepath.Base(fname)))
		if err != nil {
			if i > 0 && strings.HasSuffix(fname, ".prj") {
				continue // The projection file is optional.
			}
			return path, err
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// getHTTP copies the body of a GET request to dst, retrying
// server errors and network failures.
func getHTTP(ctx context.Context, u, dst string) error {
	var permanent error
	err := backoff.RetryNotify(
		func() error {
			req, err := http.NewRequest("GET", u, nil)
			if err != nil {
				permanent = err
				return nil
			}
			resp, err := http.DefaultClient.Do(req.WithContext(ctx))
			if err != nil {
				if ctx.Err() != nil {
					permanent = ctx.Err()
					return nil
				}
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				return fmt.Errorf("%s: %s", u, resp.Status)
			}
			if resp.StatusCode != http.StatusOK {
				permanent = fmt.Errorf("%s: %s", u, resp.Status)
				return nil
			}
			return copyTo(dst, resp.Body)
		},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), httpRetries), ctx),
		func(err error, d time.Duration) {
			logrus.WithField("url", u).Warnf("%v: retrying in %v", err, d)
		},
	)
	if err == nil {
		err = permanent
	}
	if err != nil {
		return fmt.Errorf("cesmutil: downloading %s: %v", u, err)
	}
	logrus.WithFields(logrus.Fields{"url": u, "path": dst}).Info("downloaded file")
	return nil
}

// copyTo writes the contents of r to a new file at path.
func copyTo(path string, r io.Reader) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cesmutil: failed creating file for download: %v", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// Even if name contains subdirectories, only the base directory name will be
// used when opening the bucket.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	url, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cesmutil.OpenBucket: %v", err)
	}
	switch url.Scheme {
	case "file":
		return fileblob.NewBucket(url.Hostname())
	case "gs":
		return gsBucket(ctx, url.Hostname())
	case "s3":
		return s3Bucket(ctx, url.Hostname())
	default:
		return nil, fmt.Errorf("cesmutil.OpenBucket: invalid provider %s", url.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, path, dir string) (string, error) {
	url, err := url.Parse(path)
	if err != nil {
		return path, fmt.Errorf("cesmutil: %v", err)
	}
	bucket, err := OpenBucket(ctx, url.Scheme+"://"+url.Host)
	if err != nil {
		return path, err
	}
	dir, err = downloadDir(dir)
	if err != nil {
		return path, err
	}
	fnames := expandShp(url.Path)
	for i, fname := range fnames {
		r, err := bucket.NewReader(ctx, strings.TrimPrefix(fname, "/"))
		if err != nil {
			if i > 0 && strings.HasSuffix(fname, ".prj") {
				continue
			}
			return path, fmt.Errorf("cesmutil: reading %s: %v", path, err)
		}
		err = copyTo(filepath.Join(dir, filepath.Base(fname)), r)
		r.Close()
		if err != nil {
			return path, err
		}
	}
	logrus.WithFields(logrus.Fields{"blob": path, "dir": dir}).Info("downloaded file")
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// expandShp returns the file name, plus the names of the support
// files if it is a shapefile.
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}

// fetch copies remote into dir and returns the local path. If clean is
// true, variables with no valid values and length-one dimensions are
// removed from the copy.
func fetch(ctx context.Context, remote, dir string, clean bool) (string, error) {
	path, err := maybeDownload(ctx, remote, dir)
	if err != nil {
		return "", err
	}
	if !clean {
		return path, nil
	}
	ds, err := cesmio.Open(path)
	if err != nil {
		return "", err
	}
	ds = cesmio.Clean(ds)
	dst := path
	if path == remote { // A local file is cleaned into dir rather than in place.
		if dir, err = downloadDir(dir); err != nil {
			return "", err
		}
		dst = filepath.Join(dir, filepath.Base(path))
	}
	if sameFile(dst, remote) {
		return "", fmt.Errorf("cesmutil: refusing to overwrite %s; choose a different DataDir", remote)
	}
	tmp := dst + ".tmp"
	if err := writeDataset(tmp, ds); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("cesmutil: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"path":      dst,
		"variables": ds.DataVariables(),
	}).Info("cleaned fetched file")
	return dst, nil
}

// sameFile reports whether paths a and b refer to the same file,
// either by their absolute names or, if both exist, by identity.
func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	fa, errA := os.Stat(a)
	fb, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(fa, fb)
}
