package util

import (
	"errors"
	"net/url"
	"strings"
)

var ErrNoFilename = errors.New("cannot extract valid filename")

// FilenameFromURL returns the last path element of the URL, rejecting
// anything that would not make a usable filename.
func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}
