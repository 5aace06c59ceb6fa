package artifacts

import (
	"errors"
	"strings"
)

const fileScheme = "file://"

func FileURI(path string) string {
	return fileScheme + path
}

func PathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileScheme) {
		return "", errors.New("not a file:// URI")
	}
	return strings.TrimPrefix(uri, fileScheme), nil
}
