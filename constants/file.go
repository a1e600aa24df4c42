package constants

import "strings"

// MaxUploadBytes is the upload size cap enforced at the transport edge.
const MaxUploadBytes = 50 * 1024 * 1024

// AllowedExtensions holds the accepted file extensions for BOL uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tif":  {},
	"tiff": {},
}

// AllowedContentTypes holds the accepted declared MIME types.
var AllowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/tiff":      {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedUpload reports whether a filename/MIME pair is accepted.
func IsAllowedUpload(filename, contentType string) bool {
	if _, ok := AllowedContentTypes[strings.ToLower(contentType)]; !ok {
		return false
	}
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(filename[idx:])]
	return ok
}
