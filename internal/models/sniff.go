package models

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Extensions the registry treats as documents rather than markup.
var binaryExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".ods": true, ".odp": true,
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	".csv": true, ".json": true, ".xml": true, ".yaml": true, ".yml": true,
	".txt": true, ".md": true,
}

// ExpectsDocument reports whether a path's extension promises document
// bytes. Used to decide when an HTML body signals a block page.
func ExpectsDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return binaryExtensions[ext]
}

var htmlMarkers = [][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
}

// LooksLikeHTML sniffs the leading bytes for HTML markup. Servers that
// block non-browser clients often return a 200 with an HTML challenge
// page where a document was expected.
func LooksLikeHTML(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	checkLen := len(content)
	if checkLen > 1024 {
		checkLen = 1024
	}

	head := bytes.ToLower(bytes.TrimLeft(content[:checkLen], " \t\r\n\xef\xbb\xbf"))
	for _, marker := range htmlMarkers {
		if bytes.HasPrefix(head, marker) {
			return true
		}
	}

	return false
}

// IsBlockPage reports whether bytes destined for a document path look
// like an HTML interstitial instead.
func IsBlockPage(path string, contentType string, head []byte) bool {
	if !ExpectsDocument(path) {
		return false
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	return LooksLikeHTML(head)
}

// IsAccessDeniedPage reports whether HTML markup is a portal refusal
// rather than real content. DoD sites serve these with a 200 status,
// so the title is the only tell.
func IsAccessDeniedPage(content []byte) bool {
	lower := bytes.ToLower(content)
	start := bytes.Index(lower, []byte("<title"))
	if start < 0 {
		return false
	}
	end := bytes.Index(lower[start:], []byte("</title>"))
	if end < 0 {
		return false
	}
	return bytes.Contains(lower[start:start+end], []byte("access denied"))
}
