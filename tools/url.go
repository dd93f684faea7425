package tools

import "strings"

// MakeAbsoluteURL joins path onto the public domain; the leading slash
// on path is optional.
func MakeAbsoluteURL(domain string, useSSL bool, path string) string {
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(domain, "/") + "/" + strings.TrimLeft(path, "/")
}

// MediaURL builds the absolute url of a stored media file.
func MediaURL(domain string, useSSL bool, mediaURL, filename string) string {
	return MakeAbsoluteURL(domain, useSSL, strings.TrimRight(mediaURL, "/")+"/"+strings.TrimLeft(filename, "/"))
}
