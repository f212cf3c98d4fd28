// Package slogx contains slog attribute helpers shared by the client and the
// command line front-end.
package slogx

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const (
	// KeyLoggerName is the attribute key naming the component that logged.
	KeyLoggerName = "logger"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
// A nil error yields an empty attribute, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// ByteString creates a slog.Attr with the given key and a string representation of the byte slice value.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// LoggerName creates a slog.Attr with the provided logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// URL logs u without its user info and query string.
func URL(key string, u *url.URL) slog.Attr {
	if u == nil {
		return slog.String(key, "")
	}
	clean := *u
	clean.User = nil
	clean.RawQuery = ""
	return slog.String(key, clean.String())
}

// Secret logs a masked form of a credential: the first four characters followed
// by an ellipsis. Short values are fully masked.
func Secret(key, value string) slog.Attr {
	if len(value) <= 8 {
		return slog.String(key, strings.Repeat("*", len(value)))
	}
	return slog.String(key, value[:4]+"…")
}

// Stringer logs the String form of v.
func Stringer(key string, v fmt.Stringer) slog.Attr {
	if v == nil {
		return slog.String(key, "")
	}
	return slog.String(key, v.String())
}
