package pkgconfig

import "io"

// Config is the read-only view of configuration used by the application.
type Config interface {
	io.Closer

	GetInt(key string) int64
	GetBool(key string) bool
	GetString(key string) string
	GetArray(key string) []string
	IsSet(key string) bool
}
