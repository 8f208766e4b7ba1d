//go:build sqlite_vec && cgo

package vectorstore

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers the sqlite-vec extension as auto-loadable for every
	// mattn/go-sqlite3 connection opened after this point, adapted from
	// codenerd's internal/store/init_vec.go.
	vec.Auto()
}
