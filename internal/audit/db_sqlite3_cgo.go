//go:build cgo && sqlite3_cgo

package audit

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"
