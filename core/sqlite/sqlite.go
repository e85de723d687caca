// Package sqlite selects the SQLite driver at build time: the pure Go
// modernc.org/sqlite by default, mattn/go-sqlite3 behind the
// cgo_sqlite build tag. Open hides the differing driver names of the
// two implementations.
package sqlite

import "database/sql"

// Open opens a SQLite database with the compiled-in driver.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open(driverName, dsn)
}

// OpenReadOnly opens an existing database without write access.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open(path + "?mode=ro")
}

// Info describes the compiled-in driver.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo reports which driver this binary was built with.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      driverType == "cgo",
		Package:    driverPackage,
	}
}
