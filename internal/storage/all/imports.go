// Package all wires all built-in storage backends into the storage factory.
//
// It exists purely for side effects: importing it runs the init functions of
// each backend, which register their repository factories and DDL builders.
// The following storage kinds become available:
//
//   - "mysql"    (TiDB and MySQL; the default)
//   - "postgres"
//   - "sqlite"
//   - "mssql"
//
// Typical usage in a wiring layer:
//
//	import _ "github.com/JinheLin/hdfs-log-reader/internal/storage/all"
package all

import (
	_ "github.com/JinheLin/hdfs-log-reader/internal/storage/mssql"
	_ "github.com/JinheLin/hdfs-log-reader/internal/storage/mysql"
	_ "github.com/JinheLin/hdfs-log-reader/internal/storage/postgres"
	_ "github.com/JinheLin/hdfs-log-reader/internal/storage/sqlite"
)
