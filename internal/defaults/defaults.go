// Package defaults provides embedded copies of the starter files
// written by the tao init subcommand.
package defaults

import _ "embed"

// ConfigYAML is the example configuration file.
//
//go:embed config.example.yaml
var ConfigYAML []byte

// OfficesCSV is the sample office dataset.
//
//go:embed offices.csv
var OfficesCSV []byte

// OfficesMD is a short document about the offices, indexed for
// search_offices.
//
//go:embed offices.md
var OfficesMD []byte
