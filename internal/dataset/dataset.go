// Package dataset declares the built-in NYC TLC datasets the ingest tool
// knows how to load: green trips, yellow trips, and the taxi-zone lookup
// table. Each dataset bundles its column schema, a default destination table
// name, and the URL layout of the published monthly files.
package dataset

import (
	"fmt"

	"tripingest/internal/schema"
)

// Format identifies the encoding of a source resource.
type Format string

const (
	// FormatCSV is gzip-compressed (or plain) delimited text.
	FormatCSV Format = "csv"
	// FormatParquet is an Apache Parquet file.
	FormatParquet Format = "parquet"
)

// ParseFormat normalizes a format flag value.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "csv", "":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("dataset: unknown format %q (want csv or parquet)", s)
	}
}

// Base URLs of the published data. The CSV archives live in the
// DataTalksClub mirror releases; parquet files are served by the TLC CDN.
const (
	csvBaseURL     = "https://github.com/DataTalksClub/nyc-tlc-data/releases/download"
	parquetBaseURL = "https://d37ci6vzurychx.cloudfront.net/trip-data"
	zonesURL       = csvBaseURL + "/misc/taxi_zone_lookup.csv"
)

// Dataset bundles everything needed to ingest one kind of source file.
type Dataset struct {
	// Name is the CLI-facing dataset key ("green", "yellow", "zones").
	Name string
	// DefaultTable is the destination table used when -target-table is unset.
	DefaultTable string
	// Schema is the declared column set of the source files.
	Schema schema.Schema
	// Monthly reports whether the dataset is published per year/month.
	Monthly bool
}

// URL composes the remote resource locator for the dataset. Monthly datasets
// key the file name by year and month; non-monthly ones (zones) ignore both.
func (d Dataset) URL(year, month int, format Format) string {
	if !d.Monthly {
		return zonesURL
	}
	if format == FormatParquet {
		return fmt.Sprintf("%s/%s_tripdata_%04d-%02d.parquet", parquetBaseURL, d.Name, year, month)
	}
	return fmt.Sprintf("%s/%s/%s_tripdata_%04d-%02d.csv.gz", csvBaseURL, d.Name, d.Name, year, month)
}

// Lookup returns the built-in dataset with the given name.
func Lookup(name string) (Dataset, error) {
	switch name {
	case "green":
		return Green(), nil
	case "yellow":
		return Yellow(), nil
	case "zones":
		return Zones(), nil
	default:
		return Dataset{}, fmt.Errorf("dataset: unknown dataset %q (want green, yellow or zones)", name)
	}
}

// Names lists the built-in dataset keys.
func Names() []string { return []string{"green", "yellow", "zones"} }

// Green returns the green-taxi trip dataset.
func Green() Dataset {
	return Dataset{
		Name:         "green",
		DefaultTable: "green_taxi_data",
		Monthly:      true,
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "VendorID", Type: schema.TypeInteger},
			{Name: "lpep_pickup_datetime", Type: schema.TypeTimestamp},
			{Name: "lpep_dropoff_datetime", Type: schema.TypeTimestamp},
			{Name: "store_and_fwd_flag", Type: schema.TypeText},
			{Name: "RatecodeID", Type: schema.TypeInteger},
			{Name: "PULocationID", Type: schema.TypeInteger},
			{Name: "DOLocationID", Type: schema.TypeInteger},
			{Name: "passenger_count", Type: schema.TypeInteger},
			{Name: "trip_distance", Type: schema.TypeFloat},
			{Name: "fare_amount", Type: schema.TypeFloat},
			{Name: "extra", Type: schema.TypeFloat},
			{Name: "mta_tax", Type: schema.TypeFloat},
			{Name: "tip_amount", Type: schema.TypeFloat},
			{Name: "tolls_amount", Type: schema.TypeFloat},
			{Name: "ehail_fee", Type: schema.TypeFloat},
			{Name: "improvement_surcharge", Type: schema.TypeFloat},
			{Name: "total_amount", Type: schema.TypeFloat},
			{Name: "payment_type", Type: schema.TypeInteger},
			{Name: "trip_type", Type: schema.TypeInteger},
			{Name: "congestion_surcharge", Type: schema.TypeFloat},
		}},
	}
}

// Yellow returns the yellow-taxi trip dataset.
func Yellow() Dataset {
	return Dataset{
		Name:         "yellow",
		DefaultTable: "yellow_taxi_data",
		Monthly:      true,
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "VendorID", Type: schema.TypeInteger},
			{Name: "tpep_pickup_datetime", Type: schema.TypeTimestamp},
			{Name: "tpep_dropoff_datetime", Type: schema.TypeTimestamp},
			{Name: "passenger_count", Type: schema.TypeInteger},
			{Name: "trip_distance", Type: schema.TypeFloat},
			{Name: "RatecodeID", Type: schema.TypeInteger},
			{Name: "store_and_fwd_flag", Type: schema.TypeText},
			{Name: "PULocationID", Type: schema.TypeInteger},
			{Name: "DOLocationID", Type: schema.TypeInteger},
			{Name: "payment_type", Type: schema.TypeInteger},
			{Name: "fare_amount", Type: schema.TypeFloat},
			{Name: "extra", Type: schema.TypeFloat},
			{Name: "mta_tax", Type: schema.TypeFloat},
			{Name: "tip_amount", Type: schema.TypeFloat},
			{Name: "tolls_amount", Type: schema.TypeFloat},
			{Name: "improvement_surcharge", Type: schema.TypeFloat},
			{Name: "total_amount", Type: schema.TypeFloat},
			{Name: "congestion_surcharge", Type: schema.TypeFloat},
		}},
	}
}

// Zones returns the taxi-zone lookup dataset (a single small CSV, not
// published per month).
func Zones() Dataset {
	return Dataset{
		Name:         "zones",
		DefaultTable: "zones",
		Monthly:      false,
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "LocationID", Type: schema.TypeInteger},
			{Name: "Borough", Type: schema.TypeText},
			{Name: "Zone", Type: schema.TypeText},
			{Name: "service_zone", Type: schema.TypeText},
		}},
	}
}
