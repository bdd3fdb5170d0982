// Package ifc writes terrain meshes as IFC4 documents in the ISO-10303-21
// (STEP physical file) encoding.
package ifc

import (
	"strconv"
	"time"
)

// Metadata describes the project a document belongs to. It is threaded
// through NewWriter; nothing in this package reads process-wide state.
type Metadata struct {
	Author             string    `yaml:"author"`
	Organization       string    `yaml:"organization"`
	ApplicationName    string    `yaml:"application_name"`
	ApplicationVersion string    `yaml:"application_version"`
	ProjectName        string    `yaml:"project_name"`
	SiteName           string    `yaml:"site_name"`
	SiteDescription    string    `yaml:"site_description"`
	CRS                int       `yaml:"-"` // set from the request
	CRSName            string    `yaml:"crs_name"`
	GeodeticDatum      string    `yaml:"geodetic_datum"`
	VerticalDatum      string    `yaml:"vertical_datum"`
	MapProjection      string    `yaml:"map_projection"`
	Layer              string    `yaml:"layer"`
	Timestamp          time.Time `yaml:"-"` // zero means time.Now at NewWriter
}

// DefaultMetadata returns metadata for an unnamed project in EUREF89 UTM zone 33.
func DefaultMetadata() Metadata {
	return Metadata{
		Author:             "",
		Organization:       "",
		ApplicationName:    "ifc-terrain",
		ApplicationVersion: "0.1.0",
		ProjectName:        "Terrain",
		SiteName:           "Site",
		CRS:                25833,
		CRSName:            "EUREF89 UTM sone 33",
		GeodeticDatum:      "EUREF89",
		VerticalDatum:      "NN2000",
		MapProjection:      "UTM",
		Layer:              "Terrengmodell",
	}
}

// CRSIdentifier returns the EPSG code as "EPSG:<crs>".
func (m Metadata) CRSIdentifier() string {
	return "EPSG:" + strconv.Itoa(m.CRS)
}
