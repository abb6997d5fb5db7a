package model

import (
	"time"
)

// Dam is a catalog entry for one reservoir, identified by its SIH key.
type Dam struct {
	ID                 int64     `json:"id" yaml:"id"`
	SIHKey             string    `json:"sih_key" yaml:"sih_key"`
	OfficialName       string    `json:"official_name" yaml:"official_name"`
	CommonName         string    `json:"common_name" yaml:"common_name"`
	State              string    `json:"state" yaml:"state"`
	Municipality       string    `json:"municipality" yaml:"municipality"`
	CNARegion          string    `json:"cna_region" yaml:"cna_region"`
	Latitude           float64   `json:"latitude" yaml:"latitude"`
	Longitude          float64   `json:"longitude" yaml:"longitude"`
	Usage              string    `json:"usage" yaml:"usage"`
	Current            string    `json:"current" yaml:"current"`
	SpillwayType       string    `json:"spillway_type" yaml:"spillway_type"`
	OperationStartYear string    `json:"operation_start_year" yaml:"operation_start_year"`
	CrownElevation     string    `json:"crown_elevation" yaml:"crown_elevation"`
	Freeboard          float64   `json:"freeboard" yaml:"freeboard"`
	NAMEElevation      float64   `json:"name_elevation" yaml:"name_elevation"`
	NAMECapacity       float64   `json:"name_capacity" yaml:"name_capacity"`
	CurtainHeight      string    `json:"curtain_height" yaml:"curtain_height"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" yaml:"updated_at"`
}

// Overwrite copies every mutable attribute of src onto d. Identity (ID,
// SIHKey) and audit stamps are left untouched. Blank or zero values in src
// replace populated values in d.
func (d *Dam) Overwrite(src Dam) {
	d.OfficialName = src.OfficialName
	d.CommonName = src.CommonName
	d.State = src.State
	d.Municipality = src.Municipality
	d.CNARegion = src.CNARegion
	d.Latitude = src.Latitude
	d.Longitude = src.Longitude
	d.Usage = src.Usage
	d.Current = src.Current
	d.SpillwayType = src.SpillwayType
	d.OperationStartYear = src.OperationStartYear
	d.CrownElevation = src.CrownElevation
	d.Freeboard = src.Freeboard
	d.NAMEElevation = src.NAMEElevation
	d.NAMECapacity = src.NAMECapacity
	d.CurtainHeight = src.CurtainHeight
}

// DamInfo pairs a dam with its measurement history.
type DamInfo struct {
	Dam          Dam           `json:"dam"`
	Measurements []Measurement `json:"measurements"`
}
