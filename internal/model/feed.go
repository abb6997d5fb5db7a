package model

import "strings"

// FeedRecord is one row of the SIH daily dam report. It carries catalog
// attributes and the same-day reading for one dam. Numeric fields are
// pointers so that absent values can be told apart from zero.
type FeedRecord struct {
	MonitoringID       *int     `json:"idmonitoreodiario,omitempty"`
	MonitoringDate     string   `json:"fechamonitoreo,omitempty"`
	SIHKey             string   `json:"clavesih"`
	OfficialName       string   `json:"nombreoficial,omitempty"`
	CommonName         string   `json:"nombrecomun,omitempty"`
	State              string   `json:"estado,omitempty"`
	Municipality       string   `json:"nommunicipio,omitempty"`
	CNARegion          string   `json:"regioncna,omitempty"`
	Latitude           *float64 `json:"latitud,omitempty"`
	Longitude          *float64 `json:"longitud,omitempty"`
	Usage              string   `json:"uso,omitempty"`
	Current            string   `json:"corriente,omitempty"`
	SpillwayType       string   `json:"tipovertedor,omitempty"`
	OperationStartYear string   `json:"inicioop,omitempty"`
	CrownElevation     string   `json:"elevcorona,omitempty"`
	Freeboard          *float64 `json:"bordolibre,omitempty"`
	NAMEElevation      *float64 `json:"nameelev,omitempty"`
	NAMECapacity       *float64 `json:"namealmac,omitempty"`
	NAMOElevation      *float64 `json:"namoelev,omitempty"`
	NAMOCapacity       *float64 `json:"namoalmac,omitempty"`
	CurtainHeight      string   `json:"alturacortina,omitempty"`
	CurrentElevation   *float64 `json:"elevacionactual,omitempty"`
	CurrentCapacity    *float64 `json:"almacenaactual,omitempty"`
	FillPct            *float64 `json:"llenano,omitempty"`
}

// Key returns the trimmed SIH key.
func (r FeedRecord) Key() string {
	return strings.TrimSpace(r.SIHKey)
}

// Dam projects the catalog attributes of the record. Absent numbers become
// zero.
func (r FeedRecord) Dam() Dam {
	return Dam{
		SIHKey:             r.Key(),
		OfficialName:       r.OfficialName,
		CommonName:         r.CommonName,
		State:              r.State,
		Municipality:       r.Municipality,
		CNARegion:          r.CNARegion,
		Latitude:           deref(r.Latitude),
		Longitude:          deref(r.Longitude),
		Usage:              r.Usage,
		Current:            r.Current,
		SpillwayType:       r.SpillwayType,
		OperationStartYear: r.OperationStartYear,
		CrownElevation:     r.CrownElevation,
		Freeboard:          deref(r.Freeboard),
		NAMEElevation:      deref(r.NAMEElevation),
		NAMECapacity:       deref(r.NAMECapacity),
		CurtainHeight:      r.CurtainHeight,
	}
}

// Reading projects the same-day measurement triple.
func (r FeedRecord) Reading() Reading {
	return Reading{
		Elevation: r.CurrentElevation,
		Capacity:  r.CurrentCapacity,
		FillPct:   r.FillPct,
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Float returns a pointer to f. Handy when building feed records in code.
func Float(f float64) *float64 {
	return &f
}
