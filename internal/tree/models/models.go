package models

// Photo is an uploaded picture of a tree.
type Photo struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Tree is the public profile of a planted tree.
type Tree struct {
	ID           int      `json:"id"`
	SerialNumber string   `json:"serial_number"`
	Species      string   `json:"species,omitempty"`
	PlantedAt    string   `json:"planted_at,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	PlanterName  string   `json:"planter_name,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Photos       []Photo  `json:"photos"`
}

// PhotoFile is a photo attached to a form, held in memory until upload.
type PhotoFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Form is the data-entry form a field volunteer submits after a scan.
type Form struct {
	SerialNumber string
	Species      string
	PlantedAt    string
	Latitude     *float64
	Longitude    *float64
	LocationName string
	PlanterName  string
	Notes        string
	Photos       []PhotoFile
}

// Resolution is the public answer to a scanned payload. Domain advisories are
// kept out of it.
type Resolution struct {
	Serial string `json:"serial"`
	IsURL  bool   `json:"is_url"`
}
