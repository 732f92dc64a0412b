package cms

import "io"

// User is the account attached to a CMS login.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse is the body of POST /api/auth/local.
type AuthResponse struct {
	JWT  string `json:"jwt"`
	User User   `json:"user"`
}

// Media is an uploaded file as the CMS describes it.
type Media struct {
	ID   int     `json:"id"`
	Name string  `json:"name"`
	URL  string  `json:"url"`
	Mime string  `json:"mime"`
	Size float64 `json:"size"`
}

// UploadFile is one file for Upload.
type UploadFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// TreeFields are the scalar attributes of a tree record.
type TreeFields struct {
	SerialNumber string   `json:"serial_number"`
	Species      string   `json:"species,omitempty"`
	PlantedAt    string   `json:"planted_at,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	PlanterName  string   `json:"planter_name,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// TreeInput is the create payload; Photos holds uploaded media ids.
type TreeInput struct {
	TreeFields
	Photos []int `json:"photos,omitempty"`
}

// Tree is a stored tree record with its photos populated.
type Tree struct {
	ID int
	TreeFields
	Photos []Media
}

// Wire envelopes: single entries arrive as {"data":{"id","attributes"}} and
// relations as {"data":[...]}.

type dataRequest[T any] struct {
	Data T `json:"data"`
}

type treeEntry struct {
	ID         int        `json:"id"`
	Attributes treeRecord `json:"attributes"`
}

type treeRecord struct {
	TreeFields
	Photos mediaRelation `json:"photos"`
}

type mediaRelation struct {
	Data []mediaEntry `json:"data"`
}

type mediaEntry struct {
	ID         int   `json:"id"`
	Attributes Media `json:"attributes"`
}

func (e treeEntry) toTree() *Tree {
	t := &Tree{ID: e.ID, TreeFields: e.Attributes.TreeFields}
	for _, m := range e.Attributes.Photos.Data {
		media := m.Attributes
		media.ID = m.ID
		t.Photos = append(t.Photos, media)
	}
	return t
}

type errorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
