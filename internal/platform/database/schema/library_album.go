package schema

// LibraryAlbumTable represents the 'library.album' table
type LibraryAlbumTable struct {
	Table      string
	ID         string
	ExternalID string
	CreatedAt  string
}

// LibraryAlbum is the schema definition for library.album
var LibraryAlbum = LibraryAlbumTable{
	Table:      "library.album",
	ID:         "id",
	ExternalID: "externalid",
	CreatedAt:  "createdat",
}

func (t LibraryAlbumTable) Columns() []string {
	return []string{t.ID, t.ExternalID}
}
