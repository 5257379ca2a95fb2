package schema

// LibraryListeningItemTable represents the 'library.listeningitem' table
type LibraryListeningItemTable struct {
	Table           string
	UserID          string
	AlbumExternalID string
	CreatedAt       string
}

// LibraryListeningItem is the schema definition for library.listeningitem
var LibraryListeningItem = LibraryListeningItemTable{
	Table:           "library.listeningitem",
	UserID:          "userid",
	AlbumExternalID: "albumexternalid",
	CreatedAt:       "createdat",
}

func (t LibraryListeningItemTable) Columns() []string {
	return []string{t.UserID, t.AlbumExternalID, t.CreatedAt}
}
