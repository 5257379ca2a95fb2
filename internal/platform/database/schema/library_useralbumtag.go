package schema

// LibraryUserAlbumTagTable represents the 'library.useralbumtag' table.
// Seq is a global identity column that preserves membership insertion order.
type LibraryUserAlbumTagTable struct {
	Table      string
	UserID     string
	AlbumTagID string
	Seq        string
	CreatedAt  string
}

// LibraryUserAlbumTag is the schema definition for library.useralbumtag
var LibraryUserAlbumTag = LibraryUserAlbumTagTable{
	Table:      "library.useralbumtag",
	UserID:     "userid",
	AlbumTagID: "albumtagid",
	Seq:        "seq",
	CreatedAt:  "createdat",
}

func (t LibraryUserAlbumTagTable) Columns() []string {
	return []string{t.UserID, t.AlbumTagID, t.Seq}
}
