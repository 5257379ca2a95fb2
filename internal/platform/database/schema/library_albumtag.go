package schema

// LibraryAlbumTagTable represents the 'library.albumtag' table
type LibraryAlbumTagTable struct {
	Table     string
	ID        string
	AlbumID   string
	TagID     string
	CreatedAt string
}

// LibraryAlbumTag is the schema definition for library.albumtag
var LibraryAlbumTag = LibraryAlbumTagTable{
	Table:     "library.albumtag",
	ID:        "id",
	AlbumID:   "albumid",
	TagID:     "tagid",
	CreatedAt: "createdat",
}

func (t LibraryAlbumTagTable) Columns() []string {
	return []string{t.ID, t.AlbumID, t.TagID}
}
