package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	ID           string
	CatalogID    string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	TokenExpiry  string
	LastLoginAt  string
	CreatedAt    string
	UpdatedAt    string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:        "users.account",
	ID:           "id",
	CatalogID:    "catalogid",
	DisplayName:  "displayname",
	AccessToken:  "accesstoken",
	RefreshToken: "refreshtoken",
	TokenExpiry:  "tokenexpiry",
	LastLoginAt:  "lastloginat",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.CatalogID, t.DisplayName, t.AccessToken, t.RefreshToken,
		t.TokenExpiry, t.LastLoginAt, t.CreatedAt, t.UpdatedAt,
	}
}
