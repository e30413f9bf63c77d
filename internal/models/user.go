package models

// User is a row of the external users store. The posts service only reads it
// to verify passwords; Password holds a bcrypt hash.
type User struct {
	Email    string `gorm:"primaryKey" json:"email"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// TableName pins the users table name.
func (User) TableName() string {
	return "users"
}
