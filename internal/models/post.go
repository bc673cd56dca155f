package models

// Post is a blog entry. Only the author may edit or delete it.
type Post struct {
	BaseModel

	AuthorID  string `gorm:"type:uuid;not null;index" json:"author_id"`
	Author    *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title     string `gorm:"not null" json:"title"`
	Slug      string `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt   string `json:"excerpt"`
	Body      string `gorm:"type:text" json:"body"`
	Published bool   `gorm:"default:false;index" json:"published"`
}
