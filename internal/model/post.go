package model

import "time"

// Post is a blog post owned by the Content Service.
//
// AuthorID is a reference by value into the Identity Service's user table.
// There is no foreign key: the two services own separate schemas, and the
// id is trusted from the verified token at creation time.
//
// The table name ("posts") comes from the gorm naming strategy, which also
// carries the schema prefix, so no TableName method is defined here.
type Post struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title"      gorm:"size:200;not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	AuthorID  int64     `json:"author_id"  gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewPost is the payload accepted by POST /api/posts/. Both keys are
// required; their values are stored as sent, empty strings included.
type NewPost struct {
	Title   Optional[string] `json:"title"`
	Content Optional[string] `json:"content"`
}

// PostPatch is the payload accepted by PUT /api/posts/{id}.
type PostPatch struct {
	Title   Optional[string] `json:"title"`
	Content Optional[string] `json:"content"`
}
