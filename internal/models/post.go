package models

import "time"

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"likedBy"`
	Comments  []Comment `json:"comments"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize restores the invariant likes == len(likedBy).
func (p *Post) Normalize() {
	p.LikedBy = nonNil(p.LikedBy)
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	p.Likes = len(p.LikedBy)
}
