package model

type Course struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`
}

// CourseSummary is a course with its derived count of visible resources.
// Counts are never stored.
type CourseSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}
