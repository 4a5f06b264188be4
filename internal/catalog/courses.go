package catalog

import (
	"bitwise74/course-archive/internal/model"
	"context"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm/clause"
)

type courseCount struct {
	CourseID string
	Count    int
}

// Courses lists every course with its number of visible resources, busiest
// first and alphabetical on ties. A non-empty query keeps courses whose id or
// name contains it, ignoring case.
func (c *Catalog) Courses(ctx context.Context, query string) ([]model.CourseSummary, error) {
	var courses []model.Course
	if err := c.DB.WithContext(ctx).Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to list courses, %w", err)
	}

	var counts []courseCount
	err := c.DB.WithContext(ctx).
		Model(model.Resource{}).
		Where("hidden = ?", false).
		Select("course_id, count(*) AS count").
		Group("course_id").
		Scan(&counts).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to count resources, %w", err)
	}

	byCourse := make(map[string]int, len(counts))
	for _, cc := range counts {
		byCourse[cc.CourseID] = cc.Count
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.CourseSummary, 0, len(courses))

	for _, course := range courses {
		if query != "" &&
			!strings.Contains(strings.ToLower(course.ID), query) &&
			!strings.Contains(strings.ToLower(course.Name), query) {
			continue
		}

		out = append(out, model.CourseSummary{
			ID:    course.ID,
			Name:  course.Name,
			Count: byCourse[course.ID],
		})
	}

	slices.SortFunc(out, func(a, b model.CourseSummary) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}

		return strings.Compare(a.ID, b.ID)
	})

	return out, nil
}

// UpsertCourse creates the course or renames it
func (c *Catalog) UpsertCourse(ctx context.Context, id, name string) (*model.Course, error) {
	course := &model.Course{
		ID:   strings.ToUpper(strings.TrimSpace(id)),
		Name: strings.TrimSpace(name),
	}

	err := c.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(course).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to save course, %w", err)
	}

	return course, nil
}
