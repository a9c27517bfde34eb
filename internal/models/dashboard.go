package models

import "time"

// AdminDashboard aggregates platform counters for the admin home page.
type AdminDashboard struct {
	TotalUsers         int             `json:"total_users"`
	TotalCourses       int             `json:"total_courses"`
	TotalSubscriptions int             `json:"total_subscriptions"`
	RecentUsers        []UserSummary   `json:"recent_users"`
	RecentCourses      []CourseSummary `json:"recent_courses"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// StudentDashboard is the student home view.
type StudentDashboard struct {
	Profile       UserInfo             `json:"profile"`
	Subscription  *Subscription        `json:"subscription,omitempty"`
	HasAccess     bool                 `json:"has_access"`
	InProgress    []CourseWithProgress `json:"in_progress"`
	LatestCourses []Course             `json:"latest_courses"`
}

// CourseWithProgress pairs a course with the viewer's progress on it.
type CourseWithProgress struct {
	Course   Course         `json:"course"`
	Progress CourseProgress `json:"progress"`
}
