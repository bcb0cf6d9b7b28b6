package model

import "time"

type SiteSettings struct {
	MaintenanceMode     bool      `json:"maintenance_mode"`
	AllowRegistration   bool      `json:"allow_registration"`
	CurrentAcademicYear string    `json:"current_academic_year"`
	CurrentSemester     int       `json:"current_semester"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultSiteSettings is what a fresh deployment starts with.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		MaintenanceMode:     false,
		AllowRegistration:   true,
		CurrentAcademicYear: "2024/2025",
		CurrentSemester:     1,
	}
}
