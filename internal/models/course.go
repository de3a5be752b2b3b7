package models

import "time"

// CourseContent is the persisted course document (courses, modules, links)
// edited by admins. The document shape is owner-defined JSON; only the
// structure extractor interprets it.
type CourseContent struct {
	ID        string    `db:"id" json:"-"`
	Doc       JSONDoc   `db:"doc" json:"doc"`
	Version   int       `db:"version" json:"version"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ModuleLabs is one module's lab-slot count.
type ModuleLabs struct {
	ModuleID string `json:"module_id"`
	LabCount int    `json:"lab_count"`
}

// CourseModules is one course's ordered module list.
type CourseModules struct {
	CourseID string       `json:"course_id"`
	Modules  []ModuleLabs `json:"modules"`
}

// CourseStructure is the derived course -> module -> lab-count schema, in
// course-then-module order. Order matters: the flattened "Assignment N Grade"
// numbering walks this structure, so it is a slice rather than a map.
type CourseStructure []CourseModules

// TotalLabs returns the total number of lab slots across all modules.
func (s CourseStructure) TotalLabs() int {
	total := 0
	for _, course := range s {
		for _, module := range course.Modules {
			total += module.LabCount
		}
	}
	return total
}
