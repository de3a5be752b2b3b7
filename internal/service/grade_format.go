package service

import (
	"fmt"

	"github.com/noah-isme/course-ops-api/internal/models"
)

// Assignment grades exist in two representations: the nested
// course -> module -> lab tree persisted on AdminStudent, and the flat
// "Assignment N Grade" fields exposed to API consumers and spreadsheets.
// All conversion between the two lives here; numbering always walks the
// course structure in order so field positions stay stable across records.

// AssignmentField returns the flat field name for the n-th (1-based) slot.
func AssignmentField(n int) string {
	return fmt.Sprintf("Assignment %d Grade", n)
}

// AssignmentFields lists the flat field names for the given lab count.
func AssignmentFields(total int) []string {
	fields := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		fields = append(fields, AssignmentField(i))
	}
	return fields
}

func labKey(n int) string {
	return fmt.Sprintf("lab%d", n)
}

// FlattenGrades walks the structure in course-then-module order and emits one
// flat field per lab slot. The running counter advances even when the student
// has no stored value for a course or module, so numbering is identical
// across partially migrated records. Missing values flatten to "".
func FlattenGrades(structure models.CourseStructure, grades models.GradeTree) map[string]string {
	flat := make(map[string]string, structure.TotalLabs())
	counter := 0
	for _, course := range structure {
		modules := grades[course.CourseID]
		for _, module := range course.Modules {
			labs := modules[module.ModuleID]
			for i := 1; i <= module.LabCount; i++ {
				counter++
				flat[AssignmentField(counter)] = labs[labKey(i)]
			}
		}
	}
	return flat
}

// NestGrades is the inverse conversion: flat assignment fields are assigned
// into nested positions by the same walk order. Fields beyond the structure's
// total lab count are ignored.
func NestGrades(structure models.CourseStructure, flat map[string]string) models.GradeTree {
	tree := make(models.GradeTree, len(structure))
	counter := 0
	for _, course := range structure {
		modules := make(map[string]map[string]string, len(course.Modules))
		for _, module := range course.Modules {
			labs := make(map[string]string, module.LabCount)
			for i := 1; i <= module.LabCount; i++ {
				counter++
				labs[labKey(i)] = flat[AssignmentField(counter)]
			}
			modules[module.ModuleID] = labs
		}
		tree[course.CourseID] = modules
	}
	return tree
}

// DefaultGrades builds an empty nested structure matching the schema.
func DefaultGrades(structure models.CourseStructure) models.GradeTree {
	return NestGrades(structure, nil)
}

// MergeGrades deep-merges overlay into base without mutating either; overlay
// lab values win. Courses or modules only present in overlay are added.
func MergeGrades(base, overlay models.GradeTree) models.GradeTree {
	merged := base.Clone()
	if merged == nil {
		merged = models.GradeTree{}
	}
	for courseID, modules := range overlay {
		if _, ok := merged[courseID]; !ok {
			merged[courseID] = map[string]map[string]string{}
		}
		for moduleID, labs := range modules {
			if _, ok := merged[courseID][moduleID]; !ok {
				merged[courseID][moduleID] = map[string]string{}
			}
			for lab, grade := range labs {
				merged[courseID][moduleID][lab] = grade
			}
		}
	}
	return merged
}

// RebuildGrades reconciles a stored grade tree against the current structure:
// every (course, module, lab) slot of the structure keeps its existing value
// when the exact path existed before, otherwise gets "" (counted as added).
// Old paths absent from the structure are dropped (counted as removed).
// Running it twice with no schema change yields zero added and removed.
func RebuildGrades(structure models.CourseStructure, old models.GradeTree) (models.GradeTree, int, int) {
	rebuilt := make(models.GradeTree, len(structure))
	added := 0
	kept := 0
	for _, course := range structure {
		oldModules := old[course.CourseID]
		modules := make(map[string]map[string]string, len(course.Modules))
		for _, module := range course.Modules {
			oldLabs := oldModules[module.ModuleID]
			labs := make(map[string]string, module.LabCount)
			for i := 1; i <= module.LabCount; i++ {
				key := labKey(i)
				if value, ok := oldLabs[key]; ok {
					labs[key] = value
					kept++
				} else {
					labs[key] = ""
					added++
				}
			}
			modules[module.ModuleID] = labs
		}
		rebuilt[course.CourseID] = modules
	}

	oldTotal := 0
	for _, modules := range old {
		for _, labs := range modules {
			oldTotal += len(labs)
		}
	}
	removed := oldTotal - kept

	return rebuilt, added, removed
}
