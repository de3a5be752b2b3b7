package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ops-api/internal/models"
)

func twoCoursesStructure() models.CourseStructure {
	return models.CourseStructure{
		{CourseID: "c1", Modules: []models.ModuleLabs{
			{ModuleID: "m1", LabCount: 2},
			{ModuleID: "m2", LabCount: 1},
		}},
		{CourseID: "c2", Modules: []models.ModuleLabs{
			{ModuleID: "m3", LabCount: 1},
		}},
	}
}

func TestFlattenGradesStableNumbering(t *testing.T) {
	structure := twoCoursesStructure()
	grades := models.GradeTree{
		// c1/m1 missing entirely; numbering must still advance past its slots.
		"c1": {"m2": {"lab1": "B"}},
		"c2": {"m3": {"lab1": "C"}},
	}

	flat := FlattenGrades(structure, grades)
	assert.Equal(t, "", flat["Assignment 1 Grade"])
	assert.Equal(t, "", flat["Assignment 2 Grade"])
	assert.Equal(t, "B", flat["Assignment 3 Grade"])
	assert.Equal(t, "C", flat["Assignment 4 Grade"])
	assert.Len(t, flat, 4)
}

func TestNestGradesRoundTrip(t *testing.T) {
	structure := twoCoursesStructure()
	flat := map[string]string{
		"Assignment 1 Grade": "A",
		"Assignment 2 Grade": "",
		"Assignment 3 Grade": "B",
		"Assignment 4 Grade": "C",
		"Assignment 9 Grade": "ignored",
	}

	tree := NestGrades(structure, flat)
	assert.Equal(t, "A", tree["c1"]["m1"]["lab1"])
	assert.Equal(t, "", tree["c1"]["m1"]["lab2"])
	assert.Equal(t, "B", tree["c1"]["m2"]["lab1"])
	assert.Equal(t, "C", tree["c2"]["m3"]["lab1"])
}

func TestMergeGradesOverlayWins(t *testing.T) {
	base := models.GradeTree{"c1": {"m1": {"lab1": "A", "lab2": "B"}}}
	overlay := models.GradeTree{
		"c1": {"m1": {"lab2": "B+"}},
		"c2": {"m3": {"lab1": "C"}},
	}

	merged := MergeGrades(base, overlay)
	assert.Equal(t, "A", merged["c1"]["m1"]["lab1"])
	assert.Equal(t, "B+", merged["c1"]["m1"]["lab2"])
	assert.Equal(t, "C", merged["c2"]["m3"]["lab1"])
	// Inputs are not mutated.
	assert.Equal(t, "B", base["c1"]["m1"]["lab2"])
}

func TestRebuildGradesIdempotent(t *testing.T) {
	structure := twoCoursesStructure()
	tree := DefaultGrades(structure)
	tree["c1"]["m1"]["lab1"] = "A"

	rebuilt, added, removed := RebuildGrades(structure, tree)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, removed)
	assert.Equal(t, tree, rebuilt)
}

func TestRebuildGradesPreservesValuesOnGrowth(t *testing.T) {
	oldStructure := models.CourseStructure{
		{CourseID: "c1", Modules: []models.ModuleLabs{{ModuleID: "m1", LabCount: 2}}},
	}
	newStructure := models.CourseStructure{
		{CourseID: "c1", Modules: []models.ModuleLabs{{ModuleID: "m1", LabCount: 3}}},
		{CourseID: "c2", Modules: []models.ModuleLabs{{ModuleID: "m2", LabCount: 1}}},
	}
	old := DefaultGrades(oldStructure)
	old["c1"]["m1"]["lab1"] = "A"
	old["c1"]["m1"]["lab2"] = "B"

	rebuilt, added, removed := RebuildGrades(newStructure, old)
	require.Equal(t, 2, added)
	require.Equal(t, 0, removed)
	assert.Equal(t, "A", rebuilt["c1"]["m1"]["lab1"])
	assert.Equal(t, "B", rebuilt["c1"]["m1"]["lab2"])
	assert.Equal(t, "", rebuilt["c1"]["m1"]["lab3"])
}

func TestRebuildGradesShrinkRemovesOrphans(t *testing.T) {
	newStructure := models.CourseStructure{
		{CourseID: "c1", Modules: []models.ModuleLabs{{ModuleID: "m1", LabCount: 2}}},
	}
	old := models.GradeTree{"c1": {"m1": {"lab1": "A", "lab2": "B", "lab3": "C"}}}

	rebuilt, added, removed := RebuildGrades(newStructure, old)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, removed)
	assert.Equal(t, models.GradeTree{"c1": {"m1": {"lab1": "A", "lab2": "B"}}}, rebuilt)
}
