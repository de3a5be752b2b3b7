package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ops-api/internal/models"
)

type stubCourseRepo struct {
	content *models.CourseContent
	saved   models.JSONDoc
	err     error
}

func (s *stubCourseRepo) Get(context.Context) (*models.CourseContent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.content == nil {
		return &models.CourseContent{ID: "main", Doc: models.JSONDoc{}}, nil
	}
	return s.content, nil
}

func (s *stubCourseRepo) Save(_ context.Context, doc models.JSONDoc) (*models.CourseContent, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.saved = doc
	return &models.CourseContent{ID: "main", Doc: doc, Version: 2}, nil
}

type stubSyncTrigger struct {
	reasons []string
}

func (s *stubSyncTrigger) TriggerSync(reason string) {
	s.reasons = append(s.reasons, reason)
}

func TestExtractStructureMultiCourse(t *testing.T) {
	doc := models.JSONDoc{
		"courses": []interface{}{
			map[string]interface{}{
				"id": "go-basics",
				"modules": []interface{}{
					map[string]interface{}{"id": "m1", "labCount": float64(3)},
					map[string]interface{}{"id": "m2", "labCount": "2"},
				},
			},
			map[string]interface{}{
				"id":        "hidden",
				"isVisible": false,
				"modules": []interface{}{
					map[string]interface{}{"id": "mx", "labCount": float64(5)},
				},
			},
		},
	}

	structure := ExtractStructure(doc)
	require.Len(t, structure, 1)
	assert.Equal(t, "go-basics", structure[0].CourseID)
	require.Len(t, structure[0].Modules, 2)
	assert.Equal(t, 3, structure[0].Modules[0].LabCount)
	assert.Equal(t, 2, structure[0].Modules[1].LabCount)
}

func TestExtractStructureLegacySingleCourse(t *testing.T) {
	doc := models.JSONDoc{
		"modules": []interface{}{
			map[string]interface{}{"id": "intro", "labCount": float64(1)},
			map[string]interface{}{"id": "invisible", "labCount": float64(4), "isVisible": false},
		},
	}

	structure := ExtractStructure(doc)
	require.Len(t, structure, 1)
	assert.Equal(t, "course1", structure[0].CourseID)
	require.Len(t, structure[0].Modules, 1)
	assert.Equal(t, "intro", structure[0].Modules[0].ModuleID)
}

func TestExtractStructureClampsLabCounts(t *testing.T) {
	doc := models.JSONDoc{
		"courses": []interface{}{
			map[string]interface{}{
				"id": "c1",
				"modules": []interface{}{
					map[string]interface{}{"id": "m1", "labCount": float64(999)},
					map[string]interface{}{"id": "m2", "labCount": float64(-3)},
				},
			},
		},
	}

	structure := ExtractStructure(doc)
	require.Len(t, structure, 1)
	assert.Equal(t, maxLabsPerModule, structure[0].Modules[0].LabCount)
	assert.Equal(t, 0, structure[0].Modules[1].LabCount)
}

func TestExtractStructureCapsTotal(t *testing.T) {
	modules := make([]interface{}, 0, 8)
	for i := 0; i < 8; i++ {
		modules = append(modules, map[string]interface{}{"labCount": float64(100)})
	}
	doc := models.JSONDoc{
		"courses": []interface{}{
			map[string]interface{}{"id": "c1", "modules": modules},
		},
	}

	structure := ExtractStructure(doc)
	assert.Equal(t, maxLabsTotal, structure.TotalLabs())
}

func TestStructureFallsBackToDefaultLabs(t *testing.T) {
	svc := NewCourseService(CourseServiceParams{
		Repo:   &stubCourseRepo{},
		Config: CourseServiceConfig{DefaultLabCount: 2},
	})

	structure, err := svc.Structure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, structure.TotalLabs())
	assert.Equal(t, "course1", structure[0].CourseID)
}

func TestSaveTriggersGradeSync(t *testing.T) {
	repo := &stubCourseRepo{}
	syncer := &stubSyncTrigger{}
	svc := NewCourseService(CourseServiceParams{Repo: repo, Syncer: syncer})

	content, err := svc.Save(context.Background(), models.JSONDoc{"courses": []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, 2, content.Version)
	assert.Len(t, syncer.reasons, 1)
}

func TestSaveRejectsNilDocument(t *testing.T) {
	svc := NewCourseService(CourseServiceParams{Repo: &stubCourseRepo{}})
	_, err := svc.Save(context.Background(), nil)
	assert.Error(t, err)
}
