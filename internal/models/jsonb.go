package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringMap is a flat string field map stored as a JSONB column.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *StringMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// AttendanceMap maps class-session id to present/absent, stored as JSONB.
type AttendanceMap map[string]bool

func (m AttendanceMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *AttendanceMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// GradeTree is the nested assignment-grade structure: course id -> module id
// -> lab key ("lab1".."labN") -> grade value. Stored as JSONB.
type GradeTree map[string]map[string]map[string]string

func (t GradeTree) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

func (t *GradeTree) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// Clone returns a deep copy of the tree.
func (t GradeTree) Clone() GradeTree {
	if t == nil {
		return nil
	}
	out := make(GradeTree, len(t))
	for courseID, modules := range t {
		outModules := make(map[string]map[string]string, len(modules))
		for moduleID, labs := range modules {
			outLabs := make(map[string]string, len(labs))
			for lab, grade := range labs {
				outLabs[lab] = grade
			}
			outModules[moduleID] = outLabs
		}
		out[courseID] = outModules
	}
	return out
}

// JSONDoc is an arbitrary JSON document column (course content).
type JSONDoc map[string]interface{}

func (d JSONDoc) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *JSONDoc) Scan(src interface{}) error {
	return scanJSON(src, d)
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb scan type %T", src)
	}
}
