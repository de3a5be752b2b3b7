package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRowsDropsEmptyLikeValues(t *testing.T) {
	rows := NormalizeRows([]Row{
		{"Name": "  Alice  ", "Major": "nan", "Resume": "None", "Phone": "", "City": " NYC"},
	})

	assert.Len(t, rows, 1)
	assert.Equal(t, Row{"Name": "Alice", "City": "NYC"}, rows[0])
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.CoM  "))
	assert.Equal(t, "", NormalizeEmail("not-an-email"))
	assert.Equal(t, "", NormalizeEmail("@"))
	assert.Equal(t, "a@b", NormalizeEmail("a@b"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("alice@example.com"))
	assert.False(t, IsValidEmail("a@b"))
	assert.False(t, IsValidEmail("no-at-sign"))
}

func TestFindEmailColumnScansHeaderOrder(t *testing.T) {
	headers := []string{"Timestamp", "E-Mail", "Student Email"}
	assert.Equal(t, "E-Mail", FindEmailColumn(headers))
	assert.Equal(t, "Student Email", FindStudentEmailColumn(headers))
	assert.Equal(t, "", FindEmailColumn([]string{"Name", "Major"}))
}

func TestResolveNamePriorityChain(t *testing.T) {
	cases := []struct {
		name string
		row  Row
		want string
	}{
		{"existing name wins", Row{"Name": "N", "Student Full Name": "SFN"}, "N"},
		{"student full name", Row{"Student Full Name": "SFN", "Full Name": "FN"}, "SFN"},
		{"student name", Row{"Student Name": "SN", "Full Name": "FN"}, "SN"},
		{"full name", Row{"Full Name": "FN", "First Name": "A"}, "FN"},
		{"first plus last", Row{"First Name": "A", "Last Name": "B"}, "A B"},
		{"first only", Row{"First Name": "A"}, "A"},
		{"last only", Row{"Last Name": "B"}, "B"},
		{"nothing", Row{"Major": "CS"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveName(tc.row))
		})
	}
}
