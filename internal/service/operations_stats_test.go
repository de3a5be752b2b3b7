package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ops-api/internal/models"
)

func TestCalculateMetrics(t *testing.T) {
	records := []models.StudentRecord{
		{FieldPaymentStatus: PaymentPaid, FieldResumeLink: "cv.pdf", FieldHasSurvey: true},
		{FieldPaymentStatus: PaymentUnpaid, FieldResumeLink: "N/A", FieldHasSurvey: true},
		{FieldPaymentStatus: PaymentUnpaid, FieldHasSurvey: false},
	}

	metrics := CalculateMetrics(records)
	assert.Equal(t, 3, metrics.TotalStudents)
	assert.Equal(t, 1, metrics.Paid)
	assert.Equal(t, 2, metrics.Unpaid)
	assert.Equal(t, metrics.TotalStudents, metrics.Paid+metrics.Unpaid)
	assert.Equal(t, 1, metrics.HasResume)
	assert.Equal(t, 2, metrics.SurveyFilled)
	assert.InDelta(t, 33.33, metrics.OnboardingPercentage, 0.001)
}

func TestCalculateMetricsEmptyList(t *testing.T) {
	metrics := CalculateMetrics(nil)
	assert.Equal(t, 0, metrics.TotalStudents)
	assert.Equal(t, 0.0, metrics.OnboardingPercentage)
}

func TestCalculateStatus(t *testing.T) {
	records := []models.StudentRecord{
		{
			FieldEmail:           "done@x.com",
			FieldName:            "Done",
			FieldPaymentStatus:   PaymentPaid,
			FieldResumeLink:      "cv.pdf",
			FieldAttendance:      models.AttendanceMap{"class-1": true},
			"Assignment 1 Grade": "A",
			"Assignment 2 Grade": "B",
		},
		{
			FieldEmail:           "slacker@x.com",
			FieldName:            "Slacker",
			FieldPaymentStatus:   PaymentUnpaid,
			FieldAttendance:      models.AttendanceMap{"class-1": false},
			"Assignment 1 Grade": "A",
		},
	}

	status := CalculateStatus(records, 2)
	assert.Empty(t, filterEmails(status.MissingPayment, "done@x.com"))
	require.Len(t, status.MissingPayment, 1)
	assert.Equal(t, "slacker@x.com", status.MissingPayment[0].Email)
	require.Len(t, status.MissingResume, 1)
	require.Len(t, status.MissingAttendance, 1)
	require.Len(t, status.MissingGrades, 1)
	assert.Equal(t, []string{"Assignment 2 Grade"}, status.MissingGrades[0].Detail)
}

func filterEmails(items []models.MissingItem, email string) []models.MissingItem {
	var out []models.MissingItem
	for _, item := range items {
		if item.Email == email {
			out = append(out, item)
		}
	}
	return out
}
