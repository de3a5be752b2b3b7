package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTable(rows ...Row) RosterTable {
	return RosterTable{
		Headers: []string{"Email Address", "Student Email", "Choose The Tiered Program.", "Payment Method", "Add Payment Screenshot", "Onboarding", "First Name", "Last Name"},
		Rows:    rows,
	}
}

func surveyTable(rows ...Row) RosterTable {
	return RosterTable{
		Headers: []string{"Email Address", "Student Email", "Full Name", "Major"},
		Rows:    rows,
	}
}

func TestMergeMatchedRowCarriesPaymentAndProfile(t *testing.T) {
	register := registerTable(Row{
		"Email Address":          "a@x.com",
		"Add Payment Screenshot": "s3://img",
		"Payment Method":         "card",
	})
	survey := surveyTable(Row{
		"Email Address": "a@x.com",
		"Full Name":     "Alice",
		"Major":         "CS",
	})

	result := MergeRegisterSurvey(register, survey)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "a@x.com", row.Email)
	assert.True(t, row.HasSurvey)
	assert.Equal(t, PaymentPaid, row.Fields[FieldPaymentStatus])
	assert.Equal(t, "s3://img", row.Fields[FieldPaymentScreenshot])
	assert.Equal(t, "card", row.Fields[FieldPaymentMethod])
	assert.Equal(t, "CS", row.Fields["Major"])
	assert.Equal(t, "Alice", row.Fields[FieldName])
}

func TestMergeMatchesByStudentEmailFirst(t *testing.T) {
	register := registerTable(Row{
		"Email Address":          "guardian@x.com",
		"Student Email":          "kid@x.com",
		"Add Payment Screenshot": "proof.png",
	})
	survey := surveyTable(Row{
		"Email Address": "other-login@x.com",
		"Student Email": "kid@x.com",
		"Full Name":     "Kid",
	})

	result := MergeRegisterSurvey(register, survey)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "kid@x.com", result.Rows[0].Email)
	assert.Equal(t, PaymentPaid, result.Rows[0].Fields[FieldPaymentStatus])
	assert.True(t, result.Rows[0].HasSurvey)
}

func TestMergeUnmatchedRegisterAppended(t *testing.T) {
	register := registerTable(Row{
		"Email Address":          "b@x.com",
		"First Name":             "Bob",
		"Add Payment Screenshot": "",
	})

	result := MergeRegisterSurvey(register, surveyTable())
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "b@x.com", row.Email)
	assert.False(t, row.HasSurvey)
	assert.Equal(t, PaymentUnpaid, row.Fields[FieldPaymentStatus])
	assert.Equal(t, "Bob", row.Fields[FieldName])
}

func TestMergeEmptyRegisterLeavesSurveyUnpaid(t *testing.T) {
	survey := surveyTable(Row{
		"Email Address": "c@x.com",
		"Full Name":     "Carol",
	})

	result := MergeRegisterSurvey(RosterTable{}, survey)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, PaymentUnpaid, result.Rows[0].Fields[FieldPaymentStatus])
	assert.True(t, result.Rows[0].HasSurvey)
}

func TestMergeBothEmpty(t *testing.T) {
	result := MergeRegisterSurvey(RosterTable{}, RosterTable{})
	assert.Empty(t, result.Rows)
}

func TestMergeSurveyWithoutEmailColumnFallsBackToRegister(t *testing.T) {
	register := registerTable(Row{
		"Email Address":          "d@x.com",
		"Add Payment Screenshot": "img",
	})
	survey := RosterTable{
		Headers: []string{"Full Name", "Major"},
		Rows:    []Row{{"Full Name": "Nameless", "Major": "EE"}},
	}

	result := MergeRegisterSurvey(register, survey)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "d@x.com", result.Rows[0].Email)
	assert.False(t, result.Rows[0].HasSurvey)
}

func TestMergeDuplicateRegisterKeyLastWriteWins(t *testing.T) {
	register := registerTable(
		Row{"Email Address": "e@x.com", "Add Payment Screenshot": "first.png"},
		Row{"Email Address": "e@x.com", "Add Payment Screenshot": "second.png"},
	)
	survey := surveyTable(Row{"Email Address": "e@x.com", "Full Name": "Eve"})

	result := MergeRegisterSurvey(register, survey)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "second.png", result.Rows[0].Fields[FieldPaymentScreenshot])
	assert.Contains(t, result.DuplicateKeys, "e@x.com")
}

func TestMergeRegisterWithoutEmailColumnFlagged(t *testing.T) {
	register := RosterTable{
		Headers: []string{"Contact", "Add Payment Screenshot"},
		Rows:    []Row{{"Contact": "paid@x.com", "Add Payment Screenshot": "proof.png"}},
	}
	survey := surveyTable(Row{"Email Address": "c@x.com", "Full Name": "Carol"})

	result := MergeRegisterSurvey(register, survey)
	require.Len(t, result.Rows, 1)
	assert.True(t, result.RegisterMissingEmailColumn)
	assert.Equal(t, 1, result.SkippedRegisterRows)
}

func TestMergeCountsRowsWithBlankEmails(t *testing.T) {
	register := registerTable(
		Row{"Email Address": "a@x.com", "Add Payment Screenshot": "img"},
		Row{"First Name": "No", "Last Name": "Email"},
	)
	survey := surveyTable(
		Row{"Email Address": "a@x.com", "Full Name": "Alice"},
		Row{"Full Name": "Anonymous"},
	)

	result := MergeRegisterSurvey(register, survey)
	require.Len(t, result.Rows, 1)
	assert.False(t, result.RegisterMissingEmailColumn)
	assert.Equal(t, 1, result.SkippedRegisterRows)
	assert.Equal(t, 1, result.SkippedSurveyRows)
}

func TestMergeNoDuplicateIdentities(t *testing.T) {
	register := registerTable(
		Row{"Email Address": "a@x.com", "Add Payment Screenshot": "img"},
		Row{"Email Address": "b@x.com"},
	)
	survey := surveyTable(
		Row{"Email Address": "a@x.com", "Full Name": "Alice"},
		Row{"Email Address": "c@x.com", "Full Name": "Carol"},
		Row{"Email Address": "c@x.com", "Full Name": "Carol Again"},
	)

	result := MergeRegisterSurvey(register, survey)
	seen := map[string]bool{}
	for _, row := range result.Rows {
		assert.False(t, seen[row.Email], "duplicate identity %s", row.Email)
		seen[row.Email] = true
	}
	require.Len(t, result.Rows, 3)
}
