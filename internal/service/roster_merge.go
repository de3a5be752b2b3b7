package service

// Field names shared across the merge engine and the admin overlay.
const (
	FieldName              = "Name"
	FieldPaymentStatus     = "Payment Status"
	FieldPaymentComment    = "Payment Comment"
	FieldTeacherEvaluation = "Teacher Evaluation"
	FieldResumeLink        = "Resume Link"
	FieldPaymentScreenshot = "Add Payment Screenshot"
	FieldTieredProgram     = "Choose The Tiered Program."
	FieldPaymentMethod     = "Payment Method"
	FieldOnboarding        = "Onboarding"

	PaymentPaid   = "Paid"
	PaymentUnpaid = "Unpaid"
)

// registerPaymentFields are copied from a matched Register row into the
// Survey row. Register is authoritative for payment proof only.
var registerPaymentFields = []string{
	FieldTieredProgram,
	FieldPaymentMethod,
	FieldPaymentScreenshot,
	FieldOnboarding,
}

// RosterTable is one normalized form source: ordered headers plus rows.
type RosterTable struct {
	Headers []string
	Rows    []Row
}

// MergedRow is one student identity produced by the merge: the canonical
// email, the merged form fields (payment status and resolved name included)
// and whether a Survey response backed it.
type MergedRow struct {
	Email     string
	Fields    Row
	HasSurvey bool
}

// MergeResult carries the merged roster plus diagnostics the caller logs.
type MergeResult struct {
	Rows []MergedRow
	// DuplicateKeys lists Register emails indexed more than once; only the
	// last row's payment data survives for each.
	DuplicateKeys []string
	// RegisterMissingEmailColumn reports a non-empty Register table where no
	// email column could be detected; every row of it is unusable.
	RegisterMissingEmailColumn bool
	// SkippedRegisterRows and SkippedSurveyRows count rows dropped for lack
	// of a usable email value.
	SkippedRegisterRows int
	SkippedSurveyRows   int
}

type ringEntry struct {
	key     string
	payment Row
}

// MergeRegisterSurvey joins the two form sources on email identity.
//
// A lookup ("key ring") is built from Register rows, indexed under both the
// primary and the student email. Each Survey row then pulls payment fields
// from its ring match, trying the student email before the primary one.
// Register rows never matched by any Survey row are appended flagged as
// having no Survey response. Payment status is derived from payment
// screenshot presence unless the row never registered.
func MergeRegisterSurvey(register, survey RosterTable) MergeResult {
	result := MergeResult{}

	ring := make(map[string]*ringEntry)
	regEmailCol := FindEmailColumn(register.Headers)
	regStudentCol := FindStudentEmailColumn(register.Headers)
	if regEmailCol == "" && regStudentCol == "" && len(register.Rows) > 0 {
		result.RegisterMissingEmailColumn = true
	}

	for _, row := range register.Rows {
		primary := NormalizeEmail(row[regEmailCol])
		student := ""
		if regStudentCol != "" {
			student = NormalizeEmail(row[regStudentCol])
		}
		key := primary
		if key == "" {
			key = student
		}
		if key == "" {
			result.SkippedRegisterRows++
			continue
		}
		entry := &ringEntry{key: key, payment: extractPaymentFields(row)}
		for _, idx := range []string{primary, student} {
			if idx == "" {
				continue
			}
			if _, exists := ring[idx]; exists {
				result.DuplicateKeys = append(result.DuplicateKeys, idx)
			}
			ring[idx] = entry
		}
	}

	consumed := make(map[string]bool)
	indexByEmail := make(map[string]int)

	svEmailCol := FindEmailColumn(survey.Headers)
	svStudentCol := FindStudentEmailColumn(survey.Headers)

	if svEmailCol != "" || svStudentCol != "" {
		for _, row := range survey.Rows {
			primary := NormalizeEmail(row[svEmailCol])
			student := ""
			if svStudentCol != "" {
				student = NormalizeEmail(row[svStudentCol])
			}
			email := student
			if email == "" {
				email = primary
			}
			if email == "" {
				result.SkippedSurveyRows++
				continue
			}

			fields := cloneRow(row)
			var match *ringEntry
			if student != "" {
				match = ring[student]
			}
			if match == nil && primary != "" {
				match = ring[primary]
			}
			if match != nil {
				for key, value := range match.payment {
					fields[key] = value
				}
				fields[FieldPaymentStatus] = paymentStatusFromScreenshot(fields)
				consumed[match.key] = true
			} else {
				fields[FieldPaymentStatus] = PaymentUnpaid
			}

			upsertMerged(&result.Rows, indexByEmail, MergedRow{
				Email:     email,
				Fields:    fields,
				HasSurvey: true,
			})
		}
	} else {
		result.SkippedSurveyRows += len(survey.Rows)
	}

	for _, row := range register.Rows {
		primary := NormalizeEmail(row[regEmailCol])
		student := ""
		if regStudentCol != "" {
			student = NormalizeEmail(row[regStudentCol])
		}
		key := primary
		if key == "" {
			key = student
		}
		if key == "" || consumed[key] {
			continue
		}
		fields := cloneRow(row)
		fields[FieldPaymentStatus] = paymentStatusFromScreenshot(fields)
		upsertMerged(&result.Rows, indexByEmail, MergedRow{
			Email:     key,
			Fields:    fields,
			HasSurvey: false,
		})
	}

	for i := range result.Rows {
		if name := ResolveName(result.Rows[i].Fields); name != "" {
			result.Rows[i].Fields[FieldName] = name
		}
	}

	return result
}

func extractPaymentFields(row Row) Row {
	payment := make(Row, len(registerPaymentFields))
	for _, field := range registerPaymentFields {
		if value, ok := row[field]; ok {
			payment[field] = value
		}
	}
	return payment
}

func paymentStatusFromScreenshot(fields Row) string {
	if fields[FieldPaymentScreenshot] != "" {
		return PaymentPaid
	}
	return PaymentUnpaid
}

// upsertMerged keeps one row per email: a repeated identity replaces the
// earlier row's content in place, preserving first-seen order.
func upsertMerged(rows *[]MergedRow, index map[string]int, row MergedRow) {
	if pos, ok := index[row.Email]; ok {
		(*rows)[pos] = row
		return
	}
	index[row.Email] = len(*rows)
	*rows = append(*rows, row)
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for key, value := range row {
		out[key] = value
	}
	return out
}
