package services

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"

	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
	apperrors "github.com/dfe0990ngc/pcds-student-portal/pkg/errors"
)

// StudentService serves the read-only academic and financial views backing the
// authenticated student endpoints.
type StudentService struct {
	db *gorm.DB
}

// NewStudentService wires a StudentService over the portal database.
func NewStudentService(db *gorm.DB) (*StudentService, error) {
	if db == nil {
		return nil, errors.New("student service: database is required")
	}
	return &StudentService{db: db}, nil
}

// Profile combines the latest registrar row with the login email.
type Profile struct {
	StudentNumber string `json:"StudentNumber"`
	FirstName     string `json:"FirstName"`
	MiddleName    string `json:"MiddleName"`
	LastName      string `json:"LastName"`
	Birthday      string `json:"Birthday"`
	BirthPlace    string `json:"BirthPlace"`
	Course        string `json:"Course"`
	YearLevel     string `json:"YearLevel"`
	Email         string `json:"Email"`
}

// Profile returns the student's latest registrar record. The email comes from
// the credential; everything else from the most recent grade row.
func (s *StudentService) Profile(ctx context.Context, studentNumber string) (*Profile, error) {
	var record models.Grade
	err := s.db.WithContext(ctx).
		Where("StudentNumber = ?", studentNumber).
		Order("SY DESC, Sem DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("Student profile not found")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	profile := Profile{
		StudentNumber: record.StudentNumber,
		FirstName:     record.FirstName,
		MiddleName:    record.MiddleName,
		LastName:      record.LastName,
		Birthday:      record.Birthday,
		BirthPlace:    record.BirthPlace,
		Course:        record.Course,
		YearLevel:     record.YearLevel,
	}

	var credential models.Credential
	if err := s.db.WithContext(ctx).
		Select("Email").
		Where("StudentNumber = ?", studentNumber).
		First(&credential).Error; err == nil {
		profile.Email = credential.Email
	}

	return &profile, nil
}

// Period identifies a school year and semester pair.
type Period struct {
	SY  string `json:"SY"`
	Sem string `json:"Sem"`
}

// SemesterGPA is the weighted grade average for one period.
type SemesterGPA struct {
	SY    string  `json:"sy"`
	Sem   string  `json:"sem"`
	GPA   float64 `json:"gpa"`
	Units float64 `json:"units"`
}

// GradesView bundles the grade rows with period and GPA summaries.
type GradesView struct {
	Grades       []models.Grade `json:"grades"`
	Periods      []Period       `json:"periods"`
	GPAPerSem    []SemesterGPA  `json:"gpa_per_semester"`
	TotalRecords int            `json:"total_records"`
}

// Grades returns the student's grades, optionally filtered by school year and
// semester. The GPA per semester weighs Average by CreditUnits over rows with
// a recorded average.
func (s *StudentService) Grades(ctx context.Context, studentNumber, sy, sem string) (*GradesView, error) {
	query := s.db.WithContext(ctx).
		Where("StudentNumber = ?", studentNumber)
	if sy != "" {
		query = query.Where("SY = ?", sy)
	}
	if sem != "" {
		query = query.Where("Sem = ?", sem)
	}

	var grades []models.Grade
	if err := query.Order("SY DESC, Sem DESC, SubjectCode ASC").Find(&grades).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	var periods []Period
	if err := s.db.WithContext(ctx).
		Model(&models.Grade{}).
		Distinct("SY", "Sem").
		Where("StudentNumber = ?", studentNumber).
		Order("SY DESC, Sem DESC").
		Find(&periods).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	gpaPerSem := make([]SemesterGPA, 0, len(periods))
	for _, period := range periods {
		var rows []models.Grade
		if err := s.db.WithContext(ctx).
			Select("Average", "CreditUnits").
			Where("StudentNumber = ? AND SY = ? AND Sem = ? AND Average > 0",
				studentNumber, period.SY, period.Sem).
			Find(&rows).Error; err != nil {
			return nil, apperrors.ErrInternalServer.WithInternal(err)
		}

		var totalPoints, totalUnits float64
		for _, row := range rows {
			totalPoints += row.Average * row.CreditUnits
			totalUnits += row.CreditUnits
		}

		gpa := 0.0
		if totalUnits > 0 {
			gpa = round2(totalPoints / totalUnits)
		}

		gpaPerSem = append(gpaPerSem, SemesterGPA{
			SY:    period.SY,
			Sem:   period.Sem,
			GPA:   gpa,
			Units: totalUnits,
		})
	}

	return &GradesView{
		Grades:       grades,
		Periods:      periods,
		GPAPerSem:    gpaPerSem,
		TotalRecords: len(grades),
	}, nil
}

// AccountSummary totals the balances and payments across the returned rows.
type AccountSummary struct {
	TotalBalance  float64 `json:"total_balance"`
	TotalPayments float64 `json:"total_payments"`
}

// AccountView bundles the fee rows with period and balance summaries.
type AccountView struct {
	Accounts     []models.StudentAccount `json:"accounts"`
	Periods      []Period                `json:"periods"`
	Summary      AccountSummary          `json:"summary"`
	TotalRecords int                     `json:"total_records"`
}

// Account returns the student's fee assessments, optionally filtered by school
// year and semester, with running balance and payment totals.
func (s *StudentService) Account(ctx context.Context, studentNumber, sy, sem string) (*AccountView, error) {
	query := s.db.WithContext(ctx).
		Where("StudentNumber = ?", studentNumber)
	if sy != "" {
		query = query.Where("SY = ?", sy)
	}
	if sem != "" {
		query = query.Where("Sem = ?", sem)
	}

	var accounts []models.StudentAccount
	if err := query.Order("SY DESC, Sem DESC").Find(&accounts).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	var periods []Period
	if err := s.db.WithContext(ctx).
		Model(&models.StudentAccount{}).
		Distinct("SY", "Sem").
		Where("StudentNumber = ?", studentNumber).
		Order("SY DESC, Sem DESC").
		Find(&periods).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	var summary AccountSummary
	for _, account := range accounts {
		summary.TotalBalance += account.CurrentBalance
		summary.TotalPayments += account.TotalPayments
	}
	summary.TotalBalance = round2(summary.TotalBalance)
	summary.TotalPayments = round2(summary.TotalPayments)

	return &AccountView{
		Accounts:     accounts,
		Periods:      periods,
		Summary:      summary,
		TotalRecords: len(accounts),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
