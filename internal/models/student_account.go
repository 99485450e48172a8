package models

import "time"

// StudentAccount is a read model over the accounting-maintained studeaccount
// table. One row per student and term. It doubles as the legacy identity
// source consulted by the forgot-password flow for students who have an
// account record but never registered a credential.
type StudentAccount struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"-"`

	StudentNumber string `gorm:"column:StudentNumber;index" json:"StudentNumber"`
	Email         string `gorm:"column:Email;index" json:"Email"`
	FirstName     string `gorm:"column:FirstName" json:"FirstName"`
	MiddleName    string `gorm:"column:MiddleName" json:"MiddleName"`
	LastName      string `gorm:"column:LastName" json:"LastName"`
	Course        string `gorm:"column:Course" json:"Course"`
	YearLevel     string `gorm:"column:YearLevel" json:"YearLevel"`
	Status        string `gorm:"column:Status" json:"Status"`
	Section       string `gorm:"column:Section" json:"Section"`

	LecUnits float64 `gorm:"column:LecUnits" json:"LecUnits"`
	LecRate  float64 `gorm:"column:LecRate" json:"LecRate"`
	TotalLec float64 `gorm:"column:TotalLec" json:"TotalLec"`
	LabUnits float64 `gorm:"column:LabUnits" json:"LabUnits"`
	LabRate  float64 `gorm:"column:LabRate" json:"LabRate"`
	TotalLab float64 `gorm:"column:TotalLab" json:"TotalLab"`

	OldAccount     float64 `gorm:"column:OldAccount" json:"OldAccount"`
	FeesDesc       string  `gorm:"column:FeesDesc" json:"FeesDesc"`
	FeesAmount     float64 `gorm:"column:FeesAmount" json:"FeesAmount"`
	TotalFees      float64 `gorm:"column:TotalFees" json:"TotalFees"`
	RegFee         float64 `gorm:"column:RegFee" json:"RegFee"`
	InstallmentFee float64 `gorm:"column:InstallmentFee" json:"InstallmentFee"`

	DiscPercentage float64 `gorm:"column:DiscPercentage" json:"DiscPercentage"`
	Discount       float64 `gorm:"column:Discount" json:"Discount"`
	Refund         float64 `gorm:"column:Refund" json:"Refund"`

	AcctTotal      float64 `gorm:"column:AcctTotal" json:"AcctTotal"`
	TotalPayments  float64 `gorm:"column:TotalPayments" json:"TotalPayments"`
	CurrentBalance float64 `gorm:"column:CurrentBalance" json:"CurrentBalance"`
	PaymentMode    string  `gorm:"column:PaymentMode" json:"PaymentMode"`

	Sem  string `gorm:"column:Sem;index" json:"Sem"`
	SY   string `gorm:"column:SY;index" json:"SY"`
	Term string `gorm:"column:Term" json:"Term"`

	DateUpdated *time.Time `gorm:"column:DateUpdated" json:"DateUpdated"`
}

// TableName keeps the legacy table naming of the portal database.
func (StudentAccount) TableName() string { return "studeaccount" }
