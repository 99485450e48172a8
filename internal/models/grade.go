package models

// Grade is a read model over the registrar-maintained grades table. One row
// per student, subject, and term. The portal never writes to it.
type Grade struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"-"`

	StudentNumber string `gorm:"column:StudentNumber;index" json:"StudentNumber"`
	FirstName     string `gorm:"column:FirstName" json:"FirstName"`
	MiddleName    string `gorm:"column:MiddleName" json:"MiddleName"`
	LastName      string `gorm:"column:LastName" json:"LastName"`
	Birthday      string `gorm:"column:Birthday" json:"Birthday"`
	BirthPlace    string `gorm:"column:BirthPlace" json:"BirthPlace"`
	Course        string `gorm:"column:Course" json:"Course"`
	YearLevel     string `gorm:"column:YearLevel" json:"YearLevel"`

	SubjectCode string  `gorm:"column:SubjectCode" json:"SubjectCode"`
	Description string  `gorm:"column:Description" json:"Description"`
	LecUnit     float64 `gorm:"column:LecUnit" json:"LecUnit"`
	LabUnit     float64 `gorm:"column:LabUnit" json:"LabUnit"`
	Instructor  string  `gorm:"column:Instructor" json:"Instructor"`
	Section     string  `gorm:"column:Section" json:"Section"`

	PGrade   float64 `gorm:"column:PGrade" json:"PGrade"`
	PreMid   float64 `gorm:"column:PreMid" json:"PreMid"`
	MGrade   float64 `gorm:"column:MGrade" json:"MGrade"`
	PreFinal float64 `gorm:"column:PreFinal" json:"PreFinal"`
	FGrade   float64 `gorm:"column:FGrade" json:"FGrade"`
	Average  float64 `gorm:"column:Average" json:"Average"`

	Equivalent  float64 `gorm:"column:Equivalent" json:"Equivalent"`
	CreditUnits float64 `gorm:"column:CreditUnits" json:"CreditUnits"`
	GradeStatus string  `gorm:"column:GradeStatus" json:"GradeStatus"`
	Status      string  `gorm:"column:Status" json:"Status"`
	Remarks     string  `gorm:"column:Remarks" json:"Remarks"`

	Sem string `gorm:"column:Sem;index" json:"Sem"`
	SY  string `gorm:"column:SY;index" json:"SY"`
}

// TableName keeps the legacy table naming of the portal database.
func (Grade) TableName() string { return "grades" }
