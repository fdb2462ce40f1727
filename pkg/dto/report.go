package dto

// ReportQuery selects the attendance report period.
type ReportQuery struct {
	Month int `form:"month" binding:"required,min=1,max=12"`
	Year  int `form:"year" binding:"required,min=2000"`
}

// ReportRow is one employee-day line of the monthly attendance report.
// Slot fields hold "15:04" clock readings or "-" when the slot is empty.
type ReportRow struct {
	Date        string `json:"date"` // DD/MM/YYYY
	Weekday     string `json:"weekday"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	EntryFirst  string `json:"entry_1"`
	ExitFirst   string `json:"exit_1"`
	EntrySecond string `json:"entry_2"`
	ExitSecond  string `json:"exit_2"`
}

type ReportResponse struct {
	Month int         `json:"month"`
	Year  int         `json:"year"`
	Rows  []ReportRow `json:"rows"`
	Total int         `json:"total"`
}
