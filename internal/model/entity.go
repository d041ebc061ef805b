package model

import "strconv"

// CreatedAtLayout is the timestamp layout stored in the created_at column.
const CreatedAtLayout = "02/01/2006 15:04"

// SolutionPending marks a ticket that has not been resolved yet.
const SolutionPending = "Pending"

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "Open"
	TicketStatusResolved TicketStatus = "Resolved"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Priorities lists priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank orders priorities; unknown values rank below Low.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if v == p {
			return i + 1
		}
	}
	return 0
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

type Category string

const (
	CategoryMaintenance Category = "Maintenance"
	CategorySoftware    Category = "Software"
	CategoryHardware    Category = "Hardware"
	CategoryNetworking  Category = "Networking"
	CategoryCameras     Category = "Cameras"
)

// DefaultCategories is the full category set; deployments may narrow it via config.
var DefaultCategories = []Category{
	CategoryMaintenance,
	CategorySoftware,
	CategoryHardware,
	CategoryNetworking,
	CategoryCameras,
}

// DisplayTag drives row colouring in the ticket table and spreadsheet export.
type DisplayTag string

const (
	DisplayResolved   DisplayTag = "resolved"
	DisplayUrgentOpen DisplayTag = "urgent-open"
	DisplayHighOpen   DisplayTag = "high-open"
	DisplayNormal     DisplayTag = "normal"
)

type Ticket struct {
	ID          uint64       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CreatedAt   string       `gorm:"type:varchar(32);not null" json:"created_at"`
	Customer    string       `gorm:"type:varchar(255);index;not null" json:"customer"`
	Category    Category     `gorm:"type:varchar(64);index" json:"category"`
	Priority    Priority     `gorm:"type:varchar(32);index" json:"priority"`
	Description string       `gorm:"type:text" json:"description"`
	Status      TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	Solution    string       `gorm:"type:text" json:"solution"`
	Cost        float64      `gorm:"type:numeric(12,2);not null;default:0" json:"cost"`
}

func (Ticket) TableName() string { return "tickets" }

func (t Ticket) IsOpen() bool { return t.Status != TicketStatusResolved }

// Label is the "ID n - customer" form used in selection controls.
func (t Ticket) Label() string {
	return "ID " + strconv.FormatUint(t.ID, 10) + " - " + t.Customer
}
