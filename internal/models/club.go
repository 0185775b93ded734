package models

import "time"

type Club struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MeetingDay  string    `json:"meetingDay"`
	MeetingTime string    `json:"meetingTime"`
	Location    string    `json:"location"`
	Members     []string  `json:"members"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c *Club) MemberCount() int {
	return len(c.Members)
}

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Attendees   []string  `json:"attendees"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c *Club) Normalize() {
	c.Members = nonNil(c.Members)
}

func (e *Event) Normalize() {
	e.Attendees = nonNil(e.Attendees)
}
