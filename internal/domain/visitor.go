// Package domain contains the core data types for the Visitor Logbook application.
// This package has zero external dependencies and is imported by every other
// internal package (repo, service, mirror, handler).
package domain

import "time"

// TimestampLayout is the wall-clock format used for arrival timestamps in
// API responses and in the exported spreadsheet.
const TimestampLayout = "2006-01-02 15:04:05"

// Visitor is a single front-desk check-in.
// ID and CreatedAt are assigned by the database and never change afterwards;
// a visitor is never updated, only deleted.
type Visitor struct {
	ID        int64
	Name      string
	Phone     string
	Email     string
	Date      string // visit date as entered on the form
	Purpose   string
	MeetsWhom string
	Comments  string // empty when the visitor left no comment
	CreatedAt time.Time
}

// RequiredField pairs a form field name with its value, in the order fields
// are validated.
type RequiredField struct {
	Name  string
	Value string
}

// RequiredFields returns the fields every visitor must carry, in form order.
// Validation reports the first empty one.
func (v Visitor) RequiredFields() []RequiredField {
	return []RequiredField{
		{Name: "name", Value: v.Name},
		{Name: "phone", Value: v.Phone},
		{Name: "email", Value: v.Email},
		{Name: "date", Value: v.Date},
		{Name: "purpose", Value: v.Purpose},
		{Name: "meets_whom", Value: v.MeetsWhom},
	}
}
