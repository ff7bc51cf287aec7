package types

import "fmt"

// Category is the compliance area an issue belongs to
type Category string

const (
	CategoryQuality       Category = "Quality"
	CategorySafety        Category = "Safety"
	CategoryRegulatory    Category = "Regulatory"
	CategoryEnvironmental Category = "Environmental"
	CategoryOperational   Category = "Operational"
	CategoryOther         Category = "Other"
)

// AllCategories returns all valid categories
func AllCategories() []Category {
	return []Category{
		CategoryQuality,
		CategorySafety,
		CategoryRegulatory,
		CategoryEnvironmental,
		CategoryOperational,
		CategoryOther,
	}
}

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	for _, v := range AllCategories() {
		if c == v {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a string into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return c, nil
}

// Priority is the urgency of an issue
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// AllPriorities returns all valid priorities
func AllPriorities() []Priority {
	return []Priority{
		PriorityCritical,
		PriorityHigh,
		PriorityMedium,
		PriorityLow,
	}
}

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Normalize returns the priority, treating empty as PriorityMedium.
func (p Priority) Normalize() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

func (p Priority) String() string {
	return string(p)
}

// ParsePriority parses a string into a Priority
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %s", s)
	}
	return p, nil
}

// Industry is the regulated sector an organization operates in
type Industry string

const (
	IndustryPharma        Industry = "Pharma"
	IndustryMedTech       Industry = "MedTech"
	IndustryManufacturing Industry = "Manufacturing"
	IndustryOther         Industry = "Other"
)

// IsValid checks if the industry is valid
func (i Industry) IsValid() bool {
	switch i {
	case IndustryPharma, IndustryMedTech, IndustryManufacturing, IndustryOther:
		return true
	default:
		return false
	}
}

// Normalize returns the industry, treating empty as IndustryOther.
func (i Industry) Normalize() Industry {
	if i == "" {
		return IndustryOther
	}
	return i
}
