package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joseph-ayodele/job-intake/constants"
)

// Job is the persisted job record the pipeline enriches.
type Job struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobURL             string     `gorm:"column:job_url;uniqueIndex;not null" json:"job_url"`
	JobTitle           *string    `json:"job_title,omitempty"`
	CompanyName        *string    `json:"company_name,omitempty"`
	Industry           *string    `json:"industry,omitempty"`
	SalaryMin          *int64     `json:"salary_min,omitempty"`
	SalaryMax          *int64     `json:"salary_max,omitempty"`
	SalaryCurrency     *string    `gorm:"size:3" json:"salary_currency,omitempty"`
	SalaryPeriod       *string    `json:"salary_period,omitempty"`
	SalaryRaw          *string    `json:"salary_raw,omitempty"`
	Location           *string    `json:"location,omitempty"`
	LocationCountry    *string    `json:"location_country,omitempty"`
	LocationCity       *string    `json:"location_city,omitempty"`
	RemoteType         *string    `json:"remote_type,omitempty"`
	RoleType           *string    `json:"role_type,omitempty"`
	Seniority          *string    `json:"seniority,omitempty"`
	RequiredSkills     StringList `gorm:"type:jsonb" json:"required_skills,omitempty"`
	PreferredSkills    StringList `gorm:"type:jsonb" json:"preferred_skills,omitempty"`
	YearsExperienceMin *int       `json:"years_experience_min,omitempty"`
	YearsExperienceMax *int       `json:"years_experience_max,omitempty"`
	PostingDate        *time.Time `gorm:"type:date" json:"posting_date,omitempty"`
	EasyApply          *bool      `json:"easy_apply,omitempty"`
	Source             *string    `json:"source,omitempty"`
	ScrapedText        *string    `gorm:"type:text" json:"-"`
	Summary            *string    `gorm:"type:text" json:"summary,omitempty"`
	SummaryGeneratedAt *time.Time `json:"summary_generated_at,omitempty"`
	SearchIndexID      *string    `json:"search_index_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// HasSummary reports whether a non-empty summary was stored.
func (j *Job) HasSummary() bool {
	return j.Summary != nil && *j.Summary != ""
}

// Document returns the stored fields as a flat document. Columns that are
// unset are omitted.
func (j *Job) Document() Document {
	doc := Document{constants.FieldJobURL: j.JobURL}
	putStr := func(field string, v *string) {
		if v != nil && *v != "" {
			doc[field] = *v
		}
	}
	putStr(constants.FieldJobTitle, j.JobTitle)
	putStr(constants.FieldCompanyName, j.CompanyName)
	putStr(constants.FieldIndustry, j.Industry)
	putStr(constants.FieldSalaryCurrency, j.SalaryCurrency)
	putStr(constants.FieldSalaryPeriod, j.SalaryPeriod)
	putStr(constants.FieldSalaryRaw, j.SalaryRaw)
	putStr(constants.FieldLocation, j.Location)
	putStr(constants.FieldLocationCountry, j.LocationCountry)
	putStr(constants.FieldLocationCity, j.LocationCity)
	putStr(constants.FieldRemoteType, j.RemoteType)
	putStr(constants.FieldRoleType, j.RoleType)
	putStr(constants.FieldSeniority, j.Seniority)
	putStr(constants.FieldSource, j.Source)
	if j.SalaryMin != nil {
		doc[constants.FieldSalaryMin] = *j.SalaryMin
	}
	if j.SalaryMax != nil {
		doc[constants.FieldSalaryMax] = *j.SalaryMax
	}
	if j.YearsExperienceMin != nil {
		doc[constants.FieldYearsExperienceMin] = *j.YearsExperienceMin
	}
	if j.YearsExperienceMax != nil {
		doc[constants.FieldYearsExperienceMax] = *j.YearsExperienceMax
	}
	if len(j.RequiredSkills) > 0 {
		doc[constants.FieldRequiredSkills] = []string(j.RequiredSkills)
	}
	if len(j.PreferredSkills) > 0 {
		doc[constants.FieldPreferredSkills] = []string(j.PreferredSkills)
	}
	if j.EasyApply != nil {
		doc[constants.FieldEasyApply] = *j.EasyApply
	}
	if j.PostingDate != nil {
		doc[constants.FieldPostingDate] = j.PostingDate.Format("2006-01-02")
	}
	return doc
}

// Capture is a scraped posting as submitted by a client or dropped into the inbox.
type Capture struct {
	JobURL          string   `json:"jobUrl"`
	RawText         string   `json:"rawText"`
	ClientExtracted Document `json:"clientExtracted,omitempty"`
}

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("StringList: unsupported scan type %T", src)
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("StringList: %w", err)
	}
	*l = out
	return nil
}
