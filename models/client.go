package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/utils"
)

type Client struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name       string    `json:"name" gorm:"not null"`
	Email      string    `json:"email" gorm:"not null;index"`
	Company    string    `json:"company"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	PostalCode string    `json:"postal_code"`
	Notes      string    `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type ClientRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Company    string `json:"company,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (r *ClientRequest) Validate() error {
	var errs utils.ValidationErrors
	errs.Add(utils.ValidateString(r.Name, "name", 1, 255, true))
	errs.Add(utils.ValidateEmail(r.Email, "email"))
	errs.Add(utils.ValidateString(r.Company, "company", 0, 255, false))
	errs.Add(utils.ValidateString(r.Phone, "phone", 0, 64, false))
	errs.Add(utils.ValidateString(r.PostalCode, "postal_code", 0, 32, false))
	return errs.OrNil()
}

// Apply copies the request onto c. Call Validate first.
func (r *ClientRequest) Apply(c *Client) {
	c.Name = strings.TrimSpace(r.Name)
	c.Email = strings.TrimSpace(r.Email)
	c.Company = r.Company
	c.Phone = r.Phone
	c.Address = r.Address
	c.City = r.City
	c.Country = r.Country
	c.PostalCode = r.PostalCode
	c.Notes = r.Notes
}

type ClientListResponse struct {
	Clients []*Client `json:"clients"`
	Total   int64     `json:"total"`
}
