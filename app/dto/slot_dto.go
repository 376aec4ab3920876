// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// SaleAttributes carries the sale metadata recorded on a claimed slot
type SaleAttributes struct {
	PlanType  *string    `json:"plan_type,omitempty" validate:"omitempty,oneof=essential premium"`
	SoldBy    *string    `json:"sold_by,omitempty" validate:"omitempty,max=255"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Notes     *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// AssignSlotsRequest asks for quantity fresh slots for a client
type AssignSlotsRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
	SaleAttributes
}

// AssignSpecificSlotRequest hands a chosen available slot to a client
type AssignSpecificSlotRequest struct {
	ClientID uint `json:"client_id" validate:"required"`
	SaleAttributes
}

// UpdateSlotRequest is an administrative partial update. Omitted fields are untouched.
type UpdateSlotRequest struct {
	SoldBy    *string    `json:"sold_by,omitempty" validate:"omitempty,max=255"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Status    *string    `json:"status,omitempty" validate:"omitempty,oneof=available assigned inactive suspended"`
	Notes     *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
	PlanType  *string    `json:"plan_type,omitempty" validate:"omitempty,oneof=essential premium"`
	Password  *string    `json:"password,omitempty" validate:"omitempty,numeric"`
}

// UpdateSlotNotesRequest is the only update operators may perform
type UpdateSlotNotesRequest struct {
	Notes *string `json:"notes" validate:"required,max=2000"`
}

// SetSlotPasswordRequest sets a slot password by hand
type SetSlotPasswordRequest struct {
	Password string `json:"password" validate:"required,numeric"`
}

// EnsureCapacityRequest grows the pool until min_fresh fresh slots exist
type EnsureCapacityRequest struct {
	MinFresh int `json:"min_fresh" validate:"required,min=1,max=100000"`
}

// ListSlotsRequest filters the slot listing
type ListSlotsRequest struct {
	Status    *string `query:"status" validate:"omitempty,oneof=available assigned inactive suspended"`
	PlanType  *string `query:"plan_type" validate:"omitempty,oneof=essential premium"`
	ClientID  *uint   `query:"client_id" validate:"omitempty"`
	AccountID *uint   `query:"account_id" validate:"omitempty"`
	Page      int     `query:"page" validate:"omitempty,min=1"`
	PageSize  int     `query:"page_size" validate:"omitempty,min=1,max=500"`
}

// SlotDTO represents a slot in responses
type SlotDTO struct {
	ID              uint             `json:"id"`
	UUID            string           `json:"uuid"`
	AccountID       uint             `json:"account_id"`
	AccountEmail    string           `json:"account_email,omitempty"`
	AccountSequence int64            `json:"account_sequence,omitempty"`
	SlotNumber      int              `json:"slot_number"`
	Username        string           `json:"username"`
	Password        string           `json:"password"`
	Status          string           `json:"status"`
	ClientID        *uint            `json:"client_id,omitempty"`
	PlanType        *string          `json:"plan_type,omitempty"`
	SoldBy          *string          `json:"sold_by,omitempty"`
	SoldAt          *string          `json:"sold_at,omitempty"`
	StartsAt        *string          `json:"starts_at,omitempty"`
	ExpiresAt       *string          `json:"expires_at,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	ProfileLabel    *int             `json:"profile_label,omitempty"`
	History         []SlotHistoryDTO `json:"history,omitempty"`
	UpdatedAt       string           `json:"updated_at"`
}

// SlotHistoryDTO represents one audit entry
type SlotHistoryDTO struct {
	ID        uint           `json:"id"`
	SlotID    uint           `json:"slot_id"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// AccountDTO represents a pool account in responses
type AccountDTO struct {
	ID            uint   `json:"id"`
	UUID          string `json:"uuid"`
	SequenceIndex int64  `json:"sequence_index"`
	Email         string `json:"email"`
	Capacity      int    `json:"capacity"`
	CreatedAt     string `json:"created_at"`
}

// AccountInventoryDTO is an account with per-status slot counts
type AccountInventoryDTO struct {
	AccountID     uint   `json:"account_id"`
	SequenceIndex int64  `json:"sequence_index"`
	Email         string `json:"email"`
	Capacity      int    `json:"capacity"`
	Available     int64  `json:"available"`
	Fresh         int64  `json:"fresh"`
	Assigned      int64  `json:"assigned"`
	Inactive      int64  `json:"inactive"`
	Suspended     int64  `json:"suspended"`
}

// AvailabilityDTO reports the two availability counts
type AvailabilityDTO struct {
	FreshAvailable int64 `json:"fresh_available"`
	TotalAvailable int64 `json:"total_available"`
}

// NextEmailPreviewDTO predicts the email of the next account growth will create
type NextEmailPreviewDTO struct {
	SequenceIndex  int64  `json:"sequence_index"`
	Email          string `json:"email"`
	TotalAvailable int64  `json:"total_available"`
}

// ClientSlotsResponse lists a client's slots with their profile labels
type ClientSlotsResponse struct {
	ClientID uint      `json:"client_id"`
	Slots    []SlotDTO `json:"slots"`
}

// AssignSlotsResponse is returned after a successful claim
type AssignSlotsResponse struct {
	ClientID uint      `json:"client_id"`
	Slots    []SlotDTO `json:"slots"`
}

// ReleaseSlotsResponse reports how many slots were returned to the pool
type ReleaseSlotsResponse struct {
	ClientID uint `json:"client_id"`
	Released int  `json:"released"`
}

// EnsureCapacityResponse lists accounts created by growth
type EnsureCapacityResponse struct {
	Created      []AccountDTO    `json:"created"`
	Availability AvailabilityDTO `json:"availability"`
}

// PaginationInfo describes a page of results
type PaginationInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ListSlotsResponse is a page of slots
type ListSlotsResponse struct {
	Items      []SlotDTO      `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
