package dto

// RenameRequest moves a single bot to a new name.
type RenameRequest struct {
	NewName string `json:"new_name" validate:"required"`
}
