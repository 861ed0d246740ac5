package users

type CreateUserRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Name        string   `json:"name" validate:"required,max=200"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
	Role        string   `json:"role" validate:"required,oneof=super_admin admin pharmacist cashier"`
	PharmacyID  int64    `json:"pharmacy_id,omitempty" validate:"omitempty,gt=0"`
	BranchID    int64    `json:"branch_id,omitempty" validate:"omitempty,gt=0"`
	IsManager   bool     `json:"is_manager,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type UpdateUserRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,max=200"`
	BranchID  *int64  `json:"branch_id,omitempty" validate:"omitempty,gt=0"`
	IsManager *bool   `json:"is_manager,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

type AssignPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}
