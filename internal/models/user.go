package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleInspector Role = "inspector"
	RoleViewer    Role = "viewer"
)

// User is a driver, inspector or fleet manager allowed to use the API.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	DisplayName  string             `bson:"display_name" json:"display_name"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest creates a new API user.
type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleInspector, RoleViewer:
		return true
	default:
		return false
	}
}

// Permission actions checked by the API.
const (
	ActionViewVehicles    = "view_vehicles"
	ActionEvaluateAlerts  = "evaluate_alerts"
	ActionSubmitChecklist = "submit_checklist"
	ActionViewChecklists  = "view_checklists"
	ActionManageVehicles  = "manage_vehicles"
	ActionManageUsers     = "manage_users"
)

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action != ActionManageUsers
	case RoleInspector:
		return action == ActionViewVehicles || action == ActionEvaluateAlerts ||
			action == ActionSubmitChecklist || action == ActionViewChecklists
	case RoleViewer:
		return action == ActionViewVehicles || action == ActionEvaluateAlerts ||
			action == ActionViewChecklists
	default:
		return false
	}
}
