package models

import (
	"github.com/soundfoundry/backend/internal/domain/identity"
)

// UserModel is the persistence model for identity.User
type UserModel struct {
	BaseModel
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName  string `gorm:"type:varchar(100)"`
	Role         string `gorm:"type:varchar(20);not null;default:'user'"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseEntity:   m.BaseModel.ToDomain(),
		Email:        m.Email,
		DisplayName:  m.DisplayName,
		Role:         identity.Role(m.Role),
		PasswordHash: m.PasswordHash,
	}
}

// UserModelFromDomain converts a domain User to a persistence model
func UserModelFromDomain(user *identity.User) *UserModel {
	model := &UserModel{
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         user.Role.String(),
		PasswordHash: user.PasswordHash,
	}
	model.FromDomainBaseEntity(user.BaseEntity)
	return model
}
