package model

import (
	"time"

	"gorm.io/gorm"
)

// User stores user information and the authorization grants attached to it.
type User struct {
	ID                  uint               `gorm:"primarykey"`
	Email               string             `gorm:"uniqueIndex;size:256;not null"`
	Password            string             `gorm:"size:128;not null"`
	Disabled            bool               `gorm:"default:false;not null"`
	AllOrganizations    bool               `gorm:"default:false;not null"`
	AllPlants           bool               `gorm:"default:false;not null"`
	AllMachines         bool               `gorm:"default:false;not null"`
	ExternalUsername    *string            `gorm:"uniqueIndex;size:256"`
	ExternalAccessToken string             `gorm:"size:2048;not null;default:''"` // encrypted bearer credential of the external system
	ExternalTokenExpiry *time.Time         // expiration of ExternalAccessToken
	Organizations       []UserOrganization `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Plants              []UserPlant        `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Machines            []UserMachine      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Scopes              []UserScope        `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

// HasExternalToken reports whether a cached external credential is still usable at now.
func (u *User) HasExternalToken(now time.Time) bool {
	if u.ExternalAccessToken == "" || u.ExternalTokenExpiry == nil {
		return false
	}
	return !u.ExternalTokenExpiry.Before(now)
}
