package model

// UserOrganization grants a user access to one organization.
type UserOrganization struct {
	UserID         uint          `gorm:"primarykey"`
	OrganizationID string        `gorm:"primarykey;size:64"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID;references:ID;constraint:OnDelete:CASCADE"`
}

// UserPlant grants a user access to one plant.
type UserPlant struct {
	UserID  uint   `gorm:"primarykey"`
	PlantID string `gorm:"primarykey;size:64"`
	Plant   *Plant `gorm:"foreignKey:PlantID;references:ID;constraint:OnDelete:CASCADE"`
}

// UserMachine grants a user access to one machine.
type UserMachine struct {
	UserID    uint     `gorm:"primarykey"`
	MachineID string   `gorm:"primarykey;size:36"`
	Machine   *Machine `gorm:"foreignKey:MachineID;references:ID;constraint:OnDelete:CASCADE"`
}

// SecurityScope is the persisted form of a permission scope. IDs must match
// the in-process enumeration.
type SecurityScope struct {
	ID   uint   `gorm:"primarykey;autoIncrement:false"`
	Name string `gorm:"size:64;not null;uniqueIndex"`
}

type UserScope struct {
	UserID  uint           `gorm:"primarykey"`
	ScopeID uint           `gorm:"primarykey"`
	Scope   *SecurityScope `gorm:"foreignKey:ScopeID;references:ID;constraint:OnDelete:CASCADE"`
}
