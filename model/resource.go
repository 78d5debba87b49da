package model

type Organization struct {
	ID   string `gorm:"primarykey;size:64"`
	Name string `gorm:"size:256;not null"`
}

type Plant struct {
	ID             string        `gorm:"primarykey;size:64"`
	OrganizationID string        `gorm:"size:64;not null;index"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID;references:ID"`
	Name           string        `gorm:"size:256;not null"`
}

type Machine struct {
	ID      string `gorm:"primarykey;size:36"` // UUID
	PlantID string `gorm:"size:64;not null;index"`
	Plant   *Plant `gorm:"foreignKey:PlantID;references:ID"`
	Name    string `gorm:"size:256;not null"`
}
