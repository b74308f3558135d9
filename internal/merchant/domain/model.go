package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Merchant is one onboarded integration project. Provisioning (key pair
// generation, onboarding UI) happens outside this service; the core only
// ever reads these records.
type Merchant struct {
	ID   snowflake.ID `json:"id" gorm:"primaryKey"`
	UID  string       `json:"uid" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name string       `json:"name" gorm:"type:varchar(255);not null"`

	// Bank is the registry key of the bank this merchant is registered
	// with; a request arriving on any other bank's endpoint is rejected.
	Bank string `json:"bank" gorm:"type:varchar(32);not null;index"`

	// Shared-secret protocols (Solo/AAB).
	Secret string `json:"-" gorm:"type:text"`
	Algo   string `json:"algo" gorm:"type:varchar(8)"` // md5, sha1 or sha256

	// Certificate protocols (IPizza/EC). Certificate is the merchant's
	// public certificate used to verify inbound signatures; SigningKey is
	// the bank-side private key this service signs responses with.
	Certificate string `json:"-" gorm:"type:text"`
	SigningKey  string `json:"-" gorm:"type:text"`

	// Per-merchant overrides for protocols without receiver fields.
	ReceiverName    string `json:"receiver_name" gorm:"type:varchar(255)"`
	ReceiverAccount string `json:"receiver_account" gorm:"type:varchar(64)"`

	// ECReturnURL is the contract-configured return address for the EC
	// protocol (versions without an inline feedBackUrl field).
	ECReturnURL string `json:"ec_return_url" gorm:"type:varchar(255)"`

	// SoloAutoResponse enables server-to-server result delivery for the
	// Solo family, which treats it as a contract option rather than a
	// protocol default.
	SoloAutoResponse bool `json:"solo_auto_response"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Merchant) TableName() string { return "merchants" }

type Repository interface {
	FindByUID(ctx context.Context, uid string) (*Merchant, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Merchant, error)
	Touch(ctx context.Context, id snowflake.ID, at time.Time) error
}
