package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

type PaymentState string

const (
	StateInProcess PaymentState = "IN_PROCESS"
	StatePayed     PaymentState = "PAYED"
	StateCancelled PaymentState = "CANCELLED"
	StateRejected  PaymentState = "REJECTED"
	// StateError records attempts that never became payable; kept for audit.
	StateError PaymentState = "ERROR"
)

// Terminal reports whether the state can never transition again.
func (s PaymentState) Terminal() bool {
	return s == StatePayed || s == StateCancelled || s == StateRejected || s == StateError
}

type Decision string

const (
	DecisionPay    Decision = "pay"
	DecisionCancel Decision = "cancel"
	DecisionReject Decision = "reject"
)

func (d Decision) State() (PaymentState, bool) {
	switch d {
	case DecisionPay:
		return StatePayed, true
	case DecisionCancel:
		return StateCancelled, true
	case DecisionReject:
		return StateRejected, true
	}
	return "", false
}

// DisplayHints drive the external preview UI: which sender/receiver fields
// are shown and which may be edited before the decision.
type DisplayHints struct {
	EditSenderName      bool `json:"edit_sender_name"`
	ShowSenderName      bool `json:"show_sender_name"`
	EditSenderAccount   bool `json:"edit_sender_account"`
	ShowSenderAccount   bool `json:"show_sender_account"`
	ShowReceiverName    bool `json:"show_receiver_name"`
	ShowReceiverAccount bool `json:"show_receiver_account"`
}

// Payment is one inbound transaction attempt. Owned by the orchestrator;
// adapters only ever see the field maps handed to them.
type Payment struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	MerchantID snowflake.ID `json:"merchant_id" gorm:"not null;index"`

	Bank     string       `json:"bank" gorm:"type:varchar(32);not null"`
	Protocol string       `json:"protocol" gorm:"type:varchar(16);not null"`
	State    PaymentState `json:"state" gorm:"type:varchar(16);not null;index"`

	Charset     string `json:"charset" gorm:"type:varchar(32)"`
	Language    string `json:"language" gorm:"type:varchar(8)"`
	PaymentType string `json:"payment_type" gorm:"type:varchar(16)"`

	Amount          string `json:"amount" gorm:"type:varchar(32)"`
	Currency        string `json:"currency" gorm:"type:varchar(8)"`
	ReferenceCode   string `json:"reference_code" gorm:"type:varchar(64)"`
	MessageText     string `json:"message" gorm:"type:varchar(255)"`
	ReceiverName    string `json:"receiver_name" gorm:"type:varchar(255)"`
	ReceiverAccount string `json:"receiver_account" gorm:"type:varchar(64)"`

	SuccessTarget string `json:"success_target" gorm:"type:text"`
	CancelTarget  string `json:"cancel_target" gorm:"type:text"`
	RejectTarget  string `json:"reject_target" gorm:"type:text"`

	SenderName    string `json:"sender_name" gorm:"type:varchar(255)"`
	SenderAccount string `json:"sender_account" gorm:"type:varchar(64)"`

	Hints DisplayHints `json:"hints" gorm:"embedded;embeddedPrefix:hint_"`

	// Fields is the normalized inbound field map, serialized as JSON.
	Fields     string `json:"-" gorm:"type:text"`
	SourceHash string `json:"source_hash" gorm:"type:text"`

	RequestMethod string `json:"request_method" gorm:"type:varchar(8)"`
	RequestURL    string `json:"request_url" gorm:"type:text"`
	AutoSubmit    bool   `json:"auto_submit"`

	// ReplayKey is set for protocols with a dedup requirement (EC).
	ReplayKey string `json:"replay_key,omitempty" gorm:"type:varchar(128)"`

	Errors   string `json:"-" gorm:"type:text"`
	Warnings string `json:"-" gorm:"type:text"`

	// Outbound response, populated once the decision is applied.
	ResponseFields string `json:"-" gorm:"type:text"`
	ResponseHash   string `json:"response_hash" gorm:"type:text"`
	ReturnMethod   string `json:"return_method" gorm:"type:varchar(8)"`

	// Callback delivery outcome, audit only.
	CallbackStatus int    `json:"callback_status"`
	CallbackBody   string `json:"callback_body" gorm:"type:text"`
	CallbackError  string `json:"callback_error" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) SetFields(fields map[string]string) {
	raw, _ := json.Marshal(fields)
	p.Fields = string(raw)
}

func (p *Payment) FieldMap() map[string]string {
	fields := map[string]string{}
	if p.Fields != "" {
		_ = json.Unmarshal([]byte(p.Fields), &fields)
	}
	return fields
}

func (p *Payment) SetValidation(errs []FieldError, warns []FieldWarning) {
	if len(errs) > 0 {
		raw, _ := json.Marshal(errs)
		p.Errors = string(raw)
	}
	if len(warns) > 0 {
		raw, _ := json.Marshal(warns)
		p.Warnings = string(raw)
	}
}

func (p *Payment) SetResponseFields(fields map[string]string) {
	raw, _ := json.Marshal(fields)
	p.ResponseFields = string(raw)
}

func (p *Payment) ResponseFieldMap() map[string]string {
	fields := map[string]string{}
	if p.ResponseFields != "" {
		_ = json.Unmarshal([]byte(p.ResponseFields), &fields)
	}
	return fields
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	FindByID(ctx context.Context, id snowflake.ID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	// Finalize flips state from IN_PROCESS to the given terminal state with
	// a conditional update; reports false when the payment was already
	// finalized by a concurrent caller.
	Finalize(ctx context.Context, p *Payment, state PaymentState) (bool, error)
}
