// Package audit stores raw snapshots of inbound submissions. Every
// attempt is kept, including rejected ones, so operators can inspect
// exactly what a merchant's integration sent.
package audit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Values above this size are truncated in the stored snapshot.
const maxValueBytes = 100 * 1024

type Attempt struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentID snowflake.ID `json:"payment_id" gorm:"index"`

	Method string `json:"method" gorm:"type:varchar(8)"`
	URL    string `json:"url" gorm:"type:text"`

	// Headers and Fields are JSON maps, Body is the base64 raw payload.
	Headers string `json:"-" gorm:"type:text"`
	Fields  string `json:"-" gorm:"type:text"`
	Body    string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (Attempt) TableName() string { return "payment_attempts" }

func truncate(value string) string {
	if len(value) > maxValueBytes {
		return value[:maxValueBytes] + " ..."
	}
	return value
}

// NewAttempt snapshots one request against a payment record.
func NewAttempt(paymentID snowflake.ID, method, url string, headers, fields map[string]string, body []byte) *Attempt {
	capped := func(in map[string]string) string {
		out := make(map[string]string, len(in))
		for k, v := range in {
			out[k] = truncate(v)
		}
		raw, _ := json.Marshal(out)
		return string(raw)
	}
	return &Attempt{
		PaymentID: paymentID,
		Method:    method,
		URL:       url,
		Headers:   capped(headers),
		Fields:    capped(fields),
		Body:      base64.StdEncoding.EncodeToString(body),
	}
}

func (a *Attempt) HeaderMap() map[string]string {
	out := map[string]string{}
	if a.Headers != "" {
		_ = json.Unmarshal([]byte(a.Headers), &out)
	}
	return out
}

func (a *Attempt) RawBody() []byte {
	raw, _ := base64.StdEncoding.DecodeString(a.Body)
	return raw
}

type Repository interface {
	Record(ctx context.Context, a *Attempt) error
	ListByPayment(ctx context.Context, paymentID snowflake.ID) ([]Attempt, error)
}

type auditRepo struct {
	db   *gorm.DB
	node *snowflake.Node
}

func Provide(db *gorm.DB, node *snowflake.Node) Repository {
	return &auditRepo{db: db, node: node}
}

func (r *auditRepo) Record(ctx context.Context, a *Attempt) error {
	if a.ID == 0 {
		a.ID = r.node.Generate()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *auditRepo) ListByPayment(ctx context.Context, paymentID snowflake.ID) ([]Attempt, error) {
	var out []Attempt
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at").
		Find(&out).Error
	return out, err
}
