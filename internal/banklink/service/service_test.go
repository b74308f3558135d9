package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/banklabs/banklink/internal/audit"
	"github.com/banklabs/banklink/internal/banklink/adapters/solo"
	"github.com/banklabs/banklink/internal/banklink/domain"
	paymentrepo "github.com/banklabs/banklink/internal/banklink/repository"
	"github.com/banklabs/banklink/internal/banklink/registry"
	"github.com/banklabs/banklink/internal/config"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
	merchantrepo "github.com/banklabs/banklink/internal/merchant/repository"
)

type staticSeq int64

func (s staticSeq) Next(context.Context) (int64, error) { return int64(s), nil }

type nopDeliverer struct{ calls int }

func (d *nopDeliverer) Deliver(context.Context, string, string, string) *domain.CallbackResult {
	d.calls++
	return &domain.CallbackResult{Attempted: true, StatusCode: 200}
}

func testService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&merchantdomain.Merchant{}, &domain.Payment{}, &audit.Attempt{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	merchant := &merchantdomain.Merchant{
		ID:     node.Generate(),
		UID:    "m1",
		Name:   "Test Shop",
		Bank:   "nordea",
		Secret: "s3cr3t",
		Algo:   "md5",
	}
	require.NoError(t, db.Create(merchant).Error)

	cfg := config.Config{}
	cfg.IPizza.DefaultCharset = "ISO-8859-1"
	cfg.Solo.DefaultCharset = "ISO-8859-1"
	cfg.Aab.DefaultCharset = "ISO-8859-1"
	cfg.EC.DefaultCharset = "ISO-8859-1"

	reg := registry.New(cfg, []domain.Factory{
		solo.NewFactory(staticSeq(7), &nopDeliverer{}),
	})

	return New(reg,
		merchantrepo.Provide(db),
		paymentrepo.Provide(db, node),
		audit.Provide(db, node),
		"banklink.test",
		zap.NewNop())
}

// MAC is MD5 of "0002&123&m1&10.00&1232&EXPRESS&EUR&s3cr3t&".
func soloFields() map[string]string {
	return map[string]string{
		"SOLOPMT_VERSION":  "0002",
		"SOLOPMT_STAMP":    "123",
		"SOLOPMT_RCV_ID":   "m1",
		"SOLOPMT_LANGUAGE": "4",
		"SOLOPMT_AMOUNT":   "10.00",
		"SOLOPMT_REF":      "1232",
		"SOLOPMT_DATE":     "EXPRESS",
		"SOLOPMT_MSG":      "order 42",
		"SOLOPMT_RETURN":   "http://shop.example/return",
		"SOLOPMT_CANCEL":   "http://shop.example/cancel",
		"SOLOPMT_REJECT":   "http://shop.example/reject",
		"SOLOPMT_CONFIRM":  "YES",
		"SOLOPMT_KEYVERS":  "0001",
		"SOLOPMT_CUR":      "EUR",
		"SOLOPMT_MAC":      "BA5A5BD9BB553122635411337966FAFC",
	}
}

func submitReq(f map[string]string) SubmitRequest {
	return SubmitRequest{
		Bank:    "nordea",
		Method:  http.MethodPost,
		URL:     "/banklink/nordea",
		Fields:  f,
		Headers: map[string]string{"user-agent": "test"},
		RawBody: []byte("raw"),
	}
}

func TestSubmitAccepted(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	out, err := svc.Submit(ctx, submitReq(soloFields()))
	require.NoError(t, err)
	require.True(t, out.Result.OK)
	require.NotNil(t, out.Payment)

	p := out.Payment
	assert.Equal(t, domain.StateInProcess, p.State)
	assert.Equal(t, "nordea", p.Bank)
	assert.Equal(t, domain.ProtocolSolo, p.Protocol)
	assert.Equal(t, "10.00", p.Amount)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, "1232", p.ReferenceCode)
	assert.Equal(t, "0002&123&m1&10.00&1232&EXPRESS&EUR&s3cr3t&", p.SourceHash)
	assert.Empty(t, out.AutoPay)

	// sender identity defaults
	assert.Equal(t, "Tõõger Leõpäöld", p.SenderName)
	assert.True(t, strings.HasPrefix(p.SenderAccount, "96"))
	assert.Len(t, p.SenderAccount, 14)

	// audit trail
	stored, attempts, err := svc.Payment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInProcess, stored.State)
	require.Len(t, attempts, 1)
	assert.Equal(t, "test", attempts[0].HeaderMap()["user-agent"])
	assert.Equal(t, []byte("raw"), attempts[0].RawBody())
}

func TestSubmitGetAllowedWithWarning(t *testing.T) {
	svc := testService(t)

	req := submitReq(soloFields())
	req.Method = http.MethodGet
	out, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, out.Result.OK)
	require.NotEmpty(t, out.Result.Warnings)
	assert.Contains(t, out.Result.Warnings[0].Message, "GET")
}

func TestSubmitMethodNotAllowed(t *testing.T) {
	svc := testService(t)

	req := submitReq(soloFields())
	req.Method = http.MethodPut
	out, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, out.Result.OK)
	assert.Nil(t, out.Payment)
	assert.Contains(t, out.Result.Errors[0].Message, "POST")
}

func TestSubmitUnknownBank(t *testing.T) {
	svc := testService(t)

	req := submitReq(soloFields())
	req.Bank = "no-such-bank"
	_, err := svc.Submit(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrUnknownBank)
}

func TestSubmitUnknownMerchant(t *testing.T) {
	svc := testService(t)

	f := soloFields()
	f["SOLOPMT_RCV_ID"] = "ghost"
	out, err := svc.Submit(context.Background(), submitReq(f))
	require.NoError(t, err)
	assert.False(t, out.Result.OK)
	assert.Nil(t, out.Payment, "attempts without an identifiable merchant leave no record")
}

func TestSubmitBadSignatureRecordsError(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	f := soloFields()
	f["SOLOPMT_MAC"] = "00000000000000000000000000000000"
	out, err := svc.Submit(ctx, submitReq(f))
	require.NoError(t, err)
	assert.False(t, out.Result.OK)
	require.NotNil(t, out.Payment)
	assert.Equal(t, domain.StateError, out.Payment.State)

	stored, attempts, err := svc.Payment(ctx, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, stored.State)
	assert.NotEmpty(t, stored.Errors)
	assert.Len(t, attempts, 1)
}

func TestSubmitControlFields(t *testing.T) {
	svc := testService(t)

	f := soloFields()
	f["PANGALINK_NAME"] = "Mari Maasikas"
	f["PANGALINK_ACCOUNT"] = "EE961234567890"
	f["PANGALINK_AUTOPAY"] = "accept"
	out, err := svc.Submit(context.Background(), submitReq(f))
	require.NoError(t, err)
	require.True(t, out.Result.OK)

	assert.Equal(t, "Mari Maasikas", out.Payment.SenderName)
	assert.Equal(t, "EE961234567890", out.Payment.SenderAccount)
	assert.True(t, out.Payment.AutoSubmit)
	assert.Equal(t, domain.DecisionPay, out.AutoPay)
}

func TestFinalizePay(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	out, err := svc.Submit(ctx, submitReq(soloFields()))
	require.NoError(t, err)
	require.True(t, out.Result.OK)

	fin, err := svc.Finalize(ctx, out.Payment.ID, DecisionRequest{Decision: domain.DecisionPay})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePayed, fin.Payment.State)
	assert.Equal(t, http.MethodGet, fin.Form.Method)
	assert.NotEmpty(t, fin.Form.Fields["SOLOPMT_RETURN_PAID"])
	assert.NotEmpty(t, fin.Payment.ResponseHash)
	assert.Equal(t, http.MethodGet, fin.Payment.ReturnMethod)

	stored, _, err := svc.Payment(ctx, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePayed, stored.State)
	assert.NotEmpty(t, stored.ResponseFieldMap())
}

func TestFinalizeOnlyOnce(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	out, err := svc.Submit(ctx, submitReq(soloFields()))
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, out.Payment.ID, DecisionRequest{Decision: domain.DecisionCancel})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, out.Payment.ID, DecisionRequest{Decision: domain.DecisionPay})
	require.ErrorIs(t, err, domain.ErrPaymentFinalized)

	stored, _, err := svc.Payment(ctx, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, stored.State)
}

func TestFinalizeUnknownDecision(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	out, err := svc.Submit(ctx, submitReq(soloFields()))
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, out.Payment.ID, DecisionRequest{Decision: "maybe"})
	require.ErrorIs(t, err, domain.ErrUnknownDecision)

	stored, _, err := svc.Payment(ctx, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInProcess, stored.State, "an unknown decision leaves the payment open")
}

func TestFinalizeSenderOverride(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	out, err := svc.Submit(ctx, submitReq(soloFields()))
	require.NoError(t, err)

	fin, err := svc.Finalize(ctx, out.Payment.ID, DecisionRequest{
		Decision:      domain.DecisionPay,
		SenderName:    "Jaan Tamm",
		SenderAccount: "EE961111111111",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jaan Tamm", fin.Payment.SenderName)
	assert.Equal(t, "EE961111111111", fin.Payment.SenderAccount)
}

func TestFinalizeNotFound(t *testing.T) {
	svc := testService(t)

	_, err := svc.Finalize(context.Background(), snowflake.ID(424242), DecisionRequest{Decision: domain.DecisionPay})
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestSignatureOrder(t *testing.T) {
	svc := testService(t)

	order, err := svc.SignatureOrder(domain.ProtocolSolo)
	require.NoError(t, err)
	assert.NotEmpty(t, order)

	_, err = svc.SignatureOrder("bogus")
	require.Error(t, err)
}
