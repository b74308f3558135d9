package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
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
	"github.com/banklabs/banklink/internal/banklink/service"
	"github.com/banklabs/banklink/internal/config"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
	merchantrepo "github.com/banklabs/banklink/internal/merchant/repository"
)

type staticSeq int64

func (s staticSeq) Next(context.Context) (int64, error) { return int64(s), nil }

type nopDeliverer struct{}

func (nopDeliverer) Deliver(context.Context, string, string, string) *domain.CallbackResult {
	return &domain.CallbackResult{Attempted: true, StatusCode: 200}
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&merchantdomain.Merchant{}, &domain.Payment{}, &audit.Attempt{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.NoError(t, db.Create(&merchantdomain.Merchant{
		ID:     node.Generate(),
		UID:    "m1",
		Name:   "Test Shop",
		Bank:   "nordea",
		Secret: "s3cr3t",
		Algo:   "md5",
	}).Error)

	cfg := config.Config{}
	cfg.IPizza.DefaultCharset = "ISO-8859-1"
	cfg.Solo.DefaultCharset = "ISO-8859-1"
	cfg.Aab.DefaultCharset = "ISO-8859-1"
	cfg.EC.DefaultCharset = "ISO-8859-1"

	reg := registry.New(cfg, []domain.Factory{
		solo.NewFactory(staticSeq(7), nopDeliverer{}),
	})
	svc := service.New(reg,
		merchantrepo.Provide(db),
		paymentrepo.Provide(db, node),
		audit.Provide(db, node),
		"banklink.test",
		zap.NewNop())

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewServer(engine, svc, zap.NewNop()).RegisterRoutes()
	return engine
}

// MAC is MD5 of "0002&123&m1&10.00&1232&EXPRESS&EUR&s3cr3t&".
func soloForm() url.Values {
	return url.Values{
		"SOLOPMT_VERSION":  {"0002"},
		"SOLOPMT_STAMP":    {"123"},
		"SOLOPMT_RCV_ID":   {"m1"},
		"SOLOPMT_LANGUAGE": {"4"},
		"SOLOPMT_AMOUNT":   {"10.00"},
		"SOLOPMT_REF":      {"1232"},
		"SOLOPMT_DATE":     {"EXPRESS"},
		"SOLOPMT_MSG":      {"order 42"},
		"SOLOPMT_RETURN":   {"http://shop.example/return"},
		"SOLOPMT_CANCEL":   {"http://shop.example/cancel"},
		"SOLOPMT_REJECT":   {"http://shop.example/reject"},
		"SOLOPMT_CONFIRM":  {"YES"},
		"SOLOPMT_KEYVERS":  {"0001"},
		"SOLOPMT_CUR":      {"EUR"},
		"SOLOPMT_MAC":      {"BA5A5BD9BB553122635411337966FAFC"},
	}
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type paymentEnvelope struct {
	Payment  domain.Payment        `json:"payment"`
	Form     *domain.FormResponse  `json:"form"`
	Warnings []domain.FieldWarning `json:"warnings"`
}

func TestServeBanklinkAccepted(t *testing.T) {
	router := testRouter(t)

	w := postForm(router, "/banklink/nordea", soloForm())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out paymentEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, domain.StateInProcess, out.Payment.State)
	assert.Equal(t, "10.00", out.Payment.Amount)
	assert.Nil(t, out.Form)
}

func TestServeBanklinkGetAllowed(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/banklink/nordea?"+soloForm().Encode(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out paymentEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0].Message, "GET")
}

func TestServeBanklinkValidationError(t *testing.T) {
	router := testRouter(t)

	form := soloForm()
	form.Set("SOLOPMT_MAC", "00000000000000000000000000000000")
	w := postForm(router, "/banklink/nordea", form)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var out struct {
		Error struct {
			Errors []domain.FieldError `json:"errors"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Error.Errors)
}

func TestServeBanklinkUnknownBank(t *testing.T) {
	router := testRouter(t)

	w := postForm(router, "/banklink/no-such-bank", soloForm())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeBanklinkAutoPay(t *testing.T) {
	router := testRouter(t)

	form := soloForm()
	form.Set("PANGALINK_AUTOPAY", "accept")
	w := postForm(router, "/banklink/nordea", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out paymentEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, domain.StatePayed, out.Payment.State)
	require.NotNil(t, out.Form)
	assert.Equal(t, http.MethodGet, out.Form.Method)
	assert.NotEmpty(t, out.Form.Fields["SOLOPMT_RETURN_PAID"])
}

func TestDecidePayment(t *testing.T) {
	router := testRouter(t)

	w := postForm(router, "/banklink/nordea", soloForm())
	require.Equal(t, http.StatusOK, w.Code)
	var submitted paymentEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	body, _ := json.Marshal(gin.H{"decision": "cancel"})
	req := httptest.NewRequest(http.MethodPost, "/payments/"+submitted.Payment.ID.String()+"/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var decided paymentEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, domain.StateCancelled, decided.Payment.State)

	// a second decision conflicts
	req = httptest.NewRequest(http.MethodPost, "/payments/"+submitted.Payment.ID.String()+"/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecidePaymentUnknownDecision(t *testing.T) {
	router := testRouter(t)

	w := postForm(router, "/banklink/nordea", soloForm())
	require.Equal(t, http.StatusOK, w.Code)
	var submitted paymentEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	body, _ := json.Marshal(gin.H{"decision": "maybe"})
	req := httptest.NewRequest(http.MethodPost, "/payments/"+submitted.Payment.ID.String()+"/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPayment(t *testing.T) {
	router := testRouter(t)

	w := postForm(router, "/banklink/nordea", soloForm())
	require.Equal(t, http.StatusOK, w.Code)
	var submitted paymentEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	req := httptest.NewRequest(http.MethodGet, "/payments/"+submitted.Payment.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Payment  domain.Payment  `json:"payment"`
		Attempts []audit.Attempt `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, submitted.Payment.ID, out.Payment.ID)
	assert.Len(t, out.Attempts, 1)
}

func TestGetPaymentNotFound(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/424242", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBanks(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/banks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data []bankView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Data)

	keys := make([]string, 0, len(out.Data))
	for _, b := range out.Data {
		keys = append(keys, b.Key)
	}
	assert.Contains(t, keys, "nordea")
	assert.Contains(t, keys, "swedbank")
}

func TestSignatureOrderEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protocols/solo/signature-order", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data map[string][]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Data)

	req = httptest.NewRequest(http.MethodGet, "/protocols/bogus/signature-order", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
