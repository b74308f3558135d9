package ec

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	"github.com/banklabs/banklink/internal/banklink/signing"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSeq int64

func (s staticSeq) Next(context.Context) (int64, error) { return int64(s), nil }

type nopDeliverer struct{ calls int }

func (d *nopDeliverer) Deliver(context.Context, string, string, string) *domain.CallbackResult {
	d.calls++
	return &domain.CallbackResult{Attempted: true, StatusCode: 200}
}

type fakeGuard struct{ seen map[string]bool }

func (g *fakeGuard) CheckAndMark(_ context.Context, merchantID, transactionID string) (bool, error) {
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	key := merchantID + ":" + transactionID
	already := g.seen[key]
	g.seen[key] = true
	return already, nil
}

func testBank() *domain.BankDefinition {
	return &domain.BankDefinition{
		Key:             "ec",
		Protocol:        domain.ProtocolEC,
		Name:            "Estcard",
		DefaultCharset:  "ISO-8859-1",
		AllowedCharsets: []string{"ISO-8859-1", "UTF-8"},
	}
}

func testMerchant(t *testing.T) *merchantdomain.Merchant {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "uid200001"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	return &merchantdomain.Merchant{
		UID:         "uid200001",
		Bank:        "ec",
		Certificate: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		SigningKey:  string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		ECReturnURL: "http://shop.example/ec",
	}
}

func paymentFields() map[string]string {
	return map[string]string{
		"action":      "gaf",
		"ver":         "004",
		"id":          "uid200001",
		"ecuno":       "1392644629",
		"eamount":     "1336",
		"cur":         "EUR",
		"datetime":    "20140217154349",
		"feedBackUrl": "http://shop.example/ec",
		"delivery":    "S",
		"lang":        "en",
	}
}

func TestPadValue(t *testing.T) {
	assert.Equal(t, "ab ", padValue("ab", -3), "negative widths left justify with spaces")
	assert.Equal(t, "0ab", padValue("ab", 3), "positive widths right justify with zeroes")
	assert.Equal(t, "abcd", padValue("abcd", 3), "long values are kept as is")
	assert.Equal(t, "abcd", padValue("abcd", -3))
}

func TestCalculateHashFixedWidth(t *testing.T) {
	a := newAdapter(testBank(), paymentFields(), "", nil)

	want := "004" +
		"uid200001 " +
		"001392644629" +
		"000000001336" +
		"EUR" +
		"20140217154349" +
		"http://shop.example/ec" + strings.Repeat(" ", 128-len("http://shop.example/ec")) +
		"S"
	assert.Equal(t, want, a.CalculateHash())
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "13.36", formatCents(1336))
	assert.Equal(t, "13", formatCents(1300))
	assert.Equal(t, "13.1", formatCents(1310))
	assert.Equal(t, "13.05", formatCents(1305))
	assert.Equal(t, "0.07", formatCents(7))
}

func TestValidateSignatureRoundTrip(t *testing.T) {
	bank := testBank()
	m := testMerchant(t)
	f := paymentFields()

	a := newAdapter(bank, f, "", nil)
	sig, err := signing.Sign(m.SigningKey, "sha1", fields.Encode(a.CalculateHash(), a.Charset()))
	require.NoError(t, err)
	f["mac"] = hex.EncodeToString(sig)

	res, err := a.ValidateSignature(m)
	require.NoError(t, err)
	assert.True(t, res.OK)

	f["eamount"] = "9999"
	res, err = a.ValidateSignature(m)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "mac", res.Errors[0].Field)
}

func TestValidateRequestVersionRules(t *testing.T) {
	bank := testBank()

	f := paymentFields()
	f["ver"] = "002"
	f["mac"] = strings.Repeat("ab", 128)
	delete(f, "feedBackUrl")
	delete(f, "delivery")
	a := newAdapter(bank, f, "", nil)
	res, err := a.ValidateRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)
	found := false
	for _, w := range res.Warnings {
		if w.Field == "ver" {
			found = true
		}
	}
	assert.True(t, found, "version 002 is flagged as deprecated")

	f = paymentFields()
	f["ver"] = "002"
	f["mac"] = strings.Repeat("ab", 128)
	a = newAdapter(bank, f, "", nil)
	res, err = a.ValidateRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.OK, "feedBackUrl and delivery are not allowed on 002")

	f = paymentFields()
	delete(f, "feedBackUrl")
	f["mac"] = strings.Repeat("ab", 128)
	a = newAdapter(bank, f, "", nil)
	res, err = a.ValidateRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.OK, "feedBackUrl is mandatory on 004")
}

func TestValidateRequestEcuno(t *testing.T) {
	bank := testBank()
	f := paymentFields()
	f["ecuno"] = "99"
	f["mac"] = strings.Repeat("ab", 128)
	a := newAdapter(bank, f, "", nil)
	res, err := a.ValidateRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestReplayWarning(t *testing.T) {
	bank := testBank()
	guard := &fakeGuard{}

	f := paymentFields()
	f["mac"] = strings.Repeat("ab", 128)

	a := newAdapter(bank, f, "", guard)
	res, err := a.ValidateRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Warnings)

	a = newAdapter(bank, f, "", guard)
	res, err = a.ValidateRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK, "a duplicate is a warning, never an error")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "ecuno", res.Warnings[0].Field)
}

func TestGenerateFormPaid(t *testing.T) {
	bank := testBank()
	m := testMerchant(t)
	d := &nopDeliverer{}
	f := NewFactory(staticSeq(42), d, nil)

	p := &domain.Payment{
		State:         domain.StatePayed,
		Charset:       "ISO-8859-1",
		SenderName:    "Mari Maasikas",
		SuccessTarget: "http://shop.example/ec",
		CancelTarget:  "http://shop.example/ec",
	}
	p.SetFields(paymentFields())

	resp, err := f.GenerateForm(context.Background(), bank, p, m)
	require.NoError(t, err)

	assert.Equal(t, "POST", resp.Method)
	assert.Equal(t, "afb", resp.Fields["action"])
	assert.Equal(t, "42", resp.Fields["receipt_no"])
	assert.Equal(t, "000", resp.Fields["respcode"])
	assert.Equal(t, "Mari Maasikas", resp.Fields["msgdata"])
	assert.Equal(t, "N", resp.Fields["auto"])
	assert.NotEmpty(t, resp.Fields["mac"])
	assert.Equal(t, 1, d.calls)
}

func TestGenerateFormCancelled(t *testing.T) {
	bank := testBank()
	m := testMerchant(t)
	d := &nopDeliverer{}
	f := NewFactory(staticSeq(42), d, nil)

	p := &domain.Payment{
		State:        domain.StateCancelled,
		Charset:      "ISO-8859-1",
		CancelTarget: "http://shop.example/ec",
	}
	p.SetFields(paymentFields())

	resp, err := f.GenerateForm(context.Background(), bank, p, m)
	require.NoError(t, err)
	assert.Equal(t, "0", resp.Fields["receipt_no"])
	assert.Equal(t, "111", resp.Fields["respcode"])
	assert.Zero(t, d.calls)
}

func TestSamplePayment(t *testing.T) {
	bank := testBank()
	m := testMerchant(t)

	sample, charset, err := SamplePayment(bank, m)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", charset)
	assert.Equal(t, "gaf", sample["action"])
	assert.Equal(t, m.UID, sample["id"])
	assert.NotEmpty(t, sample["mac"])

	// merchant certificate and stored key form one pair here, so the
	// sample verifies against the inbound path
	a := newAdapter(bank, sample, charset, nil)
	res, err := a.ValidateSignature(m)
	require.NoError(t, err)
	assert.True(t, res.OK)
}
