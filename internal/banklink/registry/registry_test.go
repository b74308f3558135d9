package registry

import (
	"testing"

	"github.com/banklabs/banklink/internal/banklink/adapters/aab"
	"github.com/banklabs/banklink/internal/banklink/adapters/ipizza"
	"github.com/banklabs/banklink/internal/banklink/adapters/solo"
	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		IPizza: config.ProtocolConfig{DefaultCharset: "ISO-8859-1"},
		Solo:   config.ProtocolConfig{DefaultCharset: "ISO-8859-1"},
		Aab:    config.ProtocolConfig{DefaultCharset: "ISO-8859-1"},
		EC:     config.ProtocolConfig{DefaultCharset: "ISO-8859-1"},
	}
}

func TestBankLookup(t *testing.T) {
	r := New(testConfig(), nil)

	bank, err := r.Bank("swedbank")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolIPizza, bank.Protocol)
	assert.Equal(t, "HP", bank.SenderID)

	_, err = r.Bank("monopoly")
	assert.ErrorIs(t, err, domain.ErrUnknownBank)
}

func TestBanksOrderStable(t *testing.T) {
	r := New(testConfig(), nil)
	banks := r.Banks()
	require.NotEmpty(t, banks)
	assert.Equal(t, "swedbank", banks[0].Key)
	assert.Equal(t, New(testConfig(), nil).Banks()[0].Key, banks[0].Key)
}

func TestAdapterDispatch(t *testing.T) {
	factories := []domain.Factory{
		ipizza.NewFactory(nil, nil),
		solo.NewFactory(nil, nil),
		aab.NewFactory(nil),
	}
	r := New(testConfig(), factories)

	a, bank, err := r.Adapter("nordea", map[string]string{"SOLOPMT_RCV_ID": "m1"})
	require.NoError(t, err)
	assert.Equal(t, "nordea", bank.Key)
	assert.Equal(t, "m1", a.UID())

	// ec factory not registered here
	_, _, err = r.Adapter("ec", map[string]string{})
	assert.Error(t, err)
}

func TestConfiguredCharsets(t *testing.T) {
	cfg := testConfig()
	cfg.IPizza.DefaultCharset = "UTF-8"
	r := New(cfg, nil)

	bank, err := r.Bank("swedbank")
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", bank.DefaultCharset)
	assert.Contains(t, bank.AllowedCharsets, "ISO-8859-1")
}
