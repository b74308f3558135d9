// Package registry binds bank definitions to protocol adapter factories.
// Definitions are static; only the default charsets come from configuration.
package registry

import (
	"fmt"
	"regexp"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/config"
)

type Registry struct {
	banks     map[string]*domain.BankDefinition
	order     []string
	factories map[string]domain.Factory
}

func New(cfg config.Config, factories []domain.Factory) *Registry {
	r := &Registry{
		banks:     make(map[string]*domain.BankDefinition),
		factories: make(map[string]domain.Factory),
	}
	for _, f := range factories {
		r.factories[f.Protocol()] = f
	}
	for _, bank := range definitions(cfg) {
		r.banks[bank.Key] = bank
		r.order = append(r.order, bank.Key)
	}
	return r
}

func (r *Registry) Bank(key string) (*domain.BankDefinition, error) {
	bank, ok := r.banks[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBank, key)
	}
	return bank, nil
}

// Banks lists every definition in declaration order.
func (r *Registry) Banks() []*domain.BankDefinition {
	out := make([]*domain.BankDefinition, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.banks[key])
	}
	return out
}

func (r *Registry) Factory(protocol string) (domain.Factory, error) {
	f, ok := r.factories[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for protocol %q", domain.ErrUnknownBank, protocol)
	}
	return f, nil
}

// Adapter builds the protocol adapter for an inbound message to the given
// bank.
func (r *Registry) Adapter(bankKey string, fields map[string]string) (domain.Adapter, *domain.BankDefinition, error) {
	bank, err := r.Bank(bankKey)
	if err != nil {
		return nil, nil, err
	}
	factory, err := r.Factory(bank.Protocol)
	if err != nil {
		return nil, nil, err
	}
	return factory.New(bank, fields), bank, nil
}

var latinTextRe = regexp.MustCompile(`^[0-9a-zA-ZÀ-ž],?\-?\.?\+?/?&?:? *$|^$`)

func ipizzaCharsets(defaultCharset string) []string {
	if defaultCharset == "UTF-8" {
		return []string{"UTF-8", "ISO-8859-1"}
	}
	return []string{defaultCharset, "UTF-8"}
}

// definitions is the emulated bank roster. Field length limits follow the
// banks' published interface documents.
func definitions(cfg config.Config) []*domain.BankDefinition {
	return []*domain.BankDefinition{
		{
			Key:             "swedbank",
			Protocol:        domain.ProtocolIPizza,
			Name:            "Swedbank",
			SenderID:        "HP",
			DefaultCharset:  cfg.IPizza.DefaultCharset,
			AllowedCharsets: ipizzaCharsets(cfg.IPizza.DefaultCharset),
			CharsetField:    "VK_ENCODING",
			ReturnField:     "VK_RETURN",
			CancelField:     "VK_RETURN",
			RejectField:     "VK_RETURN",
			FieldLength: map[string]int{
				"VK_MSG":  100,
				"VK_REF":  20,
				"VK_NAME": 40,
			},
			AccountPrefix: "22",
			AccountLength: 14,
		},
		{
			Key:             "seb",
			Protocol:        domain.ProtocolIPizza,
			Name:            "SEB",
			SenderID:        "EYP",
			DefaultCharset:  cfg.IPizza.DefaultCharset,
			AllowedCharsets: ipizzaCharsets(cfg.IPizza.DefaultCharset),
			CharsetField:    "VK_CHARSET",
			ReturnField:     "VK_RETURN",
			CancelField:     "VK_RETURN",
			RejectField:     "VK_RETURN",
			FieldLength: map[string]int{
				"VK_MSG":  70,
				"VK_NAME": 70,
			},
			FieldRegex: map[string]*regexp.Regexp{
				"VK_MSG": latinTextRe,
			},
			AccountPrefix: "10",
			AccountLength: 14,
		},
		{
			Key:             "lhv",
			Protocol:        domain.ProtocolIPizza,
			Name:            "LHV",
			SenderID:        "LHV",
			DefaultCharset:  "UTF-8",
			AllowedCharsets: []string{"UTF-8", "ISO-8859-1"},
			CharsetField:    "VK_ENCODING",
			ReturnField:     "VK_RETURN",
			CancelField:     "VK_RETURN",
			RejectField:     "VK_RETURN",
			ByteLength:      true,
			FieldLength: map[string]int{
				"VK_MSG": 95,
			},
			AccountPrefix: "77",
			AccountLength: 14,
		},
		{
			Key:                 "danske",
			Protocol:            domain.ProtocolIPizza,
			Name:                "Danske Bank",
			SenderID:            "SAMPOPANK",
			DefaultCharset:      "UTF-8",
			AllowedCharsets:     []string{"UTF-8"},
			CharsetField:        "VK_ENCODING",
			ReturnField:         "VK_RETURN",
			CancelField:         "VK_RETURN",
			RejectField:         "VK_RETURN",
			DisallowQueryParams: true,
			ByteLength:          true,
			AccountPrefix:       "33",
			AccountLength:       14,
		},
		{
			Key:             "krediidipank",
			Protocol:        domain.ProtocolIPizza,
			Name:            "Krediidipank",
			SenderID:        "KREP",
			DefaultCharset:  "UTF-8",
			AllowedCharsets: []string{"UTF-8", "ISO-8859-1"},
			CharsetField:    "VK_ENCODING",
			ReturnField:     "VK_RETURN",
			CancelField:     "VK_RETURN",
			RejectField:     "VK_RETURN",
			AccountPrefix:   "42",
			AccountLength:   14,
		},
		{
			Key:            "nordea",
			Protocol:       domain.ProtocolSolo,
			Name:           "Nordea",
			DefaultCharset: cfg.Solo.DefaultCharset,
			ReturnField:    "RETURN",
			CancelField:    "CANCEL",
			RejectField:    "REJECT",
			AllowGet:       true,
			FieldLength: map[string]int{
				"MSG": 210,
			},
			AccountPrefix: "96",
			AccountLength: 14,
		},
		{
			Key:            "alandsbanken",
			Protocol:       domain.ProtocolAab,
			Name:           "Ålandsbanken",
			DefaultCharset: cfg.Aab.DefaultCharset,
			ReturnField:    "RETURN",
			CancelField:    "CANCEL",
			RejectField:    "REJECT",
			AllowGet:       true,
			AccountPrefix:  "66",
			AccountLength:  14,
		},
		{
			Key:             "ec",
			Protocol:        domain.ProtocolEC,
			Name:            "Estcard",
			DefaultCharset:  cfg.EC.DefaultCharset,
			AllowedCharsets: []string{"ISO-8859-1", "UTF-8"},
			CharsetField:    "charEncoding",
		},
	}
}
