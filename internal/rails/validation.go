package rails

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"payos.backend/internal/domain/entities"
	domainerrors "payos.backend/internal/domain/errors"
)

// Pix key types
const (
	PixKeyCPF   = "cpf"
	PixKeyCNPJ  = "cnpj"
	PixKeyEmail = "email"
	PixKeyPhone = "phone"
	PixKeyEVP   = "evp"
)

var (
	digitsOnly   = regexp.MustCompile(`^[0-9]+$`)
	cpfFormat    = regexp.MustCompile(`^(\d{11}|\d{3}\.\d{3}\.\d{3}-\d{2})$`)
	cnpjFormat   = regexp.MustCompile(`^(\d{14}|\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2})$`)
	brPhone      = regexp.MustCompile(`^\+55\d{10,11}$`)
	clabeLength  = 18
	maxEmailSize = 77
)

// ValidatePixKey checks a Pix key against its declared key type.
func ValidatePixKey(key, keyType string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domainerrors.InvalidPixKey("pix key is required")
	}
	switch strings.ToLower(keyType) {
	case PixKeyCPF:
		if !cpfFormat.MatchString(key) {
			return domainerrors.InvalidPixKey("cpf pix key must have 11 digits")
		}
	case PixKeyCNPJ:
		if !cnpjFormat.MatchString(key) {
			return domainerrors.InvalidPixKey("cnpj pix key must have 14 digits")
		}
	case PixKeyEmail:
		addr, err := mail.ParseAddress(key)
		if err != nil || addr.Address != key || len(key) > maxEmailSize {
			return domainerrors.InvalidPixKey("email pix key is malformed")
		}
	case PixKeyPhone:
		if !brPhone.MatchString(key) {
			return domainerrors.InvalidPixKey("phone pix key must be +55 followed by 10 or 11 digits")
		}
	case PixKeyEVP, "random":
		if _, err := uuid.Parse(key); err != nil {
			return domainerrors.InvalidPixKey("random pix key must be a UUID")
		}
	case "":
		return domainerrors.InvalidPixKey("pix key type is required")
	default:
		return domainerrors.InvalidPixKey("unsupported pix key type '" + keyType + "'")
	}
	return nil
}

// ValidateCLABE checks a Mexican CLABE: exactly 18 numeric digits.
func ValidateCLABE(clabe string) error {
	if len(clabe) != clabeLength || !digitsOnly.MatchString(clabe) {
		return domainerrors.InvalidCLABE("clabe must be exactly 18 numeric digits")
	}
	return nil
}

// ValidateRecipient checks the recipient shape required by a rail.
func ValidateRecipient(rail entities.SettlementRail, r entities.Recipient) error {
	switch rail {
	case entities.SettlementRailPix:
		return ValidatePixKey(r.PixKey, r.PixKeyType)
	case entities.SettlementRailSPEI:
		return ValidateCLABE(r.CLABE)
	}
	return domainerrors.InvalidRail(string(rail))
}

// RecipientFromConfig reads a recipient from instrument config or data.
func RecipientFromConfig(cfg map[string]interface{}) entities.Recipient {
	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := cfg[k].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	return entities.Recipient{
		PixKey:     str("pixKey", "pix_key"),
		PixKeyType: str("pixKeyType", "pix_key_type", "keyType"),
		CLABE:      str("clabe"),
		Name:       str("name"),
		TaxID:      str("taxId", "tax_id"),
		RFC:        str("rfc"),
		BankName:   str("bankName", "bank_name"),
	}
}

// RecipientData is the instrument data stored for a recipient.
func RecipientData(r entities.Recipient) map[string]interface{} {
	data := map[string]interface{}{}
	set := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	set("pixKey", r.PixKey)
	set("pixKeyType", r.PixKeyType)
	set("clabe", r.CLABE)
	set("name", r.Name)
	set("taxId", r.TaxID)
	set("rfc", r.RFC)
	set("bankName", r.BankName)
	return data
}

func last4(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
