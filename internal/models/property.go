package models

import (
	"strings"
	"time"
)

// Reserved property codes seeded by the import engine. Writes that carry
// no property reference resolve to the PlaceholderNone row.
const (
	PlaceholderNone       = "000000"
	PlaceholderIndividual = "000001"
	PlaceholderCorporate  = "000002"
)

// Property represents a municipal real-estate parcel or building record
// ("imóvel"). Code and Registration are independent near-unique keys: each
// carries a unique constraint, but re-registration can legitimately make two
// stored rows disagree about which one an incoming record refers to. The
// import engine detects and repairs that drift.
// Nullable numeric fields use pointers to distinguish zero from NULL.
type Property struct {
	UpdatedAt      time.Time `json:"updated"`
	FileDatetime   time.Time `json:"filedatetime"`
	Code           string    `json:"codigo"`
	Registration   string    `json:"inscricao_imobiliaria"`
	LotCode        string    `json:"codigo_lote"`
	Street         string    `json:"logradouro"`
	Number         string    `json:"numero"`
	Neighborhood   string    `json:"bairro"`
	Complement     string    `json:"complemento"`
	PostalCode     string    `json:"cep"`
	CorporateName  string    `json:"razao_social"`
	TaxpayerNumber string    `json:"numero_contribuinte"`
	Zone           string    `json:"zona"`
	LotArea        *float64  `json:"area_lote"`
	IdealFraction  *float64  `json:"fracao_ideal"`
	ID             int64     `json:"id"`
}

// NameString builds the human-readable label used by list views:
// "<code> - <street>, n<number>, <complement> - <neighborhood>".
func (p *Property) NameString() string {
	var b strings.Builder
	if p.Code != "" {
		b.WriteString(p.Code)
	}
	if p.Street != "" {
		b.WriteString(" - ")
		b.WriteString(p.Street)
	}
	if p.Number != "" {
		b.WriteString(", n")
		b.WriteString(p.Number)
	}
	if p.Complement != "" {
		b.WriteString(", ")
		b.WriteString(p.Complement)
	}
	if p.Neighborhood != "" {
		b.WriteString(" - ")
		b.WriteString(p.Neighborhood)
	}
	return b.String()
}

// HasPostalCode reports whether the stored postal code is usable.
// Partial codes (< 8 digits) are treated as missing.
func (p *Property) HasPostalCode() bool {
	return len(p.PostalCode) >= 8
}
