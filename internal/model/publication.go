package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Publication is one record returned by the judicial-communications API for a
// given availability date. Records are immutable once fetched; JSON tags follow
// the upstream field names so payloads round-trip without loss.
type Publication struct {
	ID                  int64       `json:"id"`
	Hash                string      `json:"hash,omitempty"`
	AvailableOn         Date        `json:"data_disponibilizacao"`
	TribunalCode        string      `json:"siglaTribunal,omitempty"`
	CommunicationType   string      `json:"tipoComunicacao,omitempty"`
	DocumentType        string      `json:"tipoDocumento,omitempty"`
	ClassName           string      `json:"nomeClasse,omitempty"`
	ClassCode           string      `json:"codigoClasse,omitempty"`
	BodyName            string      `json:"nomeOrgao,omitempty"`
	ProcessNumber       string      `json:"numero_processo,omitempty"`
	MaskedProcessNumber string      `json:"numeroprocessocommascara,omitempty"`
	CommunicationNumber int         `json:"numeroComunicacao,omitempty"`
	Medium              string      `json:"meio,omitempty"`
	Link                string      `json:"link,omitempty"`
	Text                string      `json:"texto,omitempty"`
	Active              bool        `json:"ativo,omitempty"`
	Parties             []Party     `json:"destinatarios,omitempty"`
	Lawyers             []LawyerRef `json:"destinatarioadvogados,omitempty"`
}

// Party is one involved party (destinatário) on a publication.
type Party struct {
	Name string `json:"nome"`
	Role string `json:"polo,omitempty"`
}

// LawyerRef wraps the nested lawyer record the upstream API attaches to a
// publication.
type LawyerRef struct {
	Lawyer Lawyer `json:"advogado"`
}

// Lawyer identifies a legal representative by OAB registration.
type Lawyer struct {
	Name      string     `json:"nome"`
	OABNumber FlexString `json:"numero_oab"`
	OABState  string     `json:"uf_oab"`
}

// Key returns the identity used for deduplication: the upstream hash when
// present, otherwise id plus masked process number.
func (p Publication) Key() string {
	if p.Hash != "" {
		return p.Hash
	}
	return fmt.Sprintf("%d_%s", p.ID, p.MaskedProcessNumber)
}

// FlexString is a string that also accepts JSON numbers. The upstream API
// serves OAB registration numbers as either, depending on the record.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }
