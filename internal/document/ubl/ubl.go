// Package ubl renders exchange documents as UBL-style XML payloads.
package ubl

import (
	"encoding/xml"
	"fmt"

	"github.com/smallbiznis/peppolway/internal/document/domain"
	"github.com/smallbiznis/peppolway/internal/identifier"
)

// Input carries everything the renderer needs; it performs no lookups.
type Input struct {
	Record             domain.SourceRecord
	SenderName         string
	SenderIdentifier   identifier.Identifier
	ReceiverName       string
	ReceiverIdentifier identifier.Identifier
}

type endpointID struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

type party struct {
	EndpointID endpointID `xml:"EndpointID"`
	Name       string     `xml:"PartyName>Name"`
}

type amount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

type invoiceLine struct {
	ID                  int    `xml:"ID"`
	InvoicedQuantity    int64  `xml:"InvoicedQuantity"`
	LineExtensionAmount amount `xml:"LineExtensionAmount"`
	ItemName            string `xml:"Item>Name"`
	PriceAmount         amount `xml:"Price>PriceAmount"`
}

type invoiceDocument struct {
	XMLName              xml.Name      `xml:"Invoice"`
	CustomizationID      string        `xml:"CustomizationID"`
	ProfileID            string        `xml:"ProfileID"`
	ID                   string        `xml:"ID"`
	IssueDate            string        `xml:"IssueDate"`
	DueDate              string        `xml:"DueDate,omitempty"`
	InvoiceTypeCode      string        `xml:"InvoiceTypeCode"`
	Note                 string        `xml:"Note,omitempty"`
	DocumentCurrencyCode string        `xml:"DocumentCurrencyCode"`
	Supplier             party         `xml:"AccountingSupplierParty>Party"`
	Customer             party         `xml:"AccountingCustomerParty>Party"`
	TaxAmount            amount        `xml:"TaxTotal>TaxAmount"`
	PayableAmount        amount        `xml:"LegalMonetaryTotal>PayableAmount"`
	Lines                []invoiceLine `xml:"InvoiceLine"`
}

const (
	customizationID = "urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0"
	profileID       = "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"

	typeCodeInvoice    = "380"
	typeCodeCreditNote = "381"
)

// Render produces the immutable XML payload for a validated source record.
func Render(in Input) ([]byte, error) {
	doc := invoiceDocument{
		CustomizationID:      customizationID,
		ProfileID:            profileID,
		ID:                   in.Record.ID,
		IssueDate:            in.Record.IssueDate.UTC().Format("2006-01-02"),
		InvoiceTypeCode:      typeCode(in.Record.DocumentType),
		Note:                 in.Record.Note,
		DocumentCurrencyCode: in.Record.Currency,
		Supplier: party{
			EndpointID: endpointID{SchemeID: in.SenderIdentifier.Scheme, Value: in.SenderIdentifier.Value},
			Name:       in.SenderName,
		},
		Customer: party{
			EndpointID: endpointID{SchemeID: in.ReceiverIdentifier.Scheme, Value: in.ReceiverIdentifier.Value},
			Name:       in.ReceiverName,
		},
		TaxAmount:     amount{CurrencyID: in.Record.Currency, Value: FormatAmount(in.Record.TaxTotal)},
		PayableAmount: amount{CurrencyID: in.Record.Currency, Value: FormatAmount(in.Record.TotalAmount)},
	}
	if in.Record.DueDate != nil {
		doc.DueDate = in.Record.DueDate.UTC().Format("2006-01-02")
	}
	for i, line := range in.Record.Lines {
		doc.Lines = append(doc.Lines, invoiceLine{
			ID:                  i + 1,
			InvoicedQuantity:    line.Quantity,
			LineExtensionAmount: amount{CurrencyID: in.Record.Currency, Value: FormatAmount(line.Amount)},
			ItemName:            line.Description,
			PriceAmount:         amount{CurrencyID: in.Record.Currency, Value: FormatAmount(line.UnitAmount)},
		})
	}

	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), payload...), nil
}

// FormatAmount renders integer minor units as a two-decimal string.
// Amounts never pass through floating point.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func typeCode(t domain.DocumentType) string {
	if t == domain.TypeCreditNote {
		return typeCodeCreditNote
	}
	return typeCodeInvoice
}
