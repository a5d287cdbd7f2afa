package ubl

import (
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/peppolway/internal/document/domain"
	"github.com/smallbiznis/peppolway/internal/identifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{50, "0.50"},
		{150, "1.50"},
		{100000, "1000.00"},
		{-995, "-9.95"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatAmount(tc.minor))
	}
}

func TestRender(t *testing.T) {
	due := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	payload, err := Render(Input{
		Record: domain.SourceRecord{
			ID:           "INV-1001",
			DocumentType: domain.TypeInvoice,
			Currency:     "EUR",
			IssueDate:    time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
			DueDate:      &due,
			Lines: []domain.SourceLine{
				{Description: "Widget", Quantity: 3, UnitAmount: 250, Amount: 750},
			},
			TaxTotal:    150,
			TotalAmount: 900,
		},
		SenderName:         "Acme BV",
		SenderIdentifier:   identifier.Identifier{Scheme: "0208", Value: "123456789"},
		ReceiverName:       "Globex NV",
		ReceiverIdentifier: identifier.Identifier{Scheme: "9925", Value: "987654321"},
	})
	require.NoError(t, err)

	xml := string(payload)
	assert.True(t, strings.HasPrefix(xml, "<?xml"))
	assert.Contains(t, xml, `<EndpointID schemeID="0208">123456789</EndpointID>`)
	assert.Contains(t, xml, `<EndpointID schemeID="9925">987654321</EndpointID>`)
	assert.Contains(t, xml, "<InvoiceTypeCode>380</InvoiceTypeCode>")
	assert.Contains(t, xml, "<IssueDate>2026-01-15</IssueDate>")
	assert.Contains(t, xml, "<DueDate>2026-02-15</DueDate>")
	assert.Contains(t, xml, `<PayableAmount currencyID="EUR">9.00</PayableAmount>`)
	assert.Contains(t, xml, `<LineExtensionAmount currencyID="EUR">7.50</LineExtensionAmount>`)
}

func TestRender_CreditNoteTypeCode(t *testing.T) {
	payload, err := Render(Input{
		Record: domain.SourceRecord{
			ID:           "CN-1",
			DocumentType: domain.TypeCreditNote,
			Currency:     "EUR",
			IssueDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Lines: []domain.SourceLine{
				{Description: "Refund", Quantity: 1, UnitAmount: 500, Amount: 500},
			},
			TotalAmount: 500,
		},
		SenderIdentifier:   identifier.Identifier{Scheme: "0208", Value: "1"},
		ReceiverIdentifier: identifier.Identifier{Scheme: "0208", Value: "2"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "<InvoiceTypeCode>381</InvoiceTypeCode>")
}
