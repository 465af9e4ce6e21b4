package feed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/freightbooks/internal/model"
)

const invoicesCSV = `id,number,client,total,net,tax
inv-1,F-001,Acme,1200.00,1000.00,200.00
inv-2,F-002,Globex,500,,0
`

func TestInvoiceParser_Parse(t *testing.T) {
	events, err := (&InvoiceParser{}).Parse(strings.NewReader(invoicesCSV), "feed")
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0].(invoiceEvent)
	assert.Equal(t, "F-001", first.Invoice.Number)
	assert.Equal(t, "1000.00", first.Invoice.AmountExcludingTax.StringFixed(2))
	assert.Equal(t, "feed", first.ActorID)

	// Blank net is total minus tax.
	second := events[1].(invoiceEvent)
	assert.Equal(t, "500.00", second.Invoice.AmountExcludingTax.StringFixed(2))

	st, id := events[1].Source()
	assert.Equal(t, model.SourceInvoice, st)
	assert.Equal(t, "inv-2", id)
}

func TestPaymentParser_Parse(t *testing.T) {
	data := "id,client,amount,method,reference\npay-1,Acme,300,especes,\npay-2,Acme,900.50,VIREMENT,VIR-77\n"
	events, err := (&PaymentParser{}).Parse(strings.NewReader(data), "feed")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, model.PaymentEspeces, events[0].(paymentEvent).Payment.Method)
	assert.Equal(t, "VIR-77", events[1].(paymentEvent).Payment.Reference)
	assert.Equal(t, "900.50", events[1].(paymentEvent).Payment.Amount.StringFixed(2))
}

func TestShipmentParser_Parse(t *testing.T) {
	data := "id,number,client,cost\nlta-1,LTA-9,Acme,750.50\n"
	events, err := (&ShipmentParser{}).Parse(strings.NewReader(data), "feed")
	require.NoError(t, err)
	require.Len(t, events, 1)

	st, id := events[0].Source()
	assert.Equal(t, model.SourceLTA, st)
	assert.Equal(t, "lta-1", id)
}

func TestParser_EmptyFile(t *testing.T) {
	events, err := (&ShipmentParser{}).Parse(strings.NewReader("id,number,client,cost\n"), "feed")
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestParser_BadAmount(t *testing.T) {
	_, err := (&ShipmentParser{}).Parse(strings.NewReader("id,number,client,cost\nlta-1,L,Acme,lots\n"), "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "parsing cost")
}

func TestParser_WrongFieldCount(t *testing.T) {
	_, err := (&PaymentParser{}).Parse(strings.NewReader("id,client,amount\npay-1,Acme,3\n"), "feed")
	require.Error(t, err)
}

func TestRegistry_ForFile(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "invoices", r.ForFile("import/Invoices-2024-03.csv").Kind())
	assert.Equal(t, "payments", r.ForFile("payments.csv").Kind())
	assert.Nil(t, r.ForFile("bank.csv"))
	assert.Equal(t, []string{"invoices", "payments", "shipments"}, r.Kinds())
}

func TestRegistry_GetUnknown(t *testing.T) {
	assert.Nil(t, NewRegistry().Get("nonexistent"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&InvoiceParser{})
	assert.Panics(t, func() { r.Register(&InvoiceParser{}) })
}

func TestRegistry_ReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoices-march.csv")
	require.NoError(t, os.WriteFile(path, []byte(invoicesCSV), 0o644))

	events, err := DefaultRegistry().ReadFile(path, "feed")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	other := filepath.Join(dir, "bank.csv")
	require.NoError(t, os.WriteFile(other, []byte("x\n"), 0o644))
	_, err = DefaultRegistry().ReadFile(other, "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser")
}

type recordingGateway struct {
	raised []string
}

func (g *recordingGateway) InvoiceCreated(_ context.Context, ev model.InvoiceCreated) {
	g.raised = append(g.raised, "invoice:"+ev.Invoice.ID)
}

func (g *recordingGateway) PaymentReceived(_ context.Context, ev model.PaymentReceived) {
	g.raised = append(g.raised, "payment:"+ev.Payment.ID)
}

func (g *recordingGateway) ShipmentCompleted(_ context.Context, ev model.ShipmentCompleted) {
	g.raised = append(g.raised, "shipment:"+ev.LTA.ID)
}

func TestReplay_RaisesInOrder(t *testing.T) {
	events, err := (&InvoiceParser{}).Parse(strings.NewReader(invoicesCSV), "feed")
	require.NoError(t, err)
	more, err := (&ShipmentParser{}).Parse(strings.NewReader("id,number,client,cost\nlta-1,L1,Acme,10\n"), "feed")
	require.NoError(t, err)

	g := &recordingGateway{}
	Replay(context.Background(), g, append(events, more...))
	assert.Equal(t, []string{"invoice:inv-1", "invoice:inv-2", "shipment:lta-1"}, g.raised)
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	processed := filepath.Join(importDir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "invoices.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "notes.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "invoices.csv", files[0].Name)
}

func TestScan_NoImportDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "payments.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "payments.csv"))

	_, err := os.Stat(filepath.Join(importDir, "payments.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "payments.csv"))
	assert.NoError(t, err)
}
