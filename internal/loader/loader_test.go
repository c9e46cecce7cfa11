package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(opts Options) *Loader {
	return New(opts, logging.NewMockLogger())
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		data     []byte
		mime     string
		sentinel error
	}{
		{"empty input", DefaultOptions(), nil, "text/csv", parsererror.ErrCorruptFile},
		{"too many bytes", Options{MaxBytes: 4}, []byte("a,b,c,d"), "text/csv", parsererror.ErrResourceLimitExceeded},
		{"unknown mime", DefaultOptions(), []byte("x"), "image/png", parsererror.ErrUnsupportedFormat},
		{"binary content", DefaultOptions(), []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}, "", parsererror.ErrUnsupportedFormat},
		{"pdf without header", DefaultOptions(), []byte("hello"), "application/pdf", parsererror.ErrCorruptFile},
		{"garbage pdf", DefaultOptions(), []byte("%PDF-1.4\nnot really a pdf"), "application/pdf", parsererror.ErrCorruptFile},
		{"malformed xml", DefaultOptions(), []byte("<?xml version=\"1.0\"?><Document><Stmt>"), "application/xml", parsererror.ErrCorruptFile},
		{"xml that is not camt", DefaultOptions(), []byte("<?xml version=\"1.0\"?><Invoice/>"), "application/xml", parsererror.ErrUnsupportedFormat},
		{"too many pages", Options{MaxPages: 1}, []byte("page one\fpage two"), "text/plain", parsererror.ErrResourceLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newTestLoader(tt.opts).Load(context.Background(), tt.data, tt.mime)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, parsererror.IsLoaderError(err))
		})
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestLoader(DefaultOptions()).Load(ctx, []byte("a,b\n1,2\n"), "text/csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected models.Format
	}{
		{"pdf", "%PDF-1.7\n...", models.FormatPDF},
		{"xml prolog", "\ufeff<?xml version=\"1.0\"?><Document/>", models.FormatXML},
		{"camt root", "  <Document xmlns=\"urn:iso\"/>", models.FormatXML},
		{"comma table", "Date,Description,Amount\n01/05/2024,Shop,1.00\n", models.FormatCSV},
		{"semicolon table", "Datum;Text;Betrag\n01.05.2024;Kauf;12,50\n", models.FormatCSV},
		{"plain text", "Barclays Bank UK PLC\nStatement for account 1234\n", models.FormatText},
		{"single line", "a,b,c", models.FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := Sniff([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	d, ok := SniffDelimiter("a|b|c\n1|2|3\n4|5|6\n")
	assert.True(t, ok)
	assert.Equal(t, '|', d)

	d, ok = SniffDelimiter("Date,Payee,Amount\n01/02/2024,\"Smith, J\",\"1,000.00\"\n")
	assert.True(t, ok)
	assert.Equal(t, ',', d)

	_, ok = SniffDelimiter("no delimiters here\nnor here\n")
	assert.False(t, ok)
}

func TestLoadCSV(t *testing.T) {
	data := "Date,Description,Amount\n# exported 2024-05-31\n01/05/2024,\"Shop, Ltd\",\"1,234.56\"\n\n,,\n"
	doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), []byte(data), "text/csv")
	require.NoError(t, err)

	assert.Equal(t, models.FormatCSV, doc.Format())
	require.Equal(t, 1, doc.PageCount())
	page, _ := doc.Page(0)
	require.Len(t, page.Blocks, 2)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, page.Blocks[0].Cells)
	assert.Equal(t, 0, page.Blocks[0].Line)
	assert.Equal(t, []string{"01/05/2024", "Shop, Ltd", "1,234.56"}, page.Blocks[1].Cells)
	assert.Equal(t, 2, page.Blocks[1].Line)
}

func TestLoadCSV_Charsets(t *testing.T) {
	latin1 := []byte("Name,City\nA,Z\xfcrich\n")

	for _, mime := range []string{"text/csv; charset=ISO-8859-1", "text/csv"} {
		t.Run(mime, func(t *testing.T) {
			doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), latin1, mime)
			require.NoError(t, err)
			page, _ := doc.Page(0)
			require.Len(t, page.Blocks, 2)
			assert.Equal(t, "Zürich", page.Blocks[1].Cells[1])
		})
	}

	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Date,Amount\n2024-01-01,1\n")...)
	doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), bom, "text/csv")
	require.NoError(t, err)
	page, _ := doc.Page(0)
	assert.Equal(t, "Date", page.Blocks[0].Cells[0])
}

func TestLoadText(t *testing.T) {
	data := "Statement\r\n\r\n  01/05/2024  TESCO  12.00  \f\nPage two /uni00A3\n\f"
	doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), []byte(data), "text/plain")
	require.NoError(t, err)
	require.Equal(t, 2, doc.PageCount())

	first, _ := doc.Page(0)
	require.Len(t, first.Blocks, 2)
	assert.Equal(t, "Statement", first.Blocks[0].Text)
	assert.Equal(t, "  01/05/2024  TESCO  12.00", first.Blocks[1].Text)
	assert.Equal(t, 2, first.Blocks[1].Line)
	assert.Equal(t, 0.0, first.Blocks[1].Box.X0)

	second, _ := doc.Page(1)
	require.Len(t, second.Blocks, 1)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, "Page two £", second.Blocks[0].Text)
}

func TestLoad_WhitespaceOnlyIsEmptyDocument(t *testing.T) {
	doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), []byte(" \n\n "), "text/plain")
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())
}

const camtFixture = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.04">
 <BkToCstmrStmt>
  <Stmt>
   <FrToDt><FrDtTm>2024-01-01T00:00:00</FrDtTm><ToDtTm>2024-01-31T23:59:59</ToDtTm></FrToDt>
   <Acct>
    <Id><IBAN>CH9300762011623852957</IBAN></Id>
    <Ownr><Nm>Jane Doe</Nm></Ownr>
    <Svcr><FinInstnId><Nm>Example Bank</Nm></FinInstnId></Svcr>
   </Acct>
   <Bal><Tp><CdOrPrtry><Cd>OPBD</Cd></CdOrPrtry></Tp><Amt Ccy="CHF">1000.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Bal>
   <Bal><Tp><CdOrPrtry><Cd>CLBD</Cd></CdOrPrtry></Tp><Amt Ccy="CHF">1087.50</Amt><CdtDbtInd>CRDT</CdtDbtInd></Bal>
   <Ntry>
    <Amt Ccy="CHF">12.50</Amt><CdtDbtInd>DBIT</CdtDbtInd>
    <BookgDt><Dt>2024-01-05</Dt></BookgDt><ValDt><Dt>2024-01-06</Dt></ValDt>
    <AcctSvcrRef>REF-1</AcctSvcrRef>
    <NtryDtls><TxDtls><RltdPties><Cdtr><Nm>Coffee Shop</Nm></Cdtr></RltdPties><RmtInf><Ustrd>Card 1234</Ustrd></RmtInf></TxDtls></NtryDtls>
   </Ntry>
   <Ntry>
    <Amt Ccy="CHF">100.00</Amt><CdtDbtInd>CRDT</CdtDbtInd>
    <BookgDt><Dt>2024-01-25</Dt></BookgDt>
    <AddtlNtryInf>Salary January</AddtlNtryInf>
   </Ntry>
  </Stmt>
 </BkToCstmrStmt>
</Document>`

func TestLoadXML_Camt053(t *testing.T) {
	doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), []byte(camtFixture), "")
	require.NoError(t, err)
	assert.Equal(t, models.FormatXML, doc.Format())

	page, ok := doc.Page(0)
	require.True(t, ok)
	text := page.Text()
	assert.Contains(t, text, "Bank: Example Bank")
	assert.Contains(t, text, "Account: CH9300762011623852957")
	assert.Contains(t, text, "Account Holder: Jane Doe")
	assert.Contains(t, text, "Statement Period: 2024-01-01 to 2024-01-31")
	assert.Contains(t, text, "Opening Balance: 1000.00 CHF")
	assert.Contains(t, text, "Closing Balance: 1087.50 CHF")

	var rows [][]string
	for _, b := range page.Blocks {
		if b.Cells != nil {
			rows = append(rows, b.Cells)
		}
	}
	require.Len(t, rows, 3)
	assert.Equal(t, CamtHeader, rows[0])
	assert.Equal(t, []string{"2024-01-05", "2024-01-06", "12.50", "CHF", "DBIT", "Coffee Shop - Card 1234", "REF-1"}, rows[1])
	assert.Equal(t, []string{"2024-01-25", "", "100.00", "CHF", "CRDT", "Salary January", ""}, rows[2])
}

func TestBuildBlocks(t *testing.T) {
	texts := []pdf.Text{
		{S: "Page", X: 50, Y: 680, W: 20, FontSize: 10},
		{S: "1", X: 72, Y: 680, W: 5, FontSize: 10},
		{S: "12.00", X: 300, Y: 700, W: 20, FontSize: 10},
		{S: "TESCO", X: 120, Y: 700.3, W: 25, FontSize: 10},
		{S: "STORES", X: 148, Y: 700, W: 30, FontSize: 10},
		{S: "01/05/2024", X: 50, Y: 700, W: 40, FontSize: 10},
		{S: " ", X: 95, Y: 700, W: 3, FontSize: 10},
		{S: "A", X: 10, Y: 660, W: 5, FontSize: 10},
		{S: "B", X: 15, Y: 660, W: 5, FontSize: 10},
	}

	blocks := buildBlocks(texts)
	var got []string
	for _, b := range blocks {
		got = append(got, b.Text)
	}
	assert.Equal(t, []string{"01/05/2024", "TESCO STORES", "12.00", "Page 1", "AB"}, got)

	assert.Equal(t, 0, blocks[0].Line)
	assert.Equal(t, 0, blocks[2].Line)
	assert.Equal(t, 1, blocks[3].Line)
	assert.Equal(t, 2, blocks[4].Line)
	assert.InDelta(t, 120, blocks[1].Box.X0, 1e-9)
	assert.InDelta(t, 178, blocks[1].Box.X1, 1e-9)
	assert.InDelta(t, 690.3, blocks[1].Box.Y0, 1e-9)
}

// onePagePDF assembles a single page PDF around content, using a Helvetica
// font whose printable glyphs are all 500 units wide.
func onePagePDF(content string) []byte {
	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestLoadPDF_GroupsGlyphsIntoLines(t *testing.T) {
	show := func(move, s string) string {
		return "BT /F1 10 Tf " + move + " (" + s + ") Tj ET\n"
	}
	tests := []struct {
		name string
		at   func(x, y int) string
	}{
		{"moved with Td", func(x, y int) string { return fmt.Sprintf("%d %d Td", x, y) }},
		{"placed with Tm", func(x, y int) string { return fmt.Sprintf("1 0 0 1 %d %d Tm", x, y) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// rows are written bottom first to check top-down ordering
			content := show(tt.at(72, 680), "01/05/2024") +
				show(tt.at(360, 680), "12.50") +
				show(tt.at(160, 680), "Coffee Shop") +
				show(tt.at(72, 700), "Date") +
				show(tt.at(160, 700), "Details") +
				show(tt.at(360, 700), "Amount")

			doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), onePagePDF(content), "application/pdf")
			require.NoError(t, err)
			assert.Equal(t, models.FormatPDF, doc.Format())
			require.Equal(t, 1, doc.PageCount())

			page, ok := doc.Page(0)
			require.True(t, ok)
			assert.Equal(t, 1, page.Number)

			var got [][]string
			for _, line := range page.Lines() {
				var texts []string
				for _, b := range line {
					texts = append(texts, b.Text)
				}
				got = append(got, texts)
			}
			assert.Equal(t, [][]string{
				{"Date", "Details", "Amount"},
				{"01/05/2024", "Coffee Shop", "12.50"},
			}, got)

			amount := page.Lines()[1][2]
			assert.Equal(t, 1, amount.Line)
			assert.InDelta(t, 360, amount.Box.X0, 1e-9)
			assert.InDelta(t, 385, amount.Box.X1, 1e-9)
			assert.InDelta(t, 680, amount.Box.Y1, 1e-9)
			assert.False(t, doc.IsEmpty())
		})
	}
}

func TestLoad_DeclaredOctetStreamIsSniffed(t *testing.T) {
	doc, err := newTestLoader(DefaultOptions()).Load(context.Background(), []byte("Date;Amount\n2024-01-01;1\n"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, models.FormatCSV, doc.Format())
	assert.True(t, strings.HasPrefix(doc.Text(0), "Date Amount"))
}
