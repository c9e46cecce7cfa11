// Package xmlutils provides XML-related utility functions used throughout the application.
package xmlutils

// CAMT053 contains the XPath expressions used to read a camt.053 statement.
// Entry expressions are relative to an Ntry node; balance expressions are
// relative to a Bal node.
type CAMT053 struct {
	Statement struct {
		Root     string
		IBAN     string
		OtherID  string
		Owner    string
		Servicer string
		FromDate string
		ToDate   string
		Balances string
		Entries  string
	}

	Balance struct {
		Type           string
		Amount         string
		Currency       string
		CreditDebitInd string
		Date           string
	}

	Entry struct {
		Amount         string
		Currency       string
		CreditDebitInd string
		BookingDate    string
		ValueDate      string
		AccountSvcRef  string
		AddEntryInfo   string
		EndToEndID     string
		Remittance     string
		AdditionalTx   string
		CreditorName   string
		DebtorName     string
	}
}

// DefaultCamt053XPaths returns a CAMT053 struct with the default XPath expressions
func DefaultCamt053XPaths() CAMT053 {
	camt := CAMT053{}

	camt.Statement.Root = "//BkToCstmrStmt/Stmt"
	camt.Statement.IBAN = "Acct/Id/IBAN"
	camt.Statement.OtherID = "Acct/Id/Othr/Id"
	camt.Statement.Owner = "Acct/Ownr/Nm"
	camt.Statement.Servicer = "Acct/Svcr/FinInstnId/Nm"
	camt.Statement.FromDate = "FrToDt/FrDtTm"
	camt.Statement.ToDate = "FrToDt/ToDtTm"
	camt.Statement.Balances = "Bal"
	camt.Statement.Entries = "Ntry"

	camt.Balance.Type = "Tp/CdOrPrtry/Cd"
	camt.Balance.Amount = "Amt"
	camt.Balance.Currency = "Amt/@Ccy"
	camt.Balance.CreditDebitInd = "CdtDbtInd"
	camt.Balance.Date = "Dt/Dt"

	camt.Entry.Amount = "Amt"
	camt.Entry.Currency = "Amt/@Ccy"
	camt.Entry.CreditDebitInd = "CdtDbtInd" // #nosec G101 -- XPath expression, not credentials
	camt.Entry.BookingDate = "BookgDt/Dt"
	camt.Entry.ValueDate = "ValDt/Dt"
	camt.Entry.AccountSvcRef = "AcctSvcrRef"
	camt.Entry.AddEntryInfo = "AddtlNtryInf"
	camt.Entry.EndToEndID = "NtryDtls/TxDtls/Refs/EndToEndId"
	camt.Entry.Remittance = "NtryDtls/TxDtls/RmtInf/Ustrd"
	camt.Entry.AdditionalTx = "NtryDtls/TxDtls/AddtlTxInf"
	camt.Entry.CreditorName = "NtryDtls/TxDtls/RltdPties/Cdtr/Nm" // #nosec G101 -- XPath expression, not credentials
	camt.Entry.DebtorName = "NtryDtls/TxDtls/RltdPties/Dbtr/Nm"   // #nosec G101 -- XPath expression, not credentials

	return camt
}

// Balance type codes of interest.
const (
	BalanceOpeningBooked = "OPBD"
	BalanceClosingBooked = "CLBD"
)
